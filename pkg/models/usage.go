package models

import "time"

// GenerationRecord tracks one request handled by the gateway.
type GenerationRecord struct {
	ID               string    `json:"id"`
	Host             string    `json:"host"`
	NoLimit          bool      `json:"no_limit"`
	URLCount         int       `json:"url_count"`
	PageCount        int       `json:"page_count"`
	CacheHit         bool      `json:"cache_hit"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	DurationMs       int64     `json:"duration_ms"`
	CreatedAt        time.Time `json:"created_at"`
}

// GenerationSummary aggregates generation records per host and tier.
type GenerationSummary struct {
	Host         string `json:"host"`
	NoLimit      bool   `json:"no_limit"`
	RequestCount int    `json:"request_count"`
	CacheHits    int    `json:"cache_hits"`
	TotalPages   int    `json:"total_pages"`
	TotalTokens  int    `json:"total_tokens"`
}
