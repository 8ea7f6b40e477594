package models

import "time"

// CacheEntry is one stored generation result for a hostname and quota tier.
type CacheEntry struct {
	URL         string    `json:"url"`
	LLMsTxt     string    `json:"llmstxt"`
	LLMsFullTxt string    `json:"llmsfulltxt"`
	CachedAt    time.Time `json:"cached_at"`
	NoLimit     bool      `json:"no_limit"`
}

// CacheStats reports what a cache store holds.
type CacheStats struct {
	Entries int64 `json:"entries"`
	Hosts   int64 `json:"hosts"`
	Stale   int64 `json:"stale"`
}
