package firecrawl

import "github.com/pario-ai/llmstxt/pkg/models"

type startRequest struct {
	URLs            []string `json:"urls"`
	Formats         []string `json:"formats"`
	OnlyMainContent bool     `json:"onlyMainContent"`
}

type startResponse struct {
	Success     bool     `json:"success"`
	ID          string   `json:"id"`
	URL         string   `json:"url"`
	InvalidURLs []string `json:"invalidURLs,omitempty"`
	Error       string   `json:"error,omitempty"`
}

func (r *startResponse) reason() string {
	if r.Error != "" {
		return r.Error
	}
	return "no batch id returned"
}

type batchStatus struct {
	Status      string     `json:"status"`
	Total       int        `json:"total"`
	Completed   int        `json:"completed"`
	CreditsUsed int        `json:"creditsUsed"`
	Next        string     `json:"next,omitempty"`
	Data        []document `json:"data"`
	Error       string     `json:"error,omitempty"`
}

func (s *batchStatus) reason() string {
	if s.Error != "" {
		return s.Error
	}
	return "batch " + s.Status
}

type document struct {
	Markdown string   `json:"markdown"`
	Metadata metadata `json:"metadata"`
}

type metadata struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	SourceURL   string `json:"sourceURL"`
	StatusCode  int    `json:"statusCode"`
	Error       string `json:"error,omitempty"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (d document) toPage() models.PageResult {
	u := d.Metadata.URL
	if u == "" {
		u = d.Metadata.SourceURL
	}
	return models.PageResult{
		URL:         u,
		Markdown:    d.Markdown,
		Title:       d.Metadata.Title,
		Description: d.Metadata.Description,
	}
}
