package models

// GenerateRequest is the body accepted by the generation endpoint.
type GenerateRequest struct {
	URLs    []string `json:"urls"`
	BYOKKey string   `json:"bringYourOwnFirecrawlApiKey,omitempty"`
}

// Documents holds the two generated artifacts. They are always produced,
// cached and served together.
type Documents struct {
	LLMsTxt     string `json:"llmstxt"`
	LLMsFullTxt string `json:"llmsfulltxt"`
}

// GenerateResult is what the gateway hands back to its caller.
type GenerateResult struct {
	Documents
	Host     string `json:"-"`
	Tier     Tier   `json:"-"`
	CacheHit bool   `json:"-"`
}

// PageResult is a single scraped page.
type PageResult struct {
	URL         string `json:"url"`
	Markdown    string `json:"markdown"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// Summary is the structured completion produced for one page.
type Summary struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Usage       *Usage `json:"-"`
}

// Usage represents token usage from an LLM response.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates o into u.
func (u *Usage) Add(o *Usage) {
	if o == nil {
		return
	}
	u.PromptTokens += o.PromptTokens
	u.CompletionTokens += o.CompletionTokens
	u.TotalTokens += o.TotalTokens
}
