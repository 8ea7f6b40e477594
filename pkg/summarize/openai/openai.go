// Package openai implements summarize.Summarizer against an OpenAI-compatible
// chat completions endpoint using json_schema structured output.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pario-ai/llmstxt/pkg/models"
	"github.com/pario-ai/llmstxt/pkg/summarize"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

// Options configures a Summarizer.
type Options struct {
	APIKey  string
	BaseURL string
	Model   string
	// RequestsPerSecond paces outgoing completions. Zero disables pacing.
	RequestsPerSecond float64
	// MaxContentChars caps the page markdown embedded in each prompt.
	MaxContentChars int
	HTTPClient      *http.Client
}

// Summarizer calls the chat completions API once per page.
type Summarizer struct {
	client   *http.Client
	endpoint string
	apiKey   string
	model    string
	maxChars int
	limiter  *rate.Limiter
}

var _ summarize.Summarizer = (*Summarizer)(nil)

// New creates a Summarizer.
func New(opts Options) *Summarizer {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = "https://api.openai.com"
	}
	model := opts.Model
	if model == "" {
		model = DefaultModel
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 2 * time.Minute}
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	return &Summarizer{
		client:   hc,
		endpoint: base + "/v1/chat/completions",
		apiKey:   opts.APIKey,
		model:    model,
		maxChars: opts.MaxContentChars,
		limiter:  rate.NewLimiter(limit, 1),
	}
}

// Summarize requests a structured {description, title} for page.
func (s *Summarizer) Summarize(ctx context.Context, page models.PageResult) (models.Summary, error) {
	if s.apiKey == "" {
		return models.Summary{}, fmt.Errorf("openai: missing api key")
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return models.Summary{}, fmt.Errorf("openai: rate limit wait: %w", err)
	}

	req, err := s.buildRequest(ctx, page)
	if err != nil {
		return models.Summary{}, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return models.Summary{}, fmt.Errorf("openai: call upstream api: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Summary{}, fmt.Errorf("openai: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var e errorResponse
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &e) == nil && e.Error.Message != "" {
			msg = e.Error.Message
		}
		return models.Summary{}, fmt.Errorf("openai: upstream api returned status %d: %s", resp.StatusCode, msg)
	}

	var chat chatResponse
	if err := json.Unmarshal(body, &chat); err != nil {
		return models.Summary{}, fmt.Errorf("openai: decode response: %w", err)
	}
	return parseSummary(&chat)
}

func (s *Summarizer) buildRequest(ctx context.Context, page models.PageResult) (*http.Request, error) {
	payload := chatRequest{
		Model: s.model,
		Messages: []message{
			{Role: "user", Content: summarize.Prompt(page, s.maxChars)},
		},
		ResponseFormat: &responseFormat{
			Type: "json_schema",
			JSONSchema: &jsonSchema{
				Name:   "description",
				Strict: true,
				Schema: descriptionSchema,
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("openai: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	return req, nil
}

// parseSummary extracts and validates the structured content of the first choice.
func parseSummary(chat *chatResponse) (models.Summary, error) {
	if len(chat.Choices) == 0 {
		return models.Summary{}, fmt.Errorf("%w: no choices", summarize.ErrInvalidSummary)
	}
	msg := chat.Choices[0].Message
	if msg.Refusal != "" {
		return models.Summary{}, fmt.Errorf("%w: refused: %s", summarize.ErrInvalidSummary, msg.Refusal)
	}
	if chat.Choices[0].FinishReason == "length" {
		return models.Summary{}, fmt.Errorf("%w: response truncated", summarize.ErrInvalidSummary)
	}

	var out struct {
		Description *string `json:"description"`
		Title       *string `json:"title"`
	}
	dec := json.NewDecoder(strings.NewReader(msg.Content))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return models.Summary{}, fmt.Errorf("%w: %v", summarize.ErrInvalidSummary, err)
	}
	if out.Description == nil || out.Title == nil {
		return models.Summary{}, fmt.Errorf("%w: missing field", summarize.ErrInvalidSummary)
	}

	sum := models.Summary{
		Title:       strings.TrimSpace(*out.Title),
		Description: strings.TrimSpace(*out.Description),
		Usage:       chat.Usage,
	}
	if err := summarize.Validate(sum); err != nil {
		return models.Summary{}, err
	}
	return sum, nil
}
