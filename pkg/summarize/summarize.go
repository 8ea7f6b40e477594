// Package summarize defines the per-page structured completion contract.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pario-ai/llmstxt/pkg/models"
)

// ErrInvalidSummary is returned when the provider's structured response is
// missing or does not match the two-field shape.
var ErrInvalidSummary = errors.New("invalid structured summary")

// Summarizer produces a title and description for one scraped page.
type Summarizer interface {
	Summarize(ctx context.Context, page models.PageResult) (models.Summary, error)
}

// Prompt builds the user message sent for page. maxChars caps the markdown
// embedded in the prompt; zero means no cap.
func Prompt(page models.PageResult, maxChars int) string {
	content := page.Markdown
	if maxChars > 0 && len(content) > maxChars {
		content = truncateUTF8(content, maxChars)
	}
	return fmt.Sprintf("Generate a 9-10 word description and a 3-4 word title of the entire page based on ALL the content one will find on the page for this url: %s. This will help in a user finding the page for its intended purpose. Here is the content: %s", page.URL, content)
}

// Validate checks that s carries both fields.
func Validate(s models.Summary) error {
	if strings.TrimSpace(s.Title) == "" {
		return fmt.Errorf("%w: empty title", ErrInvalidSummary)
	}
	if strings.TrimSpace(s.Description) == "" {
		return fmt.Errorf("%w: empty description", ErrInvalidSummary)
	}
	return nil
}

func truncateUTF8(s string, n int) string {
	for n > 0 && n < len(s) && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
