// Package llmstxt assembles the llms.txt index and the llms-full.txt
// concatenation from summarized pages.
package llmstxt

import (
	"fmt"
	"strings"

	"github.com/pario-ai/llmstxt/pkg/models"
)

// Disclaimers appended to restricted-tier output.
const (
	IndexDisclaimer = "\n\n*Note: This is a full scrape of the website, and may not be representative of the entire site. Please enter a Firecrawl API key to get the entire site at llmstxt.firecrawl.dev.*"
	FullDisclaimer  = "\n\n*Note: This is a full scrape of the website, and may not be representative of the entire site. Please enter a Firecrawl API key to get the entire site at llmsfulltxt.firecrawl.dev.*"
)

// Builder accumulates both documents in page order.
type Builder struct {
	index strings.Builder
	full  strings.Builder
	pages int
}

// NewBuilder starts both documents with their headers for host.
func NewBuilder(host string) *Builder {
	b := &Builder{}
	fmt.Fprintf(&b.index, "# %s llms.txt\n\n", host)
	fmt.Fprintf(&b.full, "# %s llms-full.txt\n\n", host)
	return b
}

// Add appends one index line and the page's markdown.
func (b *Builder) Add(page models.PageResult, sum models.Summary) {
	fmt.Fprintf(&b.index, "- [%s](%s): %s\n", sum.Title, page.URL, sum.Description)
	b.full.WriteString(page.Markdown)
	b.pages++
}

// Pages returns how many pages were added.
func (b *Builder) Pages() int {
	return b.pages
}

// Documents finishes both documents for tier.
func (b *Builder) Documents(tier models.Tier) models.Documents {
	docs := models.Documents{
		LLMsTxt:     b.index.String(),
		LLMsFullTxt: b.full.String(),
	}
	if tier == models.TierRestricted {
		docs.LLMsTxt += IndexDisclaimer
		docs.LLMsFullTxt += FullDisclaimer
	}
	return docs
}
