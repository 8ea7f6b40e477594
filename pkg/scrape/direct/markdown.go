package direct

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// renderMarkdown turns readability's cleaned HTML into simple markdown:
// headings, paragraphs, list items, code blocks and blockquotes.
func renderMarkdown(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse content: %w", err)
	}

	var b strings.Builder
	doc.Find("h1,h2,h3,h4,h5,h6,p,li,pre,blockquote").Each(func(_ int, s *goquery.Selection) {
		// Blocks nested in another matched block are covered by its text.
		if s.ParentsFiltered("pre,blockquote,li").Length() > 0 {
			return
		}

		tag := goquery.NodeName(s)
		switch tag {
		case "pre":
			code := strings.TrimRight(s.Text(), "\n")
			if code == "" {
				return
			}
			b.WriteString("```\n")
			b.WriteString(code)
			b.WriteString("\n```\n\n")
			return
		}

		text := normalizeText(s.Text())
		if text == "" {
			return
		}
		switch tag {
		case "h1", "h2", "h3", "h4", "h5", "h6":
			level := int(tag[1] - '0')
			b.WriteString(strings.Repeat("#", level))
			b.WriteString(" ")
			b.WriteString(text)
			b.WriteString("\n\n")
		case "li":
			b.WriteString("- ")
			b.WriteString(text)
			b.WriteString("\n")
		case "blockquote":
			b.WriteString("> ")
			b.WriteString(text)
			b.WriteString("\n\n")
		default:
			b.WriteString(text)
			b.WriteString("\n\n")
		}
	})
	return strings.TrimSpace(b.String()) + "\n", nil
}

// metaDescription reads <meta name="description"> or og:description.
func metaDescription(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	for _, sel := range []string{`meta[name="description"]`, `meta[property="og:description"]`} {
		if v, ok := doc.Find(sel).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// normalizeText collapses whitespace runs and blank lines into single spaces.
func normalizeText(input string) string {
	return strings.Join(strings.Fields(input), " ")
}
