package mcp

import (
	"fmt"
	"strings"
	"time"

	"github.com/pario-ai/llmstxt/pkg/models"
)

func formatCacheStats(st models.CacheStats, maxAge time.Duration) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Entries: %d\n", st.Entries)
	fmt.Fprintf(&b, "Hosts:   %d\n", st.Hosts)
	fmt.Fprintf(&b, "Stale:   %d (older than %s)\n", st.Stale, maxAge)
	return b.String()
}

// formatSummary formats generation summaries as a text table.
func formatSummary(rows []models.GenerationSummary) string {
	if len(rows) == 0 {
		return "No generations recorded."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-30s %-12s %8s %10s %8s %10s\n",
		"Host", "Tier", "Requests", "Cache Hits", "Pages", "Tokens")
	b.WriteString(strings.Repeat("-", 83) + "\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "%-30s %-12s %8d %10d %8d %10d\n",
			truncate(r.Host, 30), models.TierFromNoLimit(r.NoLimit), r.RequestCount, r.CacheHits, r.TotalPages, r.TotalTokens)
	}
	return b.String()
}

// formatRecent formats generation records, newest first.
func formatRecent(recs []models.GenerationRecord) string {
	if len(recs) == 0 {
		return "No generations recorded."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s %-30s %-12s %5s %5s %-5s %8s %10s\n",
		"Time", "Host", "Tier", "URLs", "Pages", "Cache", "Tokens", "Duration")
	b.WriteString(strings.Repeat("-", 104) + "\n")
	for _, r := range recs {
		cache := "miss"
		if r.CacheHit {
			cache = "hit"
		}
		fmt.Fprintf(&b, "%-20s %-30s %-12s %5d %5d %-5s %8d %8dms\n",
			r.CreatedAt.Format("2006-01-02 15:04:05"), truncate(r.Host, 30), models.TierFromNoLimit(r.NoLimit),
			r.URLCount, r.PageCount, cache, r.TotalTokens, r.DurationMs)
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
