// Package domain provides the job contract shared by every sync job and the
// filter accepted by every catalog repository.
package domain

import (
	"strings"
	"time"

	"erpsync/internal/domain/filter"
)

// SourceFilter restricts the rows a repository returns.
type SourceFilter struct {
	// Codes limits rows to the given natural keys (article codes, account
	// codes, seller emails). Empty means no restriction.
	Codes []string

	// Since limits rows to those changed at or after this instant, for
	// repositories that track changes. Zero means no restriction.
	Since time.Time

	// Advanced - произвольные отборы по колонкам источника
	Advanced []filter.Item
}

// CleanCodes returns Codes trimmed, without blanks and duplicates.
func (f SourceFilter) CleanCodes() []string {
	seen := make(map[string]bool, len(f.Codes))
	out := make([]string, 0, len(f.Codes))
	for _, c := range f.Codes {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// SinceDays returns a filter from the start of the day n days before now.
func SinceDays(now time.Time, n int) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d-n, 0, 0, 0, 0, now.Location())
}
