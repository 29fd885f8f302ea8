package feed

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/jobradar/jobradar/pkg/domain"
)

// hashString returns a short stable hex digest of the input string.
// Pure function, the same input always produces the same digest.
func hashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}

// ArticleID derives a stable identity for a feed entry from its link, title
// and publication date. Identical entries retrieved on different days hash
// identically, which keeps dedup and selection stable across refetches.
func ArticleID(link, title string, pubDate time.Time) string {
	parts := []string{strings.TrimSpace(link), strings.TrimSpace(title)}
	if !pubDate.IsZero() {
		parts = append(parts, pubDate.UTC().Format(time.RFC3339))
	}
	return hashString(strings.Join(parts, "|"))
}

// Deduplicate collapses articles sharing the same ID into a single entry,
// keeping the first occurrence in input order. Idempotent: deduplicating an
// already-deduplicated list is a no-op.
func Deduplicate(articles []domain.Article) []domain.Article {
	seen := make(map[string]struct{}, len(articles))
	result := make([]domain.Article, 0, len(articles))
	for _, a := range articles {
		if _, ok := seen[a.ID]; ok {
			continue
		}
		seen[a.ID] = struct{}{}
		result = append(result, a)
	}
	return result
}
