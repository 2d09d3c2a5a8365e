package source

import (
	"strings"

	"wikirag/internal/worker"
)

// Filter keeps sources whose title or URL contains q, ignoring case. A blank
// q keeps everything.
func Filter(sources []worker.SourceSummary, q string) []worker.SourceSummary {
	q = strings.ToLower(strings.TrimSpace(q))
	out := make([]worker.SourceSummary, 0, len(sources))
	for _, s := range sources {
		if q == "" ||
			strings.Contains(strings.ToLower(s.Title), q) ||
			strings.Contains(strings.ToLower(s.URL), q) {
			out = append(out, s)
		}
	}
	return out
}
