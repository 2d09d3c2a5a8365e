package text

import (
	"strings"
	"unicode"
)

// Split cuts content into windows of chunkSize whitespace-delimited words,
// advancing by chunkSize-overlap words per window. Content that fits in one
// window is returned whole (trimmed).
//
// Callers are expected to validate overlap < chunkSize up front. Out-of-range
// values are clamped so the window always advances.
func Split(content string, chunkSize, overlap int) []string {
	words := strings.Fields(content)
	if chunkSize <= 0 || len(words) <= chunkSize {
		return []string{strings.TrimSpace(content)}
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}

	var chunks []string
	start := 0
	for {
		end := min(start+chunkSize, len(words))

		chunk := strings.Join(words[start:end], " ")
		if strings.TrimSpace(chunk) != "" {
			chunks = append(chunks, chunk)
		}

		if end >= len(words) {
			break
		}
		start = end - overlap
	}
	return chunks
}

// IsNoise reports whether a chunk is too short to be worth embedding.
func IsNoise(content string, minChars int) bool {
	return len(strings.TrimSpace(content)) < minChars
}

// SanitizeID turns a page title into the stem of a chunk id: alphanumerics and
// spaces survive, spaces become underscores, everything is lowercased.
func SanitizeID(title string) string {
	var b strings.Builder
	for _, r := range title {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		case r == ' ':
			b.WriteByte('_')
		}
	}
	return b.String()
}
