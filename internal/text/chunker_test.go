package text

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func words(n int) string {
	w := make([]string, n)
	for i := range w {
		w[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(w, " ")
}

func TestSplit_SingleChunk(t *testing.T) {
	tests := []struct {
		name    string
		content string
		size    int
	}{
		{"Short", "  hello world  ", 10},
		{"Exact", words(10), 10},
		{"Multiline", "a\nb\tc", 3},
		{"Empty", "   ", 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Split(tt.content, tt.size, 2)
			require.Len(t, got, 1)
			assert.Equal(t, strings.TrimSpace(tt.content), got[0])
		})
	}
}

func TestSplit_WindowCountAndOverlap(t *testing.T) {
	tests := []struct {
		wordCount int
		size      int
		overlap   int
	}{
		{11, 10, 2},
		{100, 10, 3},
		{1000, 512, 50},
		{25, 5, 0},
		{26, 5, 4},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d/%d", tt.wordCount, tt.size, tt.overlap), func(t *testing.T) {
			chunks := Split(words(tt.wordCount), tt.size, tt.overlap)

			want := int(math.Ceil(float64(tt.wordCount-tt.overlap) / float64(tt.size-tt.overlap)))
			assert.Len(t, chunks, want)

			for i := 1; i < len(chunks); i++ {
				prev := strings.Fields(chunks[i-1])
				cur := strings.Fields(chunks[i])
				if tt.overlap > 0 {
					assert.Equal(t, prev[len(prev)-tt.overlap:], cur[:tt.overlap], "boundary %d", i)
				}
				assert.LessOrEqual(t, len(cur), tt.size)
			}

			last := strings.Fields(chunks[len(chunks)-1])
			assert.Equal(t, fmt.Sprintf("w%d", tt.wordCount-1), last[len(last)-1])
		})
	}
}

func TestSplit_Deterministic(t *testing.T) {
	content := words(300)
	assert.Equal(t, Split(content, 40, 7), Split(content, 40, 7))
}

func TestSplit_InvalidOverlapTerminates(t *testing.T) {
	chunks := Split(words(30), 10, 10)
	assert.Len(t, chunks, 3)

	chunks = Split(words(30), 10, 25)
	assert.Len(t, chunks, 3)
}

func TestIsNoise(t *testing.T) {
	assert.True(t, IsNoise("   short   ", 50))
	assert.True(t, IsNoise("", 1))
	assert.False(t, IsNoise(strings.Repeat("x", 50), 50))
}

func TestSanitizeID(t *testing.T) {
	tests := map[string]string{
		"Clay forming":        "clay_forming",
		"Main Page":           "main_page",
		"Copper (Native)":     "copper_native",
		"Knapping: Flint 101": "knapping_flint_101",
		"":                    "",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeID(in), in)
	}
}
