package embedding

import (
	"math"
	"strings"
)

// maxHashedWords bounds how many leading words feed the hash buckets.
const maxHashedWords = 100

// HashVector builds the deterministic offline embedding. Each of the first
// maxHashedWords words adds 1/wordCount to bucket hash(word) % dim, slots 0-2
// carry length, word count and '.' density, and the result is L2-normalized.
func HashVector(text string, dim int) []float32 {
	if dim < 3 {
		dim = 3
	}
	vec := make([]float64, dim)

	words := strings.Fields(text)
	if n := len(words); n > 0 {
		weight := 1.0 / float64(n)
		for _, w := range words[:min(n, maxHashedWords)] {
			vec[wordHash(w)%uint32(dim)] += weight
		}
	}

	vec[0] = float64(len(text)) / 1000
	vec[1] = float64(len(words)) / 100
	vec[2] = float64(strings.Count(text, ".")) / 10

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	out := make([]float32, dim)
	for i, v := range vec {
		if norm > 0 {
			v /= norm
		}
		out[i] = float32(v)
	}
	return out
}

// wordHash is a base-31 polynomial rolling hash over the word's bytes.
func wordHash(word string) uint32 {
	var h uint32
	for i := 0; i < len(word); i++ {
		h = h*31 + uint32(word[i])
	}
	return h
}
