package vector

import (
	"math"
	"sort"
)

// Cosine returns the cosine similarity of a and b. Vectors of different
// length, empty vectors and zero-magnitude vectors all score 0.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// Rank scores every record against query and returns the best limit results
// in descending score order. Ties keep the input order.
func Rank(records []Record, query []float32, limit int) []Result {
	if limit <= 0 || len(records) == 0 {
		return nil
	}

	results := make([]Result, 0, len(records))
	for _, r := range records {
		results = append(results, Result{Record: r, Score: Cosine(query, r.Embedding)})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}
