package retrieval

import (
	"math"
	"strings"
)

// score ranks a candidate against a query. Cosine over embeddings when both
// vectors are present, otherwise a lexical heuristic: a substring hit scores
// 1.0, partial token overlap scores a fraction of 0.1.
func score(queryText string, queryEmb []float64, candText string, candEmb []float64) float64 {
	if len(queryEmb) > 0 && len(candEmb) > 0 {
		return cosineSimilarity(queryEmb, candEmb)
	}
	return lexicalScore(queryText, candText)
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func lexicalScore(query, candidate string) float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	t := strings.ToLower(candidate)
	if q == "" {
		return 0
	}
	if strings.Contains(t, q) {
		return 1.0
	}
	words := strings.Fields(q)
	if len(words) == 0 {
		return 0
	}
	seen := make(map[string]struct{}, len(words))
	common := 0
	for _, w := range words {
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		if strings.Contains(t, w) {
			common++
		}
	}
	return float64(common) / float64(len(seen)) * 0.1
}

// normalizeText is the dedup key for merged retrieval results: lower-cased
// with all whitespace runs collapsed.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
