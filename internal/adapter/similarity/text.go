package similarity

import (
	"maps"
	"math"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/RBarbieri13/Decant-sub001/internal/domain"
)

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true, "be": true,
	"by": true, "for": true, "from": true, "in": true, "is": true, "it": true, "of": true,
	"on": true, "or": true, "that": true, "the": true, "this": true, "to": true, "with": true,
}

// Tokenize normalizes text (NFKC, Unicode case folding) and splits it into
// letter/number runs, dropping stopwords and single characters.
func Tokenize(text string) []string {
	folded := cases.Fold().String(norm.NFKC.String(text))
	fields := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) < 2 || stopwords[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}

// nodeText is the text a node contributes to term-based strategies.
func nodeText(n *domain.Node) string {
	return n.Title + " " + n.Description + " " + strings.Join(n.Tags, " ")
}

// termFrequencies counts tokens in a node's text.
func termFrequencies(n *domain.Node) map[string]float64 {
	tf := map[string]float64{}
	for _, tok := range Tokenize(nodeText(n)) {
		tf[tok]++
	}
	return tf
}

// sparseCosine computes cosine similarity between two sparse vectors.
// Zero vectors score 0. Keys are visited in sorted order so the result does
// not depend on map iteration.
func sparseCosine(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot, na, nb float64
	for _, k := range slices.Sorted(maps.Keys(a)) {
		v := a[k]
		dot += v * b[k]
		na += v * v
	}
	for _, k := range slices.Sorted(maps.Keys(b)) {
		v := b[k]
		nb += v * v
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return domain.ClampScore(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// CosineSimilarity computes cosine similarity between two dense vectors.
// Returns 0 for zero-norm vectors or mismatched lengths.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return domain.ClampScore(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
