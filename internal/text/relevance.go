package text

import "strings"

// AutomotiveKeywords are counted when judging whether a snippet is about cars.
var AutomotiveKeywords = []string{
	"car", "vehicle", "auto", "repair", "maintenance", "engine",
	"transmission", "brake", "tire", "diagnostic", "mechanic",
}

// RelevanceWeights blends query similarity with automotive keyword density.
type RelevanceWeights struct {
	Similarity float64
	Keywords   float64
	// KeywordSaturation is the keyword count at which density tops out.
	KeywordSaturation int
}

// DefaultRelevanceWeights are tuned for short search snippets.
var DefaultRelevanceWeights = RelevanceWeights{Similarity: 0.7, Keywords: 0.3, KeywordSaturation: 10}

// Relevance scores content against query with DefaultRelevanceWeights.
func Relevance(content, query string) float64 {
	return DefaultRelevanceWeights.Score(content, query)
}

// Score returns a value in [0,1] when the weights sum to 1.
func (w RelevanceWeights) Score(content, query string) float64 {
	sat := w.KeywordSaturation
	if sat <= 0 {
		sat = 10
	}
	density := float64(KeywordCount(content)) / float64(sat)
	if density > 1 {
		density = 1
	}
	return w.Similarity*Similarity(content, query) + w.Keywords*density
}

// KeywordCount counts occurrences of automotive keywords in s, including
// inside longer words ("cars" counts for "car").
func KeywordCount(s string) int {
	lower := strings.ToLower(s)
	n := 0
	for _, k := range AutomotiveKeywords {
		n += strings.Count(lower, k)
	}
	return n
}

// ExtractAutomotive keeps the sentences of s that mention an automotive
// keyword and joins them with ". ".
func ExtractAutomotive(s string) string {
	var keep []string
	for _, sentence := range strings.FieldsFunc(s, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	}) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		lower := strings.ToLower(sentence)
		for _, k := range AutomotiveKeywords {
			if strings.Contains(lower, k) {
				keep = append(keep, sentence)
				break
			}
		}
	}
	return strings.Join(keep, ". ")
}
