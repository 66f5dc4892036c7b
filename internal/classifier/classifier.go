// Package classifier scores the sentiment of a visitor message and tags its topic.
package classifier

import (
	"regexp"

	"coolcar/internal/domain"
	"coolcar/internal/text"
)

// Analysis is the classifier's verdict on one message.
type Analysis struct {
	Score      int               `json:"score"`
	Sentiment  domain.Sentiment  `json:"sentiment"`
	Confidence float64           `json:"confidence"`
	Context    domain.ContextTag `json:"context"`
}

var positiveWords = wordSet(
	"good", "great", "excellent", "amazing", "wonderful", "fantastic", "helpful",
	"thanks", "thank", "appreciate", "happy", "pleased", "perfect", "best",
	"smooth", "quiet", "fixed", "resolved", "reliable", "efficient", "fast",
)

var negativeWords = wordSet(
	"bad", "poor", "terrible", "horrible", "awful", "disappointed", "unhappy",
	"slow", "expensive", "rude", "waste", "wrong", "not", "dont", "cant",
	"broken", "noisy", "leak", "problem", "issue", "fault", "failed", "stuck",
)

type topic struct {
	tag domain.ContextTag
	re  *regexp.Regexp
}

// topics are tested in order and the first hit wins.
var topics = []topic{
	{domain.ContextRepair, regexp.MustCompile(`(?i)\b(repair|fix|broken|issue|problem|fault|service)\b`)},
	{domain.ContextMaintenance, regexp.MustCompile(`(?i)\b(maintenance|oil|check|inspect|tune|filter)\b`)},
	{domain.ContextBooking, regexp.MustCompile(`(?i)\b(book|schedule|appointment|available|when|time)\b`)},
	{domain.ContextPricing, regexp.MustCompile(`(?i)\b(cost|price|expensive|cheap|quote|estimate|fee)\b`)},
	{domain.ContextParts, regexp.MustCompile(`(?i)\b(part|tire|brake|engine|transmission|battery|oil|filter)\b`)},
	{domain.ContextEmergency, regexp.MustCompile(`(?i)\b(emergency|urgent|asap|quickly|stuck|broke|down)\b`)},
	{domain.ContextWarranty, regexp.MustCompile(`(?i)\b(warranty|guarantee|guaranteed|covered|coverage)\b`)},
	{domain.ContextTechnical, regexp.MustCompile(`(?i)\b(diagnostic|diagnostics|obd|code|sensor|ecu|computer|electrical|wiring)\b`)},
	{domain.ContextFeedback, regexp.MustCompile(`(?i)\b(review|feedback|complain|complaint|recommend|experience)\b`)},
}

// Analyze classifies msg. A message with no recognised keywords is neutral
// with confidence 0.5 and context general.
func Analyze(msg string) Analysis {
	tokens := text.Tokens(msg)
	score, matched := 0, 0
	for _, tok := range tokens {
		if _, ok := positiveWords[tok]; ok {
			score++
			matched++
		} else if _, ok := negativeWords[tok]; ok {
			score--
			matched++
		}
	}

	a := Analysis{
		Score:      score,
		Sentiment:  domain.SentimentNeutral,
		Confidence: 0.5,
		Context:    Context(msg),
	}
	switch {
	case score > 0:
		a.Sentiment = domain.SentimentPositive
	case score < 0:
		a.Sentiment = domain.SentimentNegative
	}
	if matched > 0 {
		a.Confidence = min(float64(matched)/float64(len(tokens)), 1)
	}
	return a
}

// Context returns the first topic whose pattern matches msg, or general.
func Context(msg string) domain.ContextTag {
	for _, t := range topics {
		if t.re.MatchString(msg) {
			return t.tag
		}
	}
	return domain.ContextGeneral
}

func wordSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
