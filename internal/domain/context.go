package domain

import "fmt"

// ContextTag is the topic label used to scope memory lookups and response tone.
type ContextTag string

// Topic tags produced by the classifier, in match priority order after ContextGeneral.
const (
	ContextGeneral     ContextTag = "general"
	ContextRepair      ContextTag = "repair"
	ContextMaintenance ContextTag = "maintenance"
	ContextBooking     ContextTag = "booking"
	ContextPricing     ContextTag = "pricing"
	ContextParts       ContextTag = "parts"
	ContextEmergency   ContextTag = "emergency"
	ContextWarranty    ContextTag = "warranty"
	ContextTechnical   ContextTag = "technical"
	ContextFeedback    ContextTag = "feedback"
)

// Tags that only appear on patterns.
const (
	ContextGreeting     ContextTag = "greeting"
	ContextHours        ContextTag = "hours"
	ContextLocation     ContextTag = "location"
	ContextServices     ContextTag = "services"
	ContextBookingStart ContextTag = "booking_start"
	ContextFarewell     ContextTag = "farewell"
)

var contextTags = []ContextTag{
	ContextGeneral, ContextRepair, ContextMaintenance, ContextBooking, ContextPricing,
	ContextParts, ContextEmergency, ContextWarranty, ContextTechnical, ContextFeedback,
	ContextGreeting, ContextHours, ContextLocation, ContextServices, ContextBookingStart,
	ContextFarewell,
}

// ContextTags returns every known tag.
func ContextTags() []ContextTag {
	out := make([]ContextTag, len(contextTags))
	copy(out, contextTags)
	return out
}

func (c ContextTag) Valid() bool {
	for _, t := range contextTags {
		if t == c {
			return true
		}
	}
	return false
}

// ParseContextTag maps a string to a known tag. The empty string is general.
func ParseContextTag(s string) (ContextTag, error) {
	if s == "" {
		return ContextGeneral, nil
	}
	c := ContextTag(s)
	if !c.Valid() {
		return ContextGeneral, fmt.Errorf("unknown context tag %q", s)
	}
	return c, nil
}

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// ParseUrgency maps a string to an urgency level. The empty string is low.
func ParseUrgency(s string) (Urgency, error) {
	switch Urgency(s) {
	case "", UrgencyLow:
		return UrgencyLow, nil
	case UrgencyMedium:
		return UrgencyMedium, nil
	case UrgencyHigh:
		return UrgencyHigh, nil
	}
	return UrgencyLow, fmt.Errorf("unknown urgency %q", s)
}
