package classifier

import (
	"testing"

	"coolcar/internal/domain"
)

func TestAnalyzeNoKeywords(t *testing.T) {
	for _, msg := range []string{"hello there", "", "???", "my brakes are grinding"} {
		a := Analyze(msg)
		if a.Sentiment != domain.SentimentNeutral || a.Confidence != 0.5 || a.Context != domain.ContextGeneral {
			t.Errorf("Analyze(%q) = %+v, want neutral/0.5/general", msg, a)
		}
	}
}

func TestAnalyzeSentiment(t *testing.T) {
	tests := []struct {
		msg       string
		score     int
		sentiment domain.Sentiment
		conf      float64
	}{
		{"great service thanks", 2, domain.SentimentPositive, 2.0 / 3.0},
		{"terrible, slow and expensive", -3, domain.SentimentNegative, 0.75},
		{"good but slow", 0, domain.SentimentNeutral, 2.0 / 3.0},
		{"I don't know", -1, domain.SentimentNegative, 1.0 / 3.0},
	}
	for _, tt := range tests {
		a := Analyze(tt.msg)
		if a.Score != tt.score || a.Sentiment != tt.sentiment {
			t.Errorf("Analyze(%q) score=%d sentiment=%s, want %d %s", tt.msg, a.Score, a.Sentiment, tt.score, tt.sentiment)
		}
		if diff := a.Confidence - tt.conf; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("Analyze(%q) confidence=%v, want %v", tt.msg, a.Confidence, tt.conf)
		}
	}
}

func TestContextFirstMatchWins(t *testing.T) {
	tests := []struct {
		msg  string
		want domain.ContextTag
	}{
		{"can you fix my car", domain.ContextRepair},
		// oil is both maintenance and parts; maintenance is listed first.
		{"I need an oil change", domain.ContextMaintenance},
		{"book an appointment", domain.ContextBooking},
		{"what does it cost", domain.ContextPricing},
		{"new battery please", domain.ContextParts},
		{"URGENT help", domain.ContextEmergency},
		{"is this under warranty", domain.ContextWarranty},
		{"the ECU throws a code", domain.ContextTechnical},
		{"I want to leave a review", domain.ContextFeedback},
		// repair beats pricing.
		{"how much to repair", domain.ContextRepair},
		{"nothing in particular", domain.ContextGeneral},
	}
	for _, tt := range tests {
		if got := Context(tt.msg); got != tt.want {
			t.Errorf("Context(%q) = %s, want %s", tt.msg, got, tt.want)
		}
	}
}

func TestContextIsWordBounded(t *testing.T) {
	if got := Context("booking"); got != domain.ContextGeneral {
		t.Fatalf("expected whole-word match only, got %s", got)
	}
}
