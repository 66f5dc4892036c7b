// Package pattern matches visitor messages against an ordered table of canned replies.
package pattern

import (
	"math/rand/v2"

	"coolcar/internal/domain"
)

// Rand is the randomness the responder and composer draw from. *rand.Rand satisfies it.
type Rand interface {
	IntN(n int) int
	Float64() float64
}

type globalRand struct{}

func (globalRand) IntN(n int) int   { return rand.IntN(n) }
func (globalRand) Float64() float64 { return rand.Float64() }

// DefaultRand uses the math/rand/v2 global source.
func DefaultRand() Rand { return globalRand{} }

// Response is a chosen reply and the pattern that produced it.
type Response struct {
	Text    string
	Pattern *domain.BotPattern
}

// Responder scans its table top to bottom and stops at the first match.
// The table is fixed at construction and never modified.
type Responder struct {
	patterns []domain.BotPattern
	rnd      Rand
}

// NewResponder copies patterns into a read-only table. A nil rnd uses DefaultRand.
func NewResponder(patterns []domain.BotPattern, rnd Rand) *Responder {
	if rnd == nil {
		rnd = DefaultRand()
	}
	table := make([]domain.BotPattern, len(patterns))
	copy(table, patterns)
	return &Responder{patterns: table, rnd: rnd}
}

// Match returns the first pattern whose trigger matches msg.
func (r *Responder) Match(msg string) (*domain.BotPattern, bool) {
	for i := range r.patterns {
		if r.patterns[i].Trigger.MatchString(msg) {
			return &r.patterns[i], true
		}
	}
	return nil, false
}

// Respond picks one of the matched pattern's responses uniformly at random
// and appends its follow-up after a space.
func (r *Responder) Respond(msg string) (Response, bool) {
	p, ok := r.Match(msg)
	if !ok || len(p.Responses) == 0 {
		return Response{}, false
	}
	text := p.Responses[r.rnd.IntN(len(p.Responses))]
	if p.FollowUp != "" {
		text += " " + p.FollowUp
	}
	return Response{Text: text, Pattern: p}, true
}

// Patterns returns a copy of the table in priority order.
func (r *Responder) Patterns() []domain.BotPattern {
	out := make([]domain.BotPattern, len(r.patterns))
	copy(out, r.patterns)
	return out
}
