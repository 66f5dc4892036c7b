// Package composer turns one visitor message into one bot reply. It is the
// only part of the chat engine with side effects: the optional augmentation
// call and the write to conversation memory.
package composer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"coolcar/internal/augment"
	"coolcar/internal/classifier"
	"coolcar/internal/domain"
	"coolcar/internal/memory"
	"coolcar/internal/metrics"
	"coolcar/internal/pattern"
)

const (
	DefaultReuseThreshold = 0.8
	DefaultEmojiRate      = 0.3
)

var emojis = []string{"🚗", "🔧", "👨‍🔧", "👍", "😊"}

// Reply is a composed answer and how it was produced.
type Reply struct {
	Text      string             `json:"text"`
	Source    domain.ReplySource `json:"source"`
	Context   domain.ContextTag  `json:"context"`
	Sentiment domain.Sentiment   `json:"sentiment"`
	Urgency   domain.Urgency     `json:"urgency"`

	// Pattern is the name of the first matching pattern, even when another
	// branch supplied the text. Empty when nothing matched.
	Pattern        string            `json:"pattern,omitempty"`
	PatternContext domain.ContextTag `json:"patternContext,omitempty"`
}

// Meta converts the reply into bus metadata.
func (r Reply) Meta() *domain.ReplyMeta {
	return &domain.ReplyMeta{Source: r.Source, Context: r.Context, Sentiment: r.Sentiment, Urgency: r.Urgency}
}

type Config struct {
	Memory    *memory.Memory
	Augment   *augment.Service // nil or disabled skips augmentation
	Responder *pattern.Responder
	Rand      pattern.Rand

	ReuseThreshold float64
	EmojiRate      float64
	BusinessName   string
	Phone          string

	Logger *slog.Logger
}

type Composer struct {
	memory    *memory.Memory
	augment   *augment.Service
	responder *pattern.Responder
	rnd       pattern.Rand

	reuseThreshold float64
	emojiRate      float64
	businessName   string
	phone          string

	fallbackTurn atomic.Uint64
	logger       *slog.Logger
}

func New(cfg Config) *Composer {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Rand == nil {
		cfg.Rand = pattern.DefaultRand()
	}
	if cfg.Responder == nil {
		builtin, err := pattern.Builtin()
		if err != nil {
			cfg.Logger.Error("built-in patterns invalid, replies use fallbacks only", "err", err)
		}
		cfg.Responder = pattern.NewResponder(builtin, cfg.Rand)
	}
	if cfg.Memory == nil {
		cfg.Memory = memory.New(context.Background(), memory.Config{Logger: cfg.Logger})
	}
	if cfg.ReuseThreshold <= 0 {
		cfg.ReuseThreshold = DefaultReuseThreshold
	}
	if cfg.EmojiRate < 0 {
		cfg.EmojiRate = 0
	}
	if cfg.BusinessName == "" {
		cfg.BusinessName = "Cool Car Auto Garage"
	}
	return &Composer{
		memory:         cfg.Memory,
		augment:        cfg.Augment,
		responder:      cfg.Responder,
		rnd:            cfg.Rand,
		reuseThreshold: cfg.ReuseThreshold,
		emojiRate:      cfg.EmojiRate,
		businessName:   cfg.BusinessName,
		phone:          cfg.Phone,
		logger:         cfg.Logger,
	}
}

// Greeting is the first line a new visitor sees.
func (c *Composer) Greeting() string {
	return fmt.Sprintf("Welcome to %s! I'm your AI assistant. How can I help you with your vehicle today? 🚗", c.businessName)
}

// Compose classifies msg, picks the best available answer, decorates it and
// records the exchange in memory. If ctx ends before the exchange is
// stored, nothing is stored and the error wraps domain.ErrCancelled.
func (c *Composer) Compose(ctx context.Context, msg string) (Reply, error) {
	start := time.Now()
	analysis := classifier.Analyze(msg)

	reply := Reply{
		Context:   analysis.Context,
		Sentiment: analysis.Sentiment,
		Urgency:   domain.UrgencyLow,
	}
	if analysis.Context == domain.ContextEmergency {
		reply.Urgency = domain.UrgencyHigh
	}
	if p, ok := c.responder.Match(msg); ok {
		reply.Pattern = p.Name
		reply.PatternContext = p.Context
		reply.Urgency = higher(reply.Urgency, p.Urgency)
	}

	if text, ok := c.recall(msg, analysis.Context); ok {
		reply.Text = text
		reply.Source = domain.SourceMemory
	} else {
		reply.Text, reply.Source = c.answer(ctx, msg)
		reply.Text = c.decorate(c.wrap(reply.Text, analysis))
	}

	if err := ctx.Err(); err != nil {
		return Reply{}, fmt.Errorf("%w: %v", domain.ErrCancelled, err)
	}
	c.memory.Store(ctx, domain.MemoryEntry{
		Question:      msg,
		Answer:        reply.Text,
		Context:       analysis.Context,
		Sentiment:     analysis.Sentiment,
		Effectiveness: analysis.Confidence,
	})
	metrics.MemoryEntries.Set(float64(c.memory.Len()))
	metrics.Replies.WithLabelValues(string(reply.Source), string(reply.Context)).Inc()
	metrics.ReplyLatency.Observe(time.Since(start).Seconds())

	c.logger.Debug("reply composed",
		"source", reply.Source,
		"context", reply.Context,
		"sentiment", reply.Sentiment,
		"pattern", reply.Pattern,
		"duration", time.Since(start))
	return reply, nil
}

// recall reuses a stored answer when a past question in the same context
// is close enough and went well.
func (c *Composer) recall(msg string, tag domain.ContextTag) (string, bool) {
	matches := c.memory.FindSimilar(msg, tag, 1)
	if len(matches) == 0 {
		return "", false
	}
	best := matches[0]
	if best.Similarity > c.reuseThreshold && best.Entry.Sentiment == domain.SentimentPositive {
		return best.Entry.Answer, true
	}
	return "", false
}

// answer tries augmentation, then the pattern table, then the fallback rotation.
func (c *Composer) answer(ctx context.Context, msg string) (string, domain.ReplySource) {
	if c.augment.Enabled() {
		res, err := c.augment.Augment(ctx, msg)
		if err == nil {
			return res.Text, domain.SourceAugment
		}
		if !errors.Is(err, domain.ErrUnavailable) {
			c.logger.Warn("augmentation failed", "err", err)
		}
	}
	if resp, ok := c.responder.Respond(msg); ok {
		return resp.Text, domain.SourcePattern
	}
	return c.fallback(), domain.SourceFallback
}

func (c *Composer) fallback() string {
	lines := []string{
		"I apologize, but I'm having trouble understanding. Could you please rephrase your question?",
		"Could you tell me a bit more about your vehicle and what you need help with?",
		fmt.Sprintf("I want to make sure you get the right answer. Please call us on %s or book a visit and our mechanics will take a look.", c.phoneOrDesk()),
		"I can help with repairs, maintenance, pricing and bookings. What would you like to know?",
	}
	n := c.fallbackTurn.Add(1) - 1
	return lines[n%uint64(len(lines))]
}

func (c *Composer) phoneOrDesk() string {
	if c.phone == "" {
		return "our front desk"
	}
	return c.phone
}

// wrap frames text with the context prefix and sentiment lines.
func (c *Composer) wrap(text string, a classifier.Analysis) string {
	var prefix string
	switch a.Context {
	case domain.ContextEmergency:
		prefix = "I'll help you right away. "
	case domain.ContextPricing:
		prefix = "Let me provide you with pricing information. "
	}

	switch a.Sentiment {
	case domain.SentimentNegative:
		return fmt.Sprintf("%sI understand your concern regarding %s. %s Is there anything specific I can clarify?", prefix, a.Context, text)
	case domain.SentimentPositive:
		return fmt.Sprintf("%sI'm glad I can help with your %s inquiry! %s", prefix, a.Context, text)
	}
	return prefix + text
}

// decorate appends an emoji to roughly emojiRate of replies.
func (c *Composer) decorate(text string) string {
	if c.rnd.Float64() <= 1-c.emojiRate {
		return text
	}
	return text + " " + emojis[c.rnd.IntN(len(emojis))]
}

func higher(a, b domain.Urgency) domain.Urgency {
	rank := map[domain.Urgency]int{domain.UrgencyLow: 0, domain.UrgencyMedium: 1, domain.UrgencyHigh: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
