// Package assistant runs the garage chat: it keeps a session per visitor,
// drives the booking dialogue and hands everything else to the composer.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"coolcar/internal/booking"
	"coolcar/internal/composer"
	"coolcar/internal/domain"
	"coolcar/internal/relay"
)

const defaultConcurrency = 8

// Assistant consumes inbound chat messages and produces replies.
type Assistant struct {
	composer    *composer.Composer
	sessions    *SessionManager
	book        *booking.Book
	relay       *relay.Relay
	bus         domain.MessageBus
	phone       string
	concurrency int
	now         func() time.Time
	logger      *slog.Logger
}

type Config struct {
	Composer    *composer.Composer
	Sessions    *SessionManager
	Book        *booking.Book
	Relay       *relay.Relay // nil or unconfigured keeps bookings local
	Bus         domain.MessageBus
	Phone       string
	Concurrency int // max messages handled at once
	Logger      *slog.Logger
}

func New(cfg Config) *Assistant {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Sessions == nil {
		cfg.Sessions = NewSessionManager(cfg.Book, DefaultBufferSize)
	}
	return &Assistant{
		composer:    cfg.Composer,
		sessions:    cfg.Sessions,
		book:        cfg.Book,
		relay:       cfg.Relay,
		bus:         cfg.Bus,
		phone:       cfg.Phone,
		concurrency: cfg.Concurrency,
		now:         time.Now,
		logger:      cfg.Logger,
	}
}

func (a *Assistant) Sessions() *SessionManager { return a.sessions }

// Greeting is the opening line for a new chat.
func (a *Assistant) Greeting() string { return a.composer.Greeting() }

// Run consumes inbound messages from the bus until ctx ends, handling at
// most the configured number at once. It returns only after every message
// it started has finished.
func (a *Assistant) Run(ctx context.Context) {
	a.logger.Info("assistant started", "concurrency", a.concurrency)

	var wg sync.WaitGroup
	defer wg.Wait()

	sem := make(chan struct{}, a.concurrency)
	inbound := a.bus.Subscribe()
	for {
		select {
		case <-ctx.Done():
			a.logger.Info("assistant stopping")
			return
		case msg, ok := <-inbound:
			if !ok {
				a.logger.Info("inbound channel closed, assistant stopping")
				return
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				a.logger.Info("assistant stopping, message not handled", "chat", msg.ChatID)
				return
			}
			wg.Add(1)
			go func(m domain.InboundMessage) {
				defer wg.Done()
				defer func() { <-sem }()
				a.process(ctx, m)
			}(msg)
		}
	}
}

func (a *Assistant) process(ctx context.Context, msg domain.InboundMessage) {
	reply, err := a.Handle(ctx, msg)
	if errors.Is(err, domain.ErrCancelled) {
		a.logger.Debug("message abandoned", "channel", msg.Channel, "chat", msg.ChatID)
		return
	}
	if err != nil {
		a.logger.Error("message handling failed", "channel", msg.Channel, "chat", msg.ChatID, "err", err)
		reply = composer.Reply{Text: "Sorry, something went wrong on our side. Please try again.", Source: domain.SourceFallback}
	}
	a.bus.SendOutbound(domain.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		Content: reply.Text,
		Reply:   reply.Meta(),
	})
}

// ProcessDirect handles one message synchronously, for callers that need
// the reply in hand (CLI, HTTP).
func (a *Assistant) ProcessDirect(ctx context.Context, channel, chatID, content string) (composer.Reply, error) {
	return a.Handle(ctx, domain.InboundMessage{
		Channel:   channel,
		ChatID:    chatID,
		SenderID:  chatID,
		Content:   content,
		Timestamp: a.now(),
	})
}

// Handle answers msg within its session. Messages of one chat are handled
// one at a time, in arrival order per caller.
func (a *Assistant) Handle(ctx context.Context, msg domain.InboundMessage) (composer.Reply, error) {
	content := strings.TrimSpace(msg.Content)
	if content == "" {
		return composer.Reply{}, errors.New("empty message")
	}

	s := a.sessions.GetOrCreate(msg.Channel, msg.ChatID)
	s.mu.Lock()
	defer s.mu.Unlock()

	a.logger.Info("handling message", "channel", msg.Channel, "chat", msg.ChatID, "len", len(content))
	s.record(domain.SenderUser, content, a.now())

	reply, err := a.reply(ctx, s, content)
	if err != nil {
		return composer.Reply{}, err
	}
	s.record(domain.SenderBot, reply.Text, a.now())
	return reply, nil
}

func (a *Assistant) reply(ctx context.Context, s *Session, content string) (composer.Reply, error) {
	if cmd := ParseCommand(content); cmd != nil {
		if text, ok := a.command(ctx, s, cmd); ok {
			return a.bookingReply(text), nil
		}
	}
	if s.booking {
		return a.bookingReply(a.continueBooking(ctx, s, content)), nil
	}

	r, err := a.composer.Compose(ctx, content)
	if err != nil {
		return composer.Reply{}, err
	}
	if r.PatternContext == domain.ContextBookingStart {
		r.Text = a.startBooking(s, r.Text)
		r.Source = domain.SourceBooking
	}
	return r, nil
}

func (a *Assistant) bookingReply(text string) composer.Reply {
	return composer.Reply{
		Text:      text,
		Source:    domain.SourceBooking,
		Context:   domain.ContextBooking,
		Sentiment: domain.SentimentNeutral,
		Urgency:   domain.UrgencyLow,
	}
}

// Insights summarizes a chat's transcript.
func (a *Assistant) Insights(channel, chatID string) (Insights, error) {
	s, ok := a.sessions.Get(channel, chatID)
	if !ok {
		return Insights{}, fmt.Errorf("chat %s: %w", chatID, domain.ErrNotFound)
	}
	return Analyze(s.Messages()), nil
}

// Transcript returns a chat's display buffer.
func (a *Assistant) Transcript(channel, chatID string) ([]domain.ChatMessage, error) {
	s, ok := a.sessions.Get(channel, chatID)
	if !ok {
		return nil, fmt.Errorf("chat %s: %w", chatID, domain.ErrNotFound)
	}
	return s.Messages(), nil
}
