package domain

import (
	"errors"
	"time"
)

// ErrCancelled reports an exchange abandoned before it was stored.
var ErrCancelled = errors.New("exchange cancelled")

type InboundMessage struct {
	Channel   string
	ChatID    string
	SenderID  string
	Content   string
	Timestamp time.Time
}

type OutboundMessage struct {
	Channel string
	ChatID  string
	Content string
	Reply   *ReplyMeta // nil for system notices
}

// ReplyMeta describes how a bot reply was produced.
type ReplyMeta struct {
	Source    ReplySource `json:"source"`
	Context   ContextTag  `json:"context"`
	Sentiment Sentiment   `json:"sentiment"`
	Urgency   Urgency     `json:"urgency"`
}

type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// ChatMessage is one line of a visitor's transcript.
type ChatMessage struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// ReplySource names the composer branch that produced a reply.
type ReplySource string

const (
	SourceMemory   ReplySource = "memory"
	SourceAugment  ReplySource = "augmentation"
	SourcePattern  ReplySource = "pattern"
	SourceFallback ReplySource = "fallback"
	SourceBooking  ReplySource = "booking"
)
