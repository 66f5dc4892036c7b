package domain

import "context"

// Channel is a visitor-facing surface of the garage assistant (CLI, web widget, Telegram).
type Channel interface {
	Name() string
	Start(ctx context.Context, bus MessageBus) error
	Stop() error
	Send(ctx context.Context, chatID string, content string) error
}
