package bus

import (
	"log/slog"
	"sync"
	"time"

	"coolcar/internal/domain"
)

const defaultPublishWait = 5 * time.Second

// InMemoryBus carries visitor messages from channels to the assistant loop
// and replies back to the channel that owns the chat.
type InMemoryBus struct {
	inbound     chan domain.InboundMessage
	handlers    map[string]func(domain.OutboundMessage)
	publishWait time.Duration
	mu          sync.RWMutex
	closed      bool
	logger      *slog.Logger
}

// New creates a bus with the given inbound buffer size.
func New(bufferSize int, logger *slog.Logger) *InMemoryBus {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &InMemoryBus{
		inbound:     make(chan domain.InboundMessage, bufferSize),
		handlers:    make(map[string]func(domain.OutboundMessage)),
		publishWait: defaultPublishWait,
		logger:      logger,
	}
}

// Publish queues a visitor message. When the buffer is full it waits up to
// publishWait before dropping the message.
func (b *InMemoryBus) Publish(msg domain.InboundMessage) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.logger.Warn("publish on closed bus", "channel", msg.Channel, "chat", msg.ChatID)
		return
	}

	select {
	case b.inbound <- msg:
		return
	default:
	}

	timer := time.NewTimer(b.publishWait)
	defer timer.Stop()
	select {
	case b.inbound <- msg:
	case <-timer.C:
		b.logger.Error("inbound message dropped, bus full",
			"channel", msg.Channel,
			"chat", msg.ChatID,
			"wait", b.publishWait,
		)
	}
}

func (b *InMemoryBus) Subscribe() <-chan domain.InboundMessage {
	return b.inbound
}

// SendOutbound hands a reply to the handler registered for its channel.
func (b *InMemoryBus) SendOutbound(msg domain.OutboundMessage) {
	b.mu.RLock()
	handler, ok := b.handlers[msg.Channel]
	b.mu.RUnlock()

	if !ok {
		b.logger.Warn("no outbound handler", "channel", msg.Channel, "chat", msg.ChatID)
		return
	}
	handler(msg)
}

func (b *InMemoryBus) OnOutbound(channelName string, handler func(domain.OutboundMessage)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[channelName] = handler
}

// Close stops the inbound stream. Further publishes are ignored.
func (b *InMemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		close(b.inbound)
	}
}
