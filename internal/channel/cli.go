// Package channel connects visitors to the assistant: a terminal REPL, the
// website gateway (REST and WebSocket) and an optional Telegram bot.
package channel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"coolcar/internal/domain"
)

const cliReplyTimeout = 2 * time.Minute

// CLI implements domain.Channel for interactive terminal chat. Each line is
// published to the bus and the REPL waits for its reply before prompting
// again.
type CLI struct {
	bus      domain.MessageBus
	greeting string
	chatID   string
	spinner  bool
	logger   *slog.Logger
	in       io.Reader
	out      io.Writer
	replies  chan domain.OutboundMessage

	thinking  bool
	thinkMu   sync.Mutex
	thinkStop chan struct{}
}

type CLIConfig struct {
	Greeting string
	ChatID   string // defaults to "direct"
	Spinner  bool
	Logger   *slog.Logger
	In       io.Reader
	Out      io.Writer
}

func NewCLI(cfg CLIConfig) *CLI {
	if cfg.In == nil {
		cfg.In = os.Stdin
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.ChatID == "" {
		cfg.ChatID = "direct"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &CLI{
		greeting: cfg.Greeting,
		chatID:   cfg.ChatID,
		spinner:  cfg.Spinner,
		logger:   cfg.Logger,
		in:       cfg.In,
		out:      cfg.Out,
		replies:  make(chan domain.OutboundMessage, 1),
	}
}

func (c *CLI) Name() string { return "cli" }

// Start runs the REPL until EOF, /quit or ctx is cancelled.
func (c *CLI) Start(ctx context.Context, bus domain.MessageBus) error {
	c.bus = bus
	bus.OnOutbound(c.Name(), func(msg domain.OutboundMessage) {
		select {
		case c.replies <- msg:
		default:
			c.logger.Warn("cli reply dropped", "chat", msg.ChatID)
		}
	})

	_, _ = fmt.Fprintln(c.out, "Cool Car Auto chat. Type your message and press Enter. Type /quit to exit.")
	if c.greeting != "" {
		c.print(c.greeting)
	}
	_, _ = fmt.Fprint(c.out, "You> ")

	scanner := bufio.NewScanner(c.in)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if !scanner.Scan() {
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			_, _ = fmt.Fprint(c.out, "You> ")
			continue
		}
		if line == "/quit" || line == "/exit" || line == "/q" {
			c.logger.Info("user requested quit")
			return nil
		}

		c.startThinking()
		c.bus.Publish(domain.InboundMessage{
			Channel:   c.Name(),
			ChatID:    c.chatID,
			SenderID:  "user",
			Content:   line,
			Timestamp: time.Now(),
		})
		if !c.await(ctx) {
			return nil
		}
		_, _ = fmt.Fprint(c.out, "You> ")
	}
}

// await prints the next reply. It reports false when ctx ended first.
func (c *CLI) await(ctx context.Context) bool {
	timer := time.NewTimer(cliReplyTimeout)
	defer timer.Stop()
	defer c.stopThinking()

	select {
	case msg := <-c.replies:
		c.stopThinking()
		c.print(msg.Content)
		return true
	case <-timer.C:
		c.stopThinking()
		_, _ = fmt.Fprintln(c.out, "\nNo reply yet, please try again.")
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *CLI) print(content string) {
	_, _ = fmt.Fprintln(c.out, "--- Cool Car Auto ---")
	_, _ = fmt.Fprintln(c.out, content)
	_, _ = fmt.Fprintln(c.out, "---------------------")
}

func (c *CLI) startThinking() {
	if !c.spinner {
		return
	}
	c.thinkMu.Lock()
	defer c.thinkMu.Unlock()
	if c.thinking {
		return
	}
	c.thinking = true
	c.thinkStop = make(chan struct{})
	go func(stop chan struct{}) {
		frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
		i := 0
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				fmt.Fprintf(c.out, "\r%s Typing...", frames[i%len(frames)])
				i++
			}
		}
	}(c.thinkStop)
}

func (c *CLI) stopThinking() {
	c.thinkMu.Lock()
	defer c.thinkMu.Unlock()
	if !c.thinking {
		return
	}
	c.thinking = false
	close(c.thinkStop)
	_, _ = fmt.Fprint(c.out, "\r\033[K")
}

// Stop is a no-op; the REPL ends when Start returns.
func (c *CLI) Stop() error { return nil }

func (c *CLI) Send(ctx context.Context, chatID string, content string) error {
	_, err := fmt.Fprintln(c.out, content)
	return err
}
