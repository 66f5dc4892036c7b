package augment

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"coolcar/internal/domain"
)

// Chain tries each completer in order and returns the first answer.
type Chain struct {
	completers []domain.Completer
	logger     *slog.Logger
}

func NewChain(completers []domain.Completer, logger *slog.Logger) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{completers: completers, logger: logger}
}

func (c *Chain) Name() string {
	names := make([]string, len(c.completers))
	for i, p := range c.completers {
		names[i] = p.Name()
	}
	return "chain(" + strings.Join(names, "→") + ")"
}

func (c *Chain) Complete(ctx context.Context, prompt string) (string, error) {
	if len(c.completers) == 0 {
		return "", domain.ErrUnavailable
	}
	var lastErr error
	for i, p := range c.completers {
		out, err := p.Complete(ctx, prompt)
		if err == nil {
			if i > 0 {
				c.logger.Info("failover: used fallback model", "model", p.Name(), "attempt", i+1)
			}
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		c.logger.Warn("failover: model failed, trying next", "model", p.Name(), "attempt", i+1, "err", err)
	}
	return "", fmt.Errorf("all models failed: %w", lastErr)
}
