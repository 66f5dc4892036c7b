// Package browser renders pages in headless Chrome for sites whose content
// only appears after scripts run.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/chromedp/chromedp"
)

const defaultRenderTimeout = 20 * time.Second

// Renderer loads a page in headless Chrome and returns the resulting DOM.
type Renderer struct {
	profileDir string
	execPath   string
	timeout    time.Duration
	logger     *slog.Logger
}

// RendererConfig holds configuration for the renderer.
type RendererConfig struct {
	ProfileDir string // Chrome user data directory; empty uses a throwaway profile
	ExecPath   string // Chrome binary; empty lets chromedp find one
	Timeout    time.Duration
	Logger     *slog.Logger
}

func NewRenderer(cfg RendererConfig) *Renderer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRenderTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Renderer{
		profileDir: cfg.ProfileDir,
		execPath:   cfg.ExecPath,
		timeout:    cfg.Timeout,
		logger:     cfg.Logger,
	}
}

// newContext creates a chromedp context. The caller MUST call cancel().
func (r *Renderer) newContext(parent context.Context) (context.Context, context.CancelFunc) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Headless,
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"),
	)
	if r.profileDir != "" {
		if err := os.MkdirAll(r.profileDir, 0o755); err != nil {
			r.logger.Warn("failed to create chrome profile dir", "dir", r.profileDir, "err", err)
		} else {
			opts = append(opts, chromedp.UserDataDir(r.profileDir))
		}
	}
	if r.execPath != "" {
		opts = append(opts, chromedp.ExecPath(r.execPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, opts...)
	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	return taskCtx, func() {
		taskCancel()
		allocCancel()
	}
}

// Render navigates to url, waits for the body and returns the page HTML.
func (r *Renderer) Render(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	taskCtx, taskCancel := r.newContext(ctx)
	defer taskCancel()

	start := time.Now()
	var html string
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", url, err)
	}
	r.logger.Debug("page rendered", "url", url, "bytes", len(html), "took", time.Since(start))
	return html, nil
}
