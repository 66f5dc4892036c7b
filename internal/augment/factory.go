package augment

import (
	"context"
	"log/slog"
	"time"

	"coolcar/internal/browser"
	"coolcar/internal/config"
	"coolcar/internal/domain"
)

// PathStatus describes one augmentation path as configured at startup.
type PathStatus struct {
	Name       string
	Configured bool
	Detail     string
}

// Build wires the augmentation service from config. Missing credentials
// disable only the affected path; the reason is logged once here.
func Build(ctx context.Context, cfg config.AugmentConfig, store domain.BlobStore, logger *slog.Logger) (*Service, []PathStatus) {
	if logger == nil {
		logger = slog.Default()
	}
	client := NewClient(ClientConfig{
		Limiter: NewFixedWindow(cfg.RateLimitPerMinute, time.Minute),
		Retry: RetryPolicy{
			MaxRetries:     cfg.MaxRetries,
			Backoff:        time.Duration(cfg.RetryBackoffMs) * time.Millisecond,
			AttemptTimeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		Logger: logger,
	})

	var statuses []PathStatus

	var completers []domain.Completer
	for _, m := range cfg.Models {
		if m.APIKey == "" {
			logger.Info("model disabled: no API key", "model", m.Name)
			statuses = append(statuses, PathStatus{Name: "model:" + m.Name, Detail: "no API key"})
			continue
		}
		completers = append(completers, NewOpenAI(client, OpenAIConfig{
			Name:        m.Name,
			APIKey:      m.APIKey,
			APIBase:     m.APIBase,
			Model:       m.Model,
			Temperature: m.Temperature,
			MaxTokens:   m.MaxTokens,
		}))
		statuses = append(statuses, PathStatus{Name: "model:" + m.Name, Configured: true, Detail: m.Model + " @ " + m.APIBase})
	}
	var completer domain.Completer
	switch len(completers) {
	case 0:
	case 1:
		completer = completers[0]
	default:
		completer = NewChain(completers, logger)
	}

	var searcher domain.Searcher
	var cache *Cache
	switch cfg.Search.Provider {
	case "google":
		g := NewGoogle(client, cfg.Search.GoogleAPIKey, cfg.Search.GoogleEngineID)
		if !g.Configured() {
			logger.Info("web search disabled: google api key or engine id missing")
			statuses = append(statuses, PathStatus{Name: "search:google", Detail: "GOOGLE_API_KEY or GOOGLE_SEARCH_ENGINE_ID missing"})
			break
		}
		cache = NewCache(ctx, CacheConfig{
			Store:      store,
			MaxEntries: cfg.Cache.MaxEntries,
			EvictBatch: cfg.Cache.EvictBatch,
			Logger:     logger,
		})
		wl := WebLearnerConfig{
			Google:       g,
			Cache:        cache,
			TrustedSites: cfg.Search.TrustedSites,
			ForumSites:   cfg.Search.ForumSites,
			MinRelevance: cfg.Search.MinRelevance,
			MaxResults:   cfg.Search.MaxResults,
			Logger:       logger,
		}
		detail := "trusted sites"
		if cfg.Search.ForumFallback {
			wl.Fetcher = NewFetcher(client)
			detail += " + forum fallback"
			if cfg.Search.RenderPages {
				wl.Fetcher.WithRenderer(browser.NewRenderer(browser.RendererConfig{
					ExecPath: cfg.Search.ChromePath,
					Timeout:  time.Duration(cfg.TimeoutSeconds) * time.Second,
					Logger:   logger,
				}))
				detail += " (headless Chrome)"
			}
		}
		searcher = NewWebLearner(wl)
		statuses = append(statuses, PathStatus{Name: "search:google", Configured: true, Detail: detail})
	case "duckduckgo":
		searcher = NewDuckDuckGo(client, cfg.Search.MinRelevance, cfg.Search.MaxResults)
		statuses = append(statuses, PathStatus{Name: "search:duckduckgo", Configured: true, Detail: "instant answers, no key"})
	}

	svc := NewService(ServiceConfig{
		Mode:      Mode(cfg.Mode),
		Completer: completer,
		Searcher:  searcher,
		Cache:     cache,
		Logger:    logger,
	})
	if !svc.Enabled() {
		logger.Info("augmentation off, replies use patterns only", "mode", cfg.Mode)
	}
	return svc, statuses
}
