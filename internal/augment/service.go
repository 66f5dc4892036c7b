package augment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"coolcar/internal/domain"
)

// Mode selects the augmentation paths. Auto tries the model first, then search.
type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeModel  Mode = "model"
	ModeSearch Mode = "search"
	ModeOff    Mode = "off"
)

const maxSnippetLen = 400

// Result is an augmented answer and where it came from.
type Result struct {
	Text   string
	Kind   string // "model" or "search"
	Source string
}

// Service is the composer's single entry point to augmentation. Paths whose
// credentials were missing at startup are nil and silently skipped.
type Service struct {
	mode      Mode
	completer domain.Completer
	searcher  domain.Searcher
	cache     *Cache
	logger    *slog.Logger
}

type ServiceConfig struct {
	Mode      Mode
	Completer domain.Completer
	Searcher  domain.Searcher
	Cache     *Cache
	Logger    *slog.Logger
}

func NewService(cfg ServiceConfig) *Service {
	if cfg.Mode == "" {
		cfg.Mode = ModeAuto
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{mode: cfg.Mode, completer: cfg.Completer, searcher: cfg.Searcher, cache: cfg.Cache, logger: cfg.Logger}
}

// Enabled reports whether any augmentation path can run.
func (s *Service) Enabled() bool {
	if s == nil || s.mode == ModeOff {
		return false
	}
	return s.useModel() || s.useSearch()
}

func (s *Service) useModel() bool {
	return s.completer != nil && (s.mode == ModeAuto || s.mode == ModeModel)
}

func (s *Service) useSearch() bool {
	return s.searcher != nil && (s.mode == ModeAuto || s.mode == ModeSearch)
}

// Cache returns the web cache, or nil when search caching is off.
func (s *Service) Cache() *Cache {
	if s == nil {
		return nil
	}
	return s.cache
}

// Augment asks the configured paths for an answer. Every failure is
// reported as domain.ErrUnavailable so callers can fall back locally.
func (s *Service) Augment(ctx context.Context, msg string) (Result, error) {
	if !s.Enabled() {
		return Result{}, domain.ErrUnavailable
	}

	var errs []error
	if s.useModel() {
		text, err := s.completer.Complete(ctx, msg)
		if err == nil {
			return Result{Text: text, Kind: "model", Source: s.completer.Name()}, nil
		}
		errs = append(errs, err)
	}
	if s.useSearch() && ctx.Err() == nil {
		results, err := s.searcher.Search(ctx, msg)
		switch {
		case err != nil:
			errs = append(errs, err)
		case len(results) == 0:
			errs = append(errs, errors.New("no relevant search results"))
		default:
			return Result{Text: summarize(results[0]), Kind: "search", Source: results[0].Source}, nil
		}
	}

	err := errors.Join(errs...)
	s.logger.Debug("augmentation unavailable, falling back", "err", err)
	return Result{}, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
}

// Search exposes the raw search path, for diagnostics.
func (s *Service) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	if s == nil || s.searcher == nil {
		return nil, domain.ErrUnavailable
	}
	return s.searcher.Search(ctx, query)
}

func summarize(r domain.SearchResult) string {
	content := strings.TrimSpace(r.Content)
	if len(content) > maxSnippetLen {
		cut := strings.LastIndex(content[:maxSnippetLen], " ")
		if cut <= 0 {
			cut = maxSnippetLen
			for cut > 0 && !utf8.RuneStart(content[cut]) {
				cut--
			}
		}
		content = content[:cut] + "..."
	}
	if r.Source == "" {
		return content
	}
	return fmt.Sprintf("%s (Source: %s)", content, r.Source)
}
