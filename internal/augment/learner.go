package augment

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"coolcar/internal/domain"
	"coolcar/internal/text"
)

// forumWeight discounts forum content against curated sites.
const forumWeight = 0.9

// WebLearner is the Google-backed Searcher. It searches trusted automotive
// sites first and falls back to scraping forum threads when they return
// too little.
type WebLearner struct {
	google       *Google
	fetcher      *Fetcher
	cache        *Cache
	trusted      []string
	forums       []string
	minRelevance float64
	maxResults   int
	minTrusted   int
	logger       *slog.Logger
}

type WebLearnerConfig struct {
	Google       *Google
	Fetcher      *Fetcher // nil disables the forum fallback
	Cache        *Cache   // nil disables caching
	TrustedSites []string
	ForumSites   []string
	MinRelevance float64
	MaxResults   int
	Logger       *slog.Logger
}

func NewWebLearner(cfg WebLearnerConfig) *WebLearner {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &WebLearner{
		google:       cfg.Google,
		fetcher:      cfg.Fetcher,
		cache:        cfg.Cache,
		trusted:      cfg.TrustedSites,
		forums:       cfg.ForumSites,
		minRelevance: cfg.MinRelevance,
		maxResults:   cfg.MaxResults,
		minTrusted:   3,
		logger:       cfg.Logger,
	}
}

func (w *WebLearner) Name() string { return "google" }

func (w *WebLearner) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	if w.cache != nil {
		if hit, ok := w.cache.Get(query); ok {
			return hit, nil
		}
	}

	hits, err := w.google.Query(ctx, query, w.trusted)
	if err != nil {
		return nil, fmt.Errorf("trusted site search: %w", err)
	}
	var results []domain.SearchResult
	for _, h := range hits {
		if rel := text.Relevance(h.Snippet, query); rel > w.minRelevance {
			results = append(results, domain.SearchResult{Content: h.Snippet, Source: h.Host, Relevance: rel})
		}
	}

	if len(results) < w.minTrusted && w.fetcher != nil && len(w.forums) > 0 {
		results = append(results, w.searchForums(ctx, query)...)
	}

	results = rank(results, w.maxResults)
	if w.cache != nil {
		w.cache.Put(ctx, query, results)
	}
	return results, nil
}

// searchForums never fails; a broken forum only costs its own results.
func (w *WebLearner) searchForums(ctx context.Context, query string) []domain.SearchResult {
	hits, err := w.google.Query(ctx, query, w.forums)
	if err != nil {
		w.logger.Debug("forum search failed", "err", err)
		return nil
	}
	var results []domain.SearchResult
	for _, h := range hits {
		content, err := w.fetcher.Fetch(ctx, h.Link)
		if err != nil {
			w.logger.Debug("forum page skipped", "url", h.Link, "err", err)
			continue
		}
		if content == "" {
			continue
		}
		if rel := text.Relevance(content, query); rel > w.minRelevance {
			results = append(results, domain.SearchResult{
				Content:   content,
				Source:    "Forum: " + h.Host,
				Relevance: rel * forumWeight,
			})
		}
	}
	return results
}

// rank sorts by relevance, best first, and keeps at most n.
func rank(results []domain.SearchResult, n int) []domain.SearchResult {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Relevance > results[j].Relevance
	})
	if len(results) > n {
		results = results[:n]
	}
	return results
}
