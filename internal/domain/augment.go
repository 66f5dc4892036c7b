package domain

import (
	"context"
	"errors"
)

// ErrUnavailable means an augmentation path is unconfigured, rate limited or failing.
var ErrUnavailable = errors.New("augmentation unavailable")

// SearchResult is one ranked snippet returned by a Searcher.
type SearchResult struct {
	Content   string  `json:"content"`
	Source    string  `json:"source"`
	Relevance float64 `json:"relevance"`
}

// Searcher looks up automotive content on the web.
type Searcher interface {
	Name() string
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// Completer asks a hosted language model for a reply.
type Completer interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}
