package domain

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by a BlobStore when a namespace has never been written.
var ErrNotFound = errors.New("not found")

// BlobStore persists whole JSON blobs per namespace. Callers read a blob,
// mutate it in memory and write it back after every mutation.
type BlobStore interface {
	Get(ctx context.Context, namespace string) ([]byte, error)
	Put(ctx context.Context, namespace string, data []byte) error
	Close() error
}

// Storage namespaces.
const (
	NamespaceConversations = "coolcar_conversations"
	NamespaceWebCache      = "coolcar_web_cache"
	NamespaceBookings      = "coolcar_service_bookings"
	NamespaceReviews       = "coolcar_reviews"
)

// MemoryEntry is one remembered exchange. Entries are never mutated after creation.
type MemoryEntry struct {
	Question      string     `json:"question"`
	Answer        string     `json:"answer"`
	Context       ContextTag `json:"context"`
	Sentiment     Sentiment  `json:"sentiment"`
	Timestamp     time.Time  `json:"timestamp"`
	Effectiveness float64    `json:"effectiveness"`
}
