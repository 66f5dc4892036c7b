// Package memory remembers past exchanges so good answers can be reused.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"coolcar/internal/domain"
	"coolcar/internal/text"
)

const (
	DefaultMaxEntries      = 1000
	DefaultRetentionDays   = 30
	DefaultCleanupInterval = 24 * time.Hour
	DefaultSimilarLimit    = 3
)

type Config struct {
	Store           domain.BlobStore // nil keeps memory in-process only
	MaxEntries      int
	RetentionDays   int
	CleanupInterval time.Duration
	Now             func() time.Time
	Logger          *slog.Logger
}

// Memory is an append-only log of exchanges, capped at MaxEntries with the
// oldest evicted first. The whole log is persisted after every change.
type Memory struct {
	mu          sync.RWMutex
	entries     []domain.MemoryEntry
	lastCleanup time.Time

	store           domain.BlobStore
	maxEntries      int
	retention       time.Duration
	cleanupInterval time.Duration
	now             func() time.Time
	logger          *slog.Logger
}

// snapshot is the persisted form of the log.
type snapshot struct {
	Conversations []domain.MemoryEntry `json:"conversations"`
	LastCleanup   time.Time            `json:"lastCleanup"`
}

// Match is a remembered entry scored against a query.
type Match struct {
	Entry      domain.MemoryEntry `json:"entry"`
	Similarity float64            `json:"similarity"`
}

// Stats summarises the log.
type Stats struct {
	TotalCount           int                       `json:"totalCount"`
	SentimentCounts      map[domain.Sentiment]int  `json:"sentimentCounts"`
	ContextCounts        map[domain.ContextTag]int `json:"contextCounts"`
	TopTokens            []TokenCount              `json:"topTokens"`
	AverageEffectiveness float64                   `json:"averageEffectiveness"`
}

type TokenCount struct {
	Token string `json:"token"`
	Count int    `json:"count"`
}

// New loads the persisted log. A read failure is logged and the memory
// starts empty.
func New(ctx context.Context, cfg Config) *Memory {
	m := &Memory{
		store:           cfg.Store,
		maxEntries:      cfg.MaxEntries,
		retention:       time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		cleanupInterval: cfg.CleanupInterval,
		now:             cfg.Now,
		logger:          cfg.Logger,
	}
	if m.maxEntries <= 0 {
		m.maxEntries = DefaultMaxEntries
	}
	if m.retention <= 0 {
		m.retention = DefaultRetentionDays * 24 * time.Hour
	}
	if m.cleanupInterval <= 0 {
		m.cleanupInterval = DefaultCleanupInterval
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.load(ctx)
	return m
}

func (m *Memory) load(ctx context.Context) {
	if m.store == nil {
		return
	}
	data, err := m.store.Get(ctx, domain.NamespaceConversations)
	if errors.Is(err, domain.ErrNotFound) {
		return
	}
	if err != nil {
		m.logger.Warn("conversation memory unavailable, starting empty", "err", err)
		return
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		m.logger.Warn("conversation memory corrupt, starting empty", "err", err)
		return
	}
	m.entries = snap.Conversations
	m.lastCleanup = snap.LastCleanup
	m.trimLocked()
	m.logger.Debug("conversation memory loaded", "entries", len(m.entries))
}

// persistLocked writes the full log. The write is detached from ctx
// cancellation so an abandoned request never leaves a partial blob behind.
func (m *Memory) persistLocked(ctx context.Context) {
	if m.store == nil {
		return
	}
	data, err := json.Marshal(snapshot{Conversations: m.entries, LastCleanup: m.lastCleanup})
	if err != nil {
		m.logger.Warn("cannot encode conversation memory", "err", err)
		return
	}
	if err := m.store.Put(context.WithoutCancel(ctx), domain.NamespaceConversations, data); err != nil {
		m.logger.Warn("conversation memory not persisted", "err", err, "entries", len(m.entries))
	}
}

func (m *Memory) trimLocked() {
	if over := len(m.entries) - m.maxEntries; over > 0 {
		m.entries = append([]domain.MemoryEntry(nil), m.entries[over:]...)
	}
}

// Store appends an exchange stamped with the current time.
func (m *Memory) Store(ctx context.Context, e domain.MemoryEntry) domain.MemoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	e.Timestamp = m.now()
	if e.Context == "" {
		e.Context = domain.ContextGeneral
	}
	if e.Sentiment == "" {
		e.Sentiment = domain.SentimentNeutral
	}
	m.entries = append(m.entries, e)
	m.trimLocked()
	m.persistLocked(ctx)
	return e
}

// FindSimilar returns up to limit entries in the query's context, best
// match first. Equal scores keep insertion order.
func (m *Memory) FindSimilar(query string, tag domain.ContextTag, limit int) []Match {
	if limit <= 0 {
		limit = DefaultSimilarLimit
	}
	qset := text.TokenSet(query)

	m.mu.RLock()
	var matches []Match
	for _, e := range m.entries {
		if e.Context != tag {
			continue
		}
		matches = append(matches, Match{Entry: e, Similarity: text.Jaccard(qset, text.TokenSet(e.Question))})
	}
	m.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// Cleanup drops entries older than the retention window. It does nothing if
// the previous cleanup ran less than the cleanup interval ago. It reports
// how many entries were removed and whether the cleanup ran.
func (m *Memory) Cleanup(ctx context.Context) (removed int, ran bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if !m.lastCleanup.IsZero() && now.Sub(m.lastCleanup) < m.cleanupInterval {
		return 0, false
	}
	cutoff := now.Add(-m.retention)
	kept := m.entries[:0:0]
	for _, e := range m.entries {
		if e.Timestamp.After(cutoff) {
			kept = append(kept, e)
		}
	}
	removed = len(m.entries) - len(kept)
	m.entries = kept
	m.lastCleanup = now
	m.persistLocked(ctx)

	if removed > 0 {
		m.logger.Info("conversation memory cleaned up", "removed", removed, "remaining", len(kept))
	}
	return removed, true
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Entries returns a copy of the log, oldest first.
func (m *Memory) Entries() []domain.MemoryEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.MemoryEntry(nil), m.entries...)
}

func (m *Memory) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := Stats{
		TotalCount:      len(m.entries),
		SentimentCounts: make(map[domain.Sentiment]int),
		ContextCounts:   make(map[domain.ContextTag]int),
	}
	freq := make(map[string]int)
	var eff float64
	for _, e := range m.entries {
		st.SentimentCounts[e.Sentiment]++
		st.ContextCounts[e.Context]++
		for _, tok := range text.Tokens(e.Question) {
			freq[tok]++
		}
		eff += e.Effectiveness
	}
	if len(m.entries) > 0 {
		st.AverageEffectiveness = eff / float64(len(m.entries))
	}

	for tok, n := range freq {
		st.TopTokens = append(st.TopTokens, TokenCount{Token: tok, Count: n})
	}
	sort.Slice(st.TopTokens, func(i, j int) bool {
		a, b := st.TopTokens[i], st.TopTokens[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Token < b.Token
	})
	if len(st.TopTokens) > 5 {
		st.TopTokens = st.TopTokens[:5]
	}
	return st
}

// exportDoc is the backup format written by Export.
type exportDoc struct {
	Conversations []domain.MemoryEntry `json:"conversations"`
	Stats         Stats                `json:"stats"`
	ExportedAt    time.Time            `json:"exportedAt"`
}

// Export renders the log and its stats as indented JSON.
func (m *Memory) Export() ([]byte, error) {
	doc := exportDoc{Conversations: m.Entries(), Stats: m.Stats(), ExportedAt: m.now()}
	return json.MarshalIndent(doc, "", "  ")
}

// Import merges a document produced by Export. Entries already present
// (same question and timestamp) are skipped. The result is ordered by time
// and capped like any other write.
func (m *Memory) Import(ctx context.Context, data []byte) (int, error) {
	var doc exportDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0, fmt.Errorf("parse memory export: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	type key struct {
		q  string
		ts int64
	}
	seen := make(map[key]bool, len(m.entries))
	for _, e := range m.entries {
		seen[key{e.Question, e.Timestamp.UnixNano()}] = true
	}
	added := 0
	for _, e := range doc.Conversations {
		k := key{e.Question, e.Timestamp.UnixNano()}
		if seen[k] || e.Question == "" {
			continue
		}
		if _, err := domain.ParseContextTag(string(e.Context)); err != nil {
			e.Context = domain.ContextGeneral
		}
		seen[k] = true
		m.entries = append(m.entries, e)
		added++
	}
	sort.SliceStable(m.entries, func(i, j int) bool {
		return m.entries[i].Timestamp.Before(m.entries[j].Timestamp)
	})
	m.trimLocked()
	m.persistLocked(ctx)
	return added, nil
}
