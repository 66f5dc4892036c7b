package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"coolcar/internal/domain"
	"coolcar/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *clock {
	return &clock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

// failingStore fails every call.
type failingStore struct{ puts int }

func (f *failingStore) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("disk on fire")
}
func (f *failingStore) Put(context.Context, string, []byte) error {
	f.puts++
	return errors.New("disk full")
}
func (f *failingStore) Close() error { return nil }

func entry(q string, tag domain.ContextTag) domain.MemoryEntry {
	return domain.MemoryEntry{Question: q, Answer: "answer to " + q, Context: tag, Sentiment: domain.SentimentPositive, Effectiveness: 0.5}
}

func TestStoreCapsEntries(t *testing.T) {
	m := New(context.Background(), Config{MaxEntries: 5, Logger: testLogger()})
	for i := 0; i < 12; i++ {
		m.Store(context.Background(), entry(fmt.Sprintf("question %d", i), domain.ContextGeneral))
		if m.Len() > 5 {
			t.Fatalf("memory exceeded cap after %d stores: %d", i+1, m.Len())
		}
	}
	entries := m.Entries()
	if entries[0].Question != "question 7" || entries[4].Question != "question 11" {
		t.Fatalf("expected oldest evicted, got %q..%q", entries[0].Question, entries[4].Question)
	}
}

func TestFindSimilarSameContextOnly(t *testing.T) {
	m := New(context.Background(), Config{Logger: testLogger()})
	ctx := context.Background()
	m.Store(ctx, entry("oil change price", domain.ContextPricing))
	m.Store(ctx, entry("oil change price", domain.ContextMaintenance))
	m.Store(ctx, entry("brake price", domain.ContextPricing))

	matches := m.FindSimilar("oil change price", domain.ContextPricing, 3)
	if len(matches) != 2 {
		t.Fatalf("expected 2 pricing matches, got %d", len(matches))
	}
	for _, mt := range matches {
		if mt.Entry.Context != domain.ContextPricing {
			t.Fatalf("got entry from context %s", mt.Entry.Context)
		}
	}
	if matches[0].Similarity != 1 || matches[0].Entry.Question != "oil change price" {
		t.Fatalf("expected exact match first, got %+v", matches[0])
	}
}

func TestFindSimilarStableTies(t *testing.T) {
	m := New(context.Background(), Config{Logger: testLogger()})
	ctx := context.Background()
	for _, q := range []string{"tyre one", "tyre two", "tyre three", "tyre four"} {
		m.Store(ctx, entry(q, domain.ContextParts))
	}
	// "tyre" scores 1/2 against every entry.
	matches := m.FindSimilar("tyre", domain.ContextParts, 3)
	want := []string{"tyre one", "tyre two", "tyre three"}
	for i, mt := range matches {
		if mt.Entry.Question != want[i] {
			t.Fatalf("tie order broken at %d: got %q want %q", i, mt.Entry.Question, want[i])
		}
	}
}

func TestRepeatedMessageFindsFirstExchange(t *testing.T) {
	m := New(context.Background(), Config{Logger: testLogger()})
	msg := "do you do wheel alignment"
	if got := m.FindSimilar(msg, domain.ContextGeneral, 3); len(got) != 0 {
		t.Fatalf("expected empty memory, got %v", got)
	}
	m.Store(context.Background(), entry(msg, domain.ContextGeneral))
	got := m.FindSimilar(msg, domain.ContextGeneral, 3)
	if len(got) != 1 || got[0].Similarity != 1.0 {
		t.Fatalf("expected the first exchange with similarity 1, got %+v", got)
	}
}

func TestCleanupRetentionAndGate(t *testing.T) {
	clk := newClock()
	m := New(context.Background(), Config{Now: clk.Now, RetentionDays: 30, Logger: testLogger()})
	ctx := context.Background()

	m.Store(ctx, entry("old", domain.ContextGeneral))
	clk.Advance(31 * 24 * time.Hour)
	m.Store(ctx, entry("new", domain.ContextGeneral))

	removed, ran := m.Cleanup(ctx)
	if !ran || removed != 1 {
		t.Fatalf("expected first cleanup to remove 1, got removed=%d ran=%v", removed, ran)
	}
	for _, e := range m.Entries() {
		if e.Question == "old" {
			t.Fatal("expired entry survived cleanup")
		}
	}

	// Gated for a day.
	clk.Advance(12 * time.Hour)
	if _, ran := m.Cleanup(ctx); ran {
		t.Fatal("cleanup ran twice within a day")
	}
	clk.Advance(13 * time.Hour)
	if _, ran := m.Cleanup(ctx); !ran {
		t.Fatal("cleanup should run again after a day")
	}
}

func TestPersistAndReload(t *testing.T) {
	s := store.NewMemory()
	clk := newClock()
	ctx := context.Background()

	m := New(ctx, Config{Store: s, Now: clk.Now, Logger: testLogger()})
	m.Store(ctx, entry("where are you located", domain.ContextGeneral))
	m.Cleanup(ctx)

	reloaded := New(ctx, Config{Store: s, Now: clk.Now, Logger: testLogger()})
	if reloaded.Len() != 1 {
		t.Fatalf("expected 1 entry after reload, got %d", reloaded.Len())
	}
	if _, ran := reloaded.Cleanup(ctx); ran {
		t.Fatal("last cleanup marker was not persisted")
	}
}

func TestCancelledContextStillPersists(t *testing.T) {
	s := store.NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := New(context.Background(), Config{Store: s, Logger: testLogger()})
	m.Store(ctx, entry("late question", domain.ContextGeneral))

	data, err := s.Get(context.Background(), domain.NamespaceConversations)
	if err != nil {
		t.Fatalf("expected persisted log, got %v", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil || len(snap.Conversations) != 1 {
		t.Fatalf("persisted blob incomplete: %s (%v)", data, err)
	}
}

func TestStorageFailuresFailOpen(t *testing.T) {
	fs := &failingStore{}
	m := New(context.Background(), Config{Store: fs, Logger: testLogger()})
	if m.Len() != 0 {
		t.Fatal("expected empty memory on read failure")
	}
	m.Store(context.Background(), entry("still works", domain.ContextGeneral))
	if m.Len() != 1 || fs.puts != 1 {
		t.Fatalf("expected in-memory state kept after write failure, len=%d puts=%d", m.Len(), fs.puts)
	}
}

func TestCorruptBlobStartsEmpty(t *testing.T) {
	s := store.NewMemory()
	s.Put(context.Background(), domain.NamespaceConversations, []byte("{oops"))
	m := New(context.Background(), Config{Store: s, Logger: testLogger()})
	if m.Len() != 0 {
		t.Fatal("expected empty memory for corrupt blob")
	}
}

func TestStats(t *testing.T) {
	m := New(context.Background(), Config{Logger: testLogger()})
	if st := m.Stats(); st.TotalCount != 0 || st.AverageEffectiveness != 0 {
		t.Fatalf("unexpected empty stats: %+v", st)
	}

	ctx := context.Background()
	m.Store(ctx, domain.MemoryEntry{Question: "brake brake noise", Context: domain.ContextRepair, Sentiment: domain.SentimentNegative, Effectiveness: 1})
	m.Store(ctx, domain.MemoryEntry{Question: "brake price", Context: domain.ContextPricing, Sentiment: domain.SentimentNeutral, Effectiveness: 0})
	m.Store(ctx, domain.MemoryEntry{Question: "noise again", Context: domain.ContextRepair, Effectiveness: 0.5})

	st := m.Stats()
	if st.TotalCount != 3 {
		t.Fatalf("total = %d", st.TotalCount)
	}
	if st.ContextCounts[domain.ContextRepair] != 2 || st.SentimentCounts[domain.SentimentNeutral] != 2 {
		t.Fatalf("counts wrong: %+v %+v", st.ContextCounts, st.SentimentCounts)
	}
	if st.AverageEffectiveness != 0.5 {
		t.Fatalf("average effectiveness = %v", st.AverageEffectiveness)
	}
	want := []TokenCount{{"brake", 3}, {"noise", 2}, {"again", 1}, {"price", 1}}
	if len(st.TopTokens) != len(want) {
		t.Fatalf("top tokens = %+v", st.TopTokens)
	}
	for i := range want {
		if st.TopTokens[i] != want[i] {
			t.Fatalf("top tokens = %+v, want %+v", st.TopTokens, want)
		}
	}
}

func TestExportImport(t *testing.T) {
	clk := newClock()
	ctx := context.Background()
	src := New(ctx, Config{Now: clk.Now, Logger: testLogger()})
	src.Store(ctx, entry("first", domain.ContextGeneral))
	clk.Advance(time.Minute)
	src.Store(ctx, entry("second", domain.ContextRepair))

	data, err := src.Export()
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	dst := New(ctx, Config{Now: clk.Now, Logger: testLogger()})
	added, err := dst.Import(ctx, data)
	if err != nil || added != 2 {
		t.Fatalf("Import added=%d err=%v", added, err)
	}
	added, err = dst.Import(ctx, data)
	if err != nil || added != 0 {
		t.Fatalf("re-import should be a no-op, added=%d err=%v", added, err)
	}
	if _, err := dst.Import(ctx, []byte("nope")); err == nil {
		t.Fatal("expected parse error")
	}
}
