package assistant

import (
	"context"
	"log/slog"
	"time"

	"coolcar/internal/augment"
	"coolcar/internal/memory"
	"coolcar/internal/metrics"
)

type JanitorConfig struct {
	Interval    time.Duration
	IdleTimeout time.Duration
	Sessions    *SessionManager
	Memory      *memory.Memory
	Cache       *augment.Cache // nil when web search is off
	Logger      *slog.Logger
}

// Janitor periodically evicts idle sessions and runs the memory and web
// cache cleanups. Memory cleanup gates itself to once a day.
type Janitor struct {
	interval time.Duration
	idle     time.Duration
	sessions *SessionManager
	memory   *memory.Memory
	cache    *augment.Cache
	logger   *slog.Logger
}

// SweepResult counts what one sweep removed.
type SweepResult struct {
	Sessions      int
	MemoryEntries int
	MemoryRan     bool
	CacheEntries  int
}

func NewJanitor(cfg JanitorConfig) *Janitor {
	if cfg.Interval < time.Minute {
		cfg.Interval = 15 * time.Minute
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Janitor{
		interval: cfg.Interval,
		idle:     cfg.IdleTimeout,
		sessions: cfg.Sessions,
		memory:   cfg.Memory,
		cache:    cfg.Cache,
		logger:   cfg.Logger,
	}
}

// Start sweeps once immediately and then on every tick until ctx ends.
func (j *Janitor) Start(ctx context.Context) {
	j.logger.Info("janitor started", "interval", j.interval, "idle_timeout", j.idle)
	j.Sweep(ctx)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			j.logger.Info("janitor stopped")
			return
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

func (j *Janitor) Sweep(ctx context.Context) SweepResult {
	var r SweepResult
	if j.sessions != nil {
		r.Sessions = j.sessions.EvictIdle(j.idle)
	}
	if j.memory != nil {
		r.MemoryEntries, r.MemoryRan = j.memory.Cleanup(ctx)
		metrics.MemoryEntries.Set(float64(j.memory.Len()))
	}
	if j.cache != nil {
		r.CacheEntries = j.cache.Cleanup(ctx)
	}
	if r.Sessions > 0 || r.MemoryEntries > 0 || r.CacheEntries > 0 {
		j.logger.Info("janitor sweep",
			"sessions_evicted", r.Sessions,
			"memory_purged", r.MemoryEntries,
			"cache_purged", r.CacheEntries)
	}
	return r
}
