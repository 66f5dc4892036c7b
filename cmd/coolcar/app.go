package main

import (
	"context"
	"fmt"
	"time"

	"coolcar/internal/assistant"
	"coolcar/internal/augment"
	"coolcar/internal/booking"
	"coolcar/internal/bus"
	"coolcar/internal/composer"
	"coolcar/internal/config"
	"coolcar/internal/domain"
	"coolcar/internal/memory"
	"coolcar/internal/pattern"
	"coolcar/internal/relay"
	"coolcar/internal/review"
	"coolcar/internal/store"
)

const busBufferSize = 100

// app holds the wired components shared by the commands.
type app struct {
	cfg       *config.Config
	store     domain.BlobStore
	bus       *bus.InMemoryBus
	memory    *memory.Memory
	book      *booking.Book
	reviews   *review.Store
	relay     *relay.Relay
	augment   *augment.Service
	statuses  []augment.PathStatus
	assistant *assistant.Assistant
}

// openStore opens the configured backend. When it cannot be opened the
// assistant keeps running with in-process storage.
func openStore(ctx context.Context, cfg config.StorageConfig) domain.BlobStore {
	st, err := store.Open(ctx, cfg, logger)
	if err != nil {
		logger.Warn("storage unavailable, data will not survive a restart", "backend", cfg.Backend, "err", err)
		return store.NewMemory()
	}
	return st
}

func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, store: openStore(ctx, cfg.Storage)}

	a.memory = memory.New(ctx, memory.Config{
		Store:           a.store,
		MaxEntries:      cfg.Memory.MaxEntries,
		RetentionDays:   cfg.Memory.RetentionDays,
		CleanupInterval: time.Duration(cfg.Memory.CleanupIntervalHours) * time.Hour,
		Logger:          logger,
	})
	a.book = booking.NewBook(ctx, booking.BookConfig{
		Store:     a.store,
		OpenHour:  cfg.Booking.OpenHour,
		CloseHour: cfg.Booking.CloseHour,
		Logger:    logger,
	})
	a.reviews = review.New(ctx, review.Config{Store: a.store, Logger: logger})
	a.relay = relay.New(relay.Config{
		ContactEndpoint: cfg.Relay.ContactEndpoint,
		BookingEndpoint: cfg.Relay.BookingEndpoint,
		Timeout:         time.Duration(cfg.Relay.TimeoutSeconds) * time.Second,
		Logger:          logger,
	})
	a.augment, a.statuses = augment.Build(ctx, cfg.Augment, a.store, logger)

	patterns, err := pattern.Load(cfg.General.PatternsDir, logger)
	if err != nil {
		a.store.Close()
		return nil, fmt.Errorf("load patterns: %w", err)
	}

	comp := composer.New(composer.Config{
		Memory:         a.memory,
		Augment:        a.augment,
		Responder:      pattern.NewResponder(patterns, nil),
		ReuseThreshold: cfg.Composer.ReuseThreshold,
		EmojiRate:      cfg.Composer.EmojiRate,
		BusinessName:   cfg.Business.Name,
		Phone:          cfg.Business.Phone,
		Logger:         logger,
	})

	a.bus = bus.New(busBufferSize, logger)
	a.assistant = assistant.New(assistant.Config{
		Composer:    comp,
		Sessions:    assistant.NewSessionManager(a.book, assistant.DefaultBufferSize),
		Book:        a.book,
		Relay:       a.relay,
		Bus:         a.bus,
		Phone:       cfg.Business.Phone,
		Concurrency: cfg.General.MaxConcurrentMessages,
		Logger:      logger,
	})
	return a, nil
}

func (a *app) Close() {
	a.bus.Close()
	if err := a.store.Close(); err != nil {
		logger.Warn("closing storage", "err", err)
	}
}
