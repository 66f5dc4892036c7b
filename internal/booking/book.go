// Package booking implements the service booking form: a per-visitor draft
// that collects fields one at a time and a durable book of submitted
// bookings with hourly slots.
package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"coolcar/internal/domain"
	"coolcar/internal/metrics"
)

const (
	DefaultOpenHour  = 8
	DefaultCloseHour = 18
)

// Book is the durable list of submitted bookings. The whole list is
// rewritten after every change.
type Book struct {
	mu        sync.RWMutex
	bookings  []domain.Booking
	store     domain.BlobStore
	openHour  int
	closeHour int
	logger    *slog.Logger
}

type BookConfig struct {
	Store     domain.BlobStore // nil keeps bookings in-process only
	OpenHour  int
	CloseHour int
	Logger    *slog.Logger
}

func NewBook(ctx context.Context, cfg BookConfig) *Book {
	if cfg.OpenHour <= 0 && cfg.CloseHour <= 0 {
		cfg.OpenHour, cfg.CloseHour = DefaultOpenHour, DefaultCloseHour
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	b := &Book{store: cfg.Store, openHour: cfg.OpenHour, closeHour: cfg.CloseHour, logger: cfg.Logger}
	b.load(ctx)
	return b
}

func (b *Book) load(ctx context.Context) {
	if b.store == nil {
		return
	}
	data, err := b.store.Get(ctx, domain.NamespaceBookings)
	if errors.Is(err, domain.ErrNotFound) {
		return
	}
	if err != nil {
		b.logger.Warn("bookings unavailable, starting empty", "err", err)
		return
	}
	if err := json.Unmarshal(data, &b.bookings); err != nil {
		b.logger.Warn("bookings corrupt, starting empty", "err", err)
		b.bookings = nil
	}
}

func (b *Book) persistLocked(ctx context.Context) {
	if b.store == nil {
		return
	}
	data, err := json.Marshal(b.bookings)
	if err != nil {
		b.logger.Warn("cannot encode bookings", "err", err)
		return
	}
	if err := b.store.Put(context.WithoutCancel(ctx), domain.NamespaceBookings, data); err != nil {
		b.logger.Warn("bookings not persisted, kept in memory", "err", err)
	}
}

// ErrSlotTaken is returned by Reserve when another live booking holds the
// same date and time.
var ErrSlotTaken = errors.New("time slot already booked")

// Add appends a finalized booking without checking its slot.
func (b *Book) Add(ctx context.Context, bk domain.Booking) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bookings = append(b.bookings, bk)
	b.persistLocked(ctx)
}

// Reserve appends bk only if no non-cancelled booking holds its date and
// time. The check and the append happen under one lock.
func (b *Book) Reserve(ctx context.Context, bk domain.Booking) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, other := range b.bookings {
		if other.Status != domain.StatusCancelled &&
			other.PreferredDate == bk.PreferredDate &&
			other.PreferredTime == bk.PreferredTime {
			return fmt.Errorf("%s %s: %w", bk.PreferredDate, bk.PreferredTime, ErrSlotTaken)
		}
	}
	b.bookings = append(b.bookings, bk)
	b.persistLocked(ctx)
	return nil
}

// List returns bookings oldest first.
func (b *Book) List() []domain.Booking {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]domain.Booking(nil), b.bookings...)
}

func (b *Book) Get(id string) (domain.Booking, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, bk := range b.bookings {
		if bk.ID == id {
			return bk, nil
		}
	}
	return domain.Booking{}, fmt.Errorf("booking %s: %w", id, domain.ErrNotFound)
}

// SetStatus moves a booking to a new status.
func (b *Book) SetStatus(ctx context.Context, id string, status domain.BookingStatus) (domain.Booking, error) {
	if !status.Valid() {
		return domain.Booking{}, fmt.Errorf("invalid booking status %q", status)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.bookings {
		if b.bookings[i].ID != id {
			continue
		}
		b.bookings[i].Status = status
		b.persistLocked(ctx)
		metrics.Bookings.WithLabelValues(string(status)).Inc()
		return b.bookings[i], nil
	}
	return domain.Booking{}, fmt.Errorf("booking %s: %w", id, domain.ErrNotFound)
}

// AvailableSlots lists the hourly starts on date (YYYY-MM-DD) inside
// business hours. A slot is taken by any booking on that date and time
// that has not been cancelled.
func (b *Book) AvailableSlots(date string) []domain.TimeSlot {
	b.mu.RLock()
	taken := make(map[string]bool)
	for _, bk := range b.bookings {
		if bk.PreferredDate == date && bk.Status != domain.StatusCancelled {
			taken[bk.PreferredTime] = true
		}
	}
	b.mu.RUnlock()

	slots := make([]domain.TimeSlot, 0, b.closeHour-b.openHour)
	for h := b.openHour; h < b.closeHour; h++ {
		t := fmt.Sprintf("%02d:00", h)
		slots = append(slots, domain.TimeSlot{Time: t, IsAvailable: !taken[t]})
	}
	return slots
}

// Counts tallies bookings by status.
func (b *Book) Counts() map[domain.BookingStatus]int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[domain.BookingStatus]int)
	for _, bk := range b.bookings {
		out[bk.Status]++
	}
	return out
}

// Upcoming returns non-cancelled bookings on or after date, soonest first.
func (b *Book) Upcoming(date string) []domain.Booking {
	var out []domain.Booking
	for _, bk := range b.List() {
		if bk.Status != domain.StatusCancelled && bk.PreferredDate >= date {
			out = append(out, bk)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PreferredDate != out[j].PreferredDate {
			return out[i].PreferredDate < out[j].PreferredDate
		}
		return out[i].PreferredTime < out[j].PreferredTime
	})
	return out
}
