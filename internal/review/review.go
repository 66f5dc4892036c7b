// Package review keeps customer testimonials.
package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"coolcar/internal/domain"
)

// Store is the review collection. New reviews go to the front; the list
// is rewritten as a whole after every add.
type Store struct {
	mu      sync.RWMutex
	reviews []domain.Review
	store   domain.BlobStore
	now     func() time.Time
	logger  *slog.Logger
}

type Config struct {
	Store  domain.BlobStore // nil keeps reviews in-process only
	Logger *slog.Logger
}

// New loads stored reviews, or seeds the launch testimonials when there are none.
func New(ctx context.Context, cfg Config) *Store {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Store{store: cfg.Store, now: time.Now, logger: cfg.Logger}
	if !s.load(ctx) {
		s.reviews = Seed()
	}
	return s
}

// Seed returns the testimonials the site launched with.
func Seed() []domain.Review {
	day := func(s string) time.Time {
		t, _ := time.Parse("2006-01-02", s)
		return t
	}
	return []domain.Review{
		{ID: "3", Name: "Mr Rahim", Rating: 5, Comment: "Great value for money. They really know what they're doing!", Date: day("2024-03-10"), Image: "Cool Car Auto Reviews Rahim .jpg", Position: "Fleet Manager"},
		{ID: "2", Name: "Medo", Rating: 4, Comment: "Very professional team. I highly recommend their diagnostic services.", Date: day("2024-02-20"), Image: "Cool Car Auto Reviews Medo .jpg", Position: "Regular Customer"},
		{ID: "1", Name: "Mr kalokoh", Rating: 5, Comment: "Best service I've ever received. They fixed my car's AC in no time!", Date: day("2024-01-15"), Image: "Cool Car Auto Reviews Mr kalokoh.jpg", Position: "Business Owner"},
	}
}

func (s *Store) load(ctx context.Context) bool {
	if s.store == nil {
		return false
	}
	data, err := s.store.Get(ctx, domain.NamespaceReviews)
	if errors.Is(err, domain.ErrNotFound) {
		return false
	}
	if err != nil {
		s.logger.Warn("reviews unavailable, using launch set", "err", err)
		return false
	}
	if err := json.Unmarshal(data, &s.reviews); err != nil {
		s.logger.Warn("reviews corrupt, using launch set", "err", err)
		return false
	}
	return true
}

func (s *Store) persistLocked(ctx context.Context) {
	if s.store == nil {
		return
	}
	data, err := json.Marshal(s.reviews)
	if err != nil {
		s.logger.Warn("cannot encode reviews", "err", err)
		return
	}
	if err := s.store.Put(context.WithoutCancel(ctx), domain.NamespaceReviews, data); err != nil {
		s.logger.Warn("reviews not persisted, kept in memory", "err", err)
	}
}

// List returns reviews newest first.
func (s *Store) List() []domain.Review {
	s.mu.RLock()
	out := append([]domain.Review(nil), s.reviews...)
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}

// Add stores a review with a fresh id and today's date. Name and comment
// are required and the rating must be 1 to 5.
func (s *Store) Add(ctx context.Context, r domain.Review) (domain.Review, error) {
	r.Name = strings.TrimSpace(r.Name)
	r.Comment = strings.TrimSpace(r.Comment)
	if r.Name == "" || r.Comment == "" {
		return domain.Review{}, errors.New("review needs a name and a comment")
	}
	if r.Rating < 1 || r.Rating > 5 {
		return domain.Review{}, fmt.Errorf("rating %d out of range 1-5", r.Rating)
	}
	r.ID = uuid.NewString()
	r.Date = s.now().UTC().Truncate(24 * time.Hour)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviews = append([]domain.Review{r}, s.reviews...)
	s.persistLocked(ctx)
	return r, nil
}

// TopRated returns the n best-rated reviews; equal ratings keep recency order.
func (s *Store) TopRated(n int) []domain.Review {
	out := s.List()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rating > out[j].Rating })
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Average is the mean rating, 0 with no reviews.
func (s *Store) Average() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.reviews) == 0 {
		return 0
	}
	total := 0
	for _, r := range s.reviews {
		total += r.Rating
	}
	return float64(total) / float64(len(s.reviews))
}
