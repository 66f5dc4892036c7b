package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"coolcar/internal/domain"
	"coolcar/internal/metrics"
)

// ErrIncomplete is returned by Submit while a required field is empty.
var ErrIncomplete = errors.New("booking is missing required fields")

// State is the observable state of a draft. A successful Submit passes
// through submission and leaves the draft Empty again.
type State string

const (
	StateEmpty      State = "empty"
	StateCollecting State = "collecting"
	StateReady      State = "ready"
	StateCancelled  State = "cancelled"
)

// Progress reports how far a draft has got.
type Progress struct {
	Filled    int                 `json:"filled"`
	Total     int                 `json:"total"`
	Next      domain.BookingField `json:"next,omitempty"`
	Completed bool                `json:"completed"`
}

// Draft is one visitor's booking form. It is not safe for concurrent use;
// callers serialize access per session.
type Draft struct {
	details   domain.BookingDetails
	cancelled bool
	book      *Book
	now       func() time.Time
}

// NewDraft returns an empty draft that submits into book.
func NewDraft(book *Book) *Draft {
	return &Draft{book: book, now: time.Now}
}

func (d *Draft) State() State {
	switch {
	case d.cancelled:
		return StateCancelled
	case d.empty():
		return StateEmpty
	case d.missing() == "":
		return StateReady
	default:
		return StateCollecting
	}
}

func (d *Draft) empty() bool {
	return len(d.details.Fields()) == 0
}

func (d *Draft) missing() domain.BookingField {
	for _, f := range domain.RequiredBookingFields {
		if d.details.Get(f) == "" {
			return f
		}
	}
	return ""
}

// UpdateField stores value as given. Format checks are the caller's job,
// through Validate.
func (d *Draft) UpdateField(f domain.BookingField, value string) error {
	if d.cancelled {
		return fmt.Errorf("update %s: %w", f, domain.ErrCancelled)
	}
	if !d.details.Set(f, strings.TrimSpace(value)) {
		return fmt.Errorf("unknown booking field %q", f)
	}
	return nil
}

// NextRequiredField returns the first empty required field. ok is false
// once the draft is ready.
func (d *Draft) NextRequiredField() (f domain.BookingField, ok bool) {
	f = d.missing()
	return f, f != ""
}

// Validate checks value for field against the draft's clock.
func (d *Draft) Validate(f domain.BookingField, value string) error {
	return Validate(f, value, d.now())
}

func (d *Draft) Details() domain.BookingDetails { return d.details }

func (d *Draft) Progress() Progress {
	p := Progress{Total: len(domain.RequiredBookingFields)}
	for _, f := range domain.RequiredBookingFields {
		if d.details.Get(f) != "" {
			p.Filled++
		}
	}
	p.Next, _ = d.NextRequiredField()
	p.Completed = p.Next == ""
	return p
}

// Submit finalizes a ready draft into a pending booking, reserves its slot
// in the book and empties the draft. An incomplete draft, or one whose slot
// was taken meanwhile (ErrSlotTaken), is left untouched.
func (d *Draft) Submit(ctx context.Context) (domain.Booking, error) {
	if d.cancelled {
		return domain.Booking{}, fmt.Errorf("submit: %w", domain.ErrCancelled)
	}
	if f := d.missing(); f != "" {
		return domain.Booking{}, fmt.Errorf("%w: %s", ErrIncomplete, f)
	}

	bk := domain.Booking{
		ID:             uuid.NewString(),
		BookingDetails: d.details,
		Status:         domain.StatusPending,
		CreatedAt:      d.now(),
	}
	if d.book != nil {
		if err := d.book.Reserve(ctx, bk); err != nil {
			return domain.Booking{}, fmt.Errorf("submit: %w", err)
		}
	}
	metrics.Bookings.WithLabelValues("submitted").Inc()
	d.details = domain.BookingDetails{}
	return bk, nil
}

// Cancel abandons the draft. A cancelled draft accepts no further edits
// until Reset.
func (d *Draft) Cancel() {
	if !d.cancelled {
		metrics.Bookings.WithLabelValues("abandoned").Inc()
	}
	d.cancelled = true
}

// Reset starts a fresh, empty draft.
func (d *Draft) Reset() {
	d.details = domain.BookingDetails{}
	d.cancelled = false
}
