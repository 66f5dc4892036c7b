package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"coolcar/internal/booking"
	"coolcar/internal/domain"
	"coolcar/internal/relay"
)

var (
	cancelWords  = map[string]bool{"cancel": true, "stop": true, "quit": true, "/cancel": true}
	confirmWords = map[string]bool{"confirm": true, "yes": true, "y": true, "ok": true, "book it": true}
)

const readyPrompt = "Reply \"confirm\" to book this appointment or \"cancel\" to stop."

// startBooking opens a fresh draft and asks for its first field.
func (a *Assistant) startBooking(s *Session, intro string) string {
	s.draft.Reset()
	s.booking = true
	f, _ := s.draft.NextRequiredField()
	if intro == "" {
		intro = "Let's get your service appointment scheduled."
	}
	return intro + "\n\n" + booking.FieldPrompt(f) + " (Type \"cancel\" at any time to stop.)"
}

// continueBooking treats text as the answer to the pending field, or as
// the confirmation once every field is filled.
func (a *Assistant) continueBooking(ctx context.Context, s *Session, text string) string {
	answer := strings.TrimSpace(text)
	word := strings.ToLower(strings.Trim(answer, ".!"))
	if cancelWords[word] {
		s.draft.Cancel()
		s.booking = false
		return "No problem, I've cancelled the booking. Is there anything else I can help with?"
	}

	field, pending := s.draft.NextRequiredField()
	if !pending {
		if !confirmWords[word] {
			return readyPrompt
		}
		return a.submitBooking(ctx, s)
	}

	value, err := a.normalizeField(s, field, answer)
	if err == nil {
		err = booking.Validate(field, value, a.now())
	}
	if err != nil {
		var ve *booking.ValidationError
		if errors.As(err, &ve) {
			return ve.Message + " " + booking.FieldPrompt(field)
		}
		return err.Error() + " " + booking.FieldPrompt(field)
	}
	if err := s.draft.UpdateField(field, value); err != nil {
		s.booking = false
		return "That booking was cancelled. Say \"book a service\" to start a new one."
	}

	if next, ok := s.draft.NextRequiredField(); ok {
		return booking.FieldPrompt(next)
	}
	return booking.FormatDraft(s.draft.Details()) + "\n\n" + readyPrompt
}

// normalizeField turns free-text dates and times into their stored forms
// and checks them against the garage calendar.
func (a *Assistant) normalizeField(s *Session, f domain.BookingField, answer string) (string, error) {
	switch f {
	case domain.FieldPreferredDate:
		now := a.now()
		date, err := booking.ParseDate(answer, now)
		if err != nil {
			return "", &booking.ValidationError{Field: f, Message: "I couldn't read that date. Try \"tomorrow\", \"Friday\" or 2026-03-14."}
		}
		if date < now.Format(booking.DateLayout) {
			return "", &booking.ValidationError{Field: f, Message: "That date has already passed."}
		}
		return date, nil
	case domain.FieldPreferredTime:
		t, err := booking.ParseTime(answer)
		if err != nil {
			return "", &booking.ValidationError{Field: f, Message: "I couldn't read that time. Try 10:00 or 2pm."}
		}
		return t, a.checkSlot(s.draft.Details().PreferredDate, t)
	}
	return answer, nil
}

// checkSlot accepts t only if it is a free hourly slot on date.
func (a *Assistant) checkSlot(date, t string) error {
	if a.book == nil {
		return nil
	}
	var free []string
	known := false
	for _, slot := range a.book.AvailableSlots(date) {
		if slot.Time == t {
			known = true
			if slot.IsAvailable {
				return nil
			}
		}
		if slot.IsAvailable {
			free = append(free, slot.Time)
		}
	}
	field := domain.FieldPreferredTime
	switch {
	case len(free) == 0:
		return &booking.ValidationError{Field: field, Message: "Sorry, that day is fully booked. Type \"cancel\" and start again to pick another date."}
	case !known:
		return &booking.ValidationError{Field: field, Message: "We take bookings on the hour during opening hours. Free times: " + strings.Join(free, ", ") + "."}
	default:
		return &booking.ValidationError{Field: field, Message: "That time is already taken. Free times: " + strings.Join(free, ", ") + "."}
	}
}

// submitBooking finalizes the draft and forwards it to the garage's
// booking inbox. A relay failure is logged; the booking is already stored.
func (a *Assistant) submitBooking(ctx context.Context, s *Session) string {
	bk, err := s.draft.Submit(ctx)
	if errors.Is(err, booking.ErrSlotTaken) {
		details := s.draft.Details()
		msg := "Sorry, that time was just booked by someone else."
		var ve *booking.ValidationError
		if errors.As(a.checkSlot(details.PreferredDate, details.PreferredTime), &ve) {
			msg = ve.Message
		}
		if err := s.draft.UpdateField(domain.FieldPreferredTime, ""); err != nil {
			s.booking = false
			return "Sorry, I couldn't complete that booking. Please try again or call us on " + a.phone + "."
		}
		return msg + " " + booking.FieldPrompt(domain.FieldPreferredTime)
	}
	if err != nil {
		a.logger.Warn("booking submit failed", "session", s.Key, "err", err)
		s.booking = false
		return "Sorry, I couldn't complete that booking. Please try again or call us on " + a.phone + "."
	}
	s.booking = false
	a.logger.Info("booking submitted", "id", bk.ID, "date", bk.PreferredDate, "time", bk.PreferredTime, "session", s.Key)

	if a.relay.Configured(relay.FormBooking) {
		fields := bk.Fields()
		fields["id"] = bk.ID
		fields["status"] = string(bk.Status)
		fields["createdAt"] = bk.CreatedAt.Format(time.RFC3339)
		if err := a.relay.Submit(ctx, relay.FormBooking, fields); err != nil {
			a.logger.Warn("booking stored but not forwarded", "id", bk.ID, "err", err)
		}
	}
	return fmt.Sprintf("Your booking request has been received!\n\n%s\n\nWe'll call you on %s to confirm.", booking.FormatDetails(bk), bk.PhoneNumber)
}
