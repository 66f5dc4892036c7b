package booking

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"coolcar/internal/domain"
)

var (
	phoneRe = regexp.MustCompile(`^\+?[\d\s-]{10,}$`)
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	yearRe  = regexp.MustCompile(`^\d{4}$`)
)

// ValidationError is shown to the visitor as is.
type ValidationError struct {
	Field   domain.BookingField
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(f domain.BookingField, format string, args ...any) error {
	return &ValidationError{Field: f, Message: fmt.Sprintf(format, args...)}
}

// Validate applies the field's rule: a loose phone pattern, an optional
// basic email shape, a four-digit year no later than now, and non-empty for
// every other required field.
func Validate(f domain.BookingField, value string, now time.Time) error {
	value = strings.TrimSpace(value)
	switch f {
	case domain.FieldPhoneNumber:
		if !phoneRe.MatchString(value) {
			return invalid(f, "Please enter a valid phone number (at least 10 digits).")
		}
	case domain.FieldEmail:
		if value != "" && !emailRe.MatchString(value) {
			return invalid(f, "Please enter a valid email address.")
		}
	case domain.FieldVehicleYear:
		if !yearRe.MatchString(value) {
			return invalid(f, "Please enter the year as four digits, e.g. 2015.")
		}
		year, _ := strconv.Atoi(value)
		if year < 1900 || year > now.Year() {
			return invalid(f, "Please enter a year between 1900 and %d.", now.Year())
		}
	case domain.FieldDescription:
	default:
		if value == "" {
			return invalid(f, "This field is required.")
		}
	}
	return nil
}

// Valid reports whether value passes Validate.
func Valid(f domain.BookingField, value string, now time.Time) bool {
	return Validate(f, value, now) == nil
}
