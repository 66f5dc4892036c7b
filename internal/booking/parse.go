package booking

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is how dates are stored on a booking.
const DateLayout = "2006-01-02"

var dateLayouts = []string{
	DateLayout,
	"2006/01/02",
	"02/01/2006",
	"2 January 2006",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2 Jan 2006",
}

var weekdays = []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

var (
	time24Re = regexp.MustCompile(`^([01]?\d|2[0-3])(?::([0-5]\d))?$`)
	time12Re = regexp.MustCompile(`(?i)^(1[0-2]|0?[1-9])(?::([0-5]\d))?\s*(am|pm)$`)
)

// ParseDate reads an absolute date, "today", "tomorrow" or a weekday name
// (the next such day, today included) relative to now. It returns the date
// as YYYY-MM-DD.
func ParseDate(input string, now time.Time) (string, error) {
	s := strings.TrimSpace(input)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, now.Location()); err == nil {
			return t.Format(DateLayout), nil
		}
	}

	lower := strings.ToLower(s)
	switch {
	case strings.Contains(lower, "today"):
		return now.Format(DateLayout), nil
	case strings.Contains(lower, "tomorrow"):
		return now.AddDate(0, 0, 1).Format(DateLayout), nil
	}
	for i, day := range weekdays {
		if strings.Contains(lower, day) {
			ahead := (i + 7 - int(now.Weekday())) % 7
			return now.AddDate(0, 0, ahead).Format(DateLayout), nil
		}
	}
	return "", fmt.Errorf("unrecognized date %q", input)
}

// ParseTime reads "14", "14:30", "2pm" or "2:30 pm" and returns HH:MM.
func ParseTime(input string) (string, error) {
	s := strings.TrimSpace(input)
	if m := time24Re.FindStringSubmatch(s); m != nil {
		h, _ := strconv.Atoi(m[1])
		return fmt.Sprintf("%02d:%s", h, orZero(m[2])), nil
	}
	if m := time12Re.FindStringSubmatch(s); m != nil {
		h, _ := strconv.Atoi(m[1])
		h %= 12
		if strings.EqualFold(m[3], "pm") {
			h += 12
		}
		return fmt.Sprintf("%02d:%s", h, orZero(m[2])), nil
	}
	return "", fmt.Errorf("unrecognized time %q", input)
}

func orZero(m string) string {
	if m == "" {
		return "00"
	}
	return m
}
