package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the only date format accepted and produced by the scheduler.
const DateLayout = "2006-01-02"

var ErrInvalidDate = errors.New("invalid date")

// ParseDate parses a YYYY-MM-DD string into a civil date at 12:00 UTC.
// Noon keeps later AddDate calls clear of any day boundary.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q: expected YYYY-MM-DD", ErrInvalidDate, s)
	}
	return civil(t), nil
}

// MustParseDate is ParseDate for constants and tests.
func MustParseDate(s string) time.Time {
	t, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

// FormatDate renders the civil date of t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return civil(t).Format(DateLayout)
}

// ValidDate reports whether s is a syntactically valid calendar date.
func ValidDate(s string) bool {
	_, err := ParseDate(s)
	return err == nil
}

func AddDays(t time.Time, n int) time.Time {
	return civil(t).AddDate(0, 0, n)
}

// DaysBetween returns the signed number of calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	d := civil(b).Sub(civil(a))
	return int(d.Round(24*time.Hour) / (24 * time.Hour))
}

// DaysUntil is the number of calendar days from now's date to date.
// Past dates are negative.
func DaysUntil(date string, now time.Time) (int, error) {
	t, err := ParseDate(date)
	if err != nil {
		return 0, err
	}
	return DaysBetween(now, t), nil
}

func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// AdjustPostingWeekday moves weekend posts back to Friday and Monday posts
// forward to Tuesday. Tuesday through Friday are left alone.
func AdjustPostingWeekday(t time.Time) time.Time {
	switch t.Weekday() {
	case time.Sunday:
		return AddDays(t, -2)
	case time.Saturday:
		return AddDays(t, -1)
	case time.Monday:
		return AddDays(t, 1)
	}
	return civil(t)
}

func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}
