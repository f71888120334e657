package timeframe

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-date format used for daily buckets.
const DateLayout = "2006-01-02"

type TimeProvider interface {
	Now(loc *time.Location) time.Time
}

// DefaultTimeProvider uses the system clock.
type DefaultTimeProvider struct{}

func (p *DefaultTimeProvider) Now(loc *time.Location) time.Time {
	return time.Now().In(loc)
}

// FixedTimeProvider always returns the same instant. Handy in tests and seeders.
type FixedTimeProvider struct {
	At time.Time
}

func (p FixedTimeProvider) Now(loc *time.Location) time.Time {
	return p.At.In(loc)
}

// Range is an optional inclusive time window. A nil bound is unbounded.
type Range struct {
	From *time.Time
	To   *time.Time
}

// ParseRange parses the raw start and end values of a query. Both are optional.
// Full RFC3339 timestamps are used as-is; bare dates expand to the start of the
// day (start) or the last instant of the day (end), in UTC.
func ParseRange(rawStart, rawEnd string) (Range, error) {
	var r Range

	if s := strings.TrimSpace(rawStart); s != "" {
		from, err := parseBound(s, false)
		if err != nil {
			return Range{}, fmt.Errorf("invalid start date %q: %w", rawStart, err)
		}
		r.From = &from
	}

	if s := strings.TrimSpace(rawEnd); s != "" {
		to, err := parseBound(s, true)
		if err != nil {
			return Range{}, fmt.Errorf("invalid end date %q: %w", rawEnd, err)
		}
		r.To = &to
	}

	if r.From != nil && r.To != nil && r.From.After(*r.To) {
		return Range{}, fmt.Errorf("start date %s is after end date %s",
			r.From.Format(time.RFC3339), r.To.Format(time.RFC3339))
	}

	return r, nil
}

func parseBound(value string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC(), nil
	}

	day, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected RFC3339 timestamp or YYYY-MM-DD date")
	}
	if endOfDay {
		return EndOfDay(day), nil
	}
	return day.UTC(), nil
}

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// EndOfDay returns the last representable instant of t's UTC day.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// Trailing returns the instant `days` days before now.
func Trailing(now time.Time, days int) time.Time {
	return now.UTC().Add(-time.Duration(days) * 24 * time.Hour)
}
