package ledger

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// MustDate is for tests and seed data.
func MustDate(s string) time.Time {
	t, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

// DateRange is an inclusive range of calendar days. A nil End means open-ended.
type DateRange struct {
	Start time.Time  `json:"start"`
	End   *time.Time `json:"end,omitempty"`
}

// NewDateRange normalises both bounds to calendar days and rejects End < Start.
func NewDateRange(start time.Time, end *time.Time) (DateRange, error) {
	r := DateRange{Start: DateOnly(start)}
	if end != nil {
		e := DateOnly(*end)
		if e.Before(r.Start) {
			return DateRange{}, fmt.Errorf("date range end %s before start %s", e.Format(DateLayout), r.Start.Format(DateLayout))
		}
		r.End = &e
	}
	return r, nil
}

// IsOpenEnded reports whether the range has no last day.
func (r DateRange) IsOpenEnded() bool { return r.End == nil }

// Contains reports whether the calendar day of t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	d := DateOnly(t)
	if d.Before(DateOnly(r.Start)) {
		return false
	}
	return r.IsOpenEnded() || !d.After(DateOnly(*r.End))
}

// Overlaps reports whether the two ranges share at least one day.
func (r DateRange) Overlaps(o DateRange) bool {
	if !r.IsOpenEnded() && DateOnly(o.Start).After(DateOnly(*r.End)) {
		return false
	}
	if !o.IsOpenEnded() && DateOnly(r.Start).After(DateOnly(*o.End)) {
		return false
	}
	return true
}

func (r DateRange) String() string {
	end := "open"
	if !r.IsOpenEnded() {
		end = r.End.Format(DateLayout)
	}
	return r.Start.Format(DateLayout) + ".." + end
}
