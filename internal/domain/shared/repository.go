package shared

import "time"

// DateWindow is an inclusive range of calendar dates used to bound repository queries
type DateWindow struct {
	From time.Time
	To   time.Time
}

// NewDateWindow builds a window and normalizes both ends to UTC midnight.
// Reversed bounds are swapped.
func NewDateWindow(from, to time.Time) DateWindow {
	from, to = TruncateToDate(from), TruncateToDate(to)
	if to.Before(from) {
		from, to = to, from
	}
	return DateWindow{From: from, To: to}
}

// Widen returns a copy of the window extended by days on both sides
func (w DateWindow) Widen(days int) DateWindow {
	return DateWindow{
		From: w.From.AddDate(0, 0, -days),
		To:   w.To.AddDate(0, 0, days),
	}
}

// Contains reports whether t falls on a date inside the window
func (w DateWindow) Contains(t time.Time) bool {
	d := TruncateToDate(t)
	return !d.Before(w.From) && !d.After(w.To)
}

// TruncateToDate returns the UTC calendar date of t at midnight
func TruncateToDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
