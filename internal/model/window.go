package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidWindow is returned for windows whose start is not strictly
// before their end or whose bounds fall outside the day.
var ErrInvalidWindow = errors.New("invalid time window")

// TimeWindow is a half-open interval [Start, End) on a single calendar day.
type TimeWindow struct {
	Date  Date   `json:"date"`
	Start Minute `json:"start_time"`
	End   Minute `json:"end_time"`
}

// NewWindow builds a window and validates it.
func NewWindow(date Date, start, end Minute) (TimeWindow, error) {
	w := TimeWindow{Date: date, Start: start, End: end}
	return w, w.Validate()
}

// ParseWindow builds a window from its wire representation.
func ParseWindow(date, start, end string) (TimeWindow, error) {
	d, err := ParseDate(date)
	if err != nil {
		return TimeWindow{}, err
	}
	s, err := ParseMinute(start)
	if err != nil {
		return TimeWindow{}, err
	}
	e, err := ParseMinute(end)
	if err != nil {
		return TimeWindow{}, err
	}
	return NewWindow(d, s, e)
}

// Validate checks the window invariant start < end.
func (w TimeWindow) Validate() error {
	if w.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidDate)
	}
	if !w.Start.Valid() || !w.End.Valid() {
		return fmt.Errorf("%w: %s-%s outside the day", ErrInvalidWindow, w.Start, w.End)
	}
	if w.Start >= w.End {
		return fmt.Errorf("%w: start %s must be before end %s", ErrInvalidWindow, w.Start, w.End)
	}
	return nil
}

// Duration is the length of the window.
func (w TimeWindow) Duration() time.Duration {
	return time.Duration(w.End-w.Start) * time.Minute
}

// Overlaps reports whether w and o conflict.  See Overlaps.
func (w TimeWindow) Overlaps(o TimeWindow) bool { return Overlaps(w, o) }

func (w TimeWindow) String() string {
	return fmt.Sprintf("%s %s-%s", w.Date, w.Start, w.End)
}

// Overlaps is the single busy/free predicate of the booking core: two windows
// conflict iff they are on the same day and a.Start < b.End && b.Start < a.End.
// Touching endpoints ([10:00,12:00) and [12:00,14:00)) do not conflict.
func Overlaps(a, b TimeWindow) bool {
	return a.Date.Equal(b.Date) && a.Start < b.End && b.Start < a.End
}
