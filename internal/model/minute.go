package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Minute is a time of day expressed as minutes since midnight.  24:00 is
// representable as MinutesPerDay so a window may run to the end of the day.
type Minute int

// MinutesPerDay is the exclusive upper bound of a day in minutes.
const MinutesPerDay Minute = 24 * 60

// ErrInvalidTime is returned when a time-of-day string cannot be parsed.
var ErrInvalidTime = errors.New("invalid time of day")

// ParseMinute parses "H:MM", "HH:MM" or "HH:MM:SS" into a Minute.  Seconds,
// when present, must be zero: windows are booked at minute granularity.
func ParseMinute(s string) (Minute, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	if !digits(parts[0]) || !digits(parts[1]) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || len(parts[0]) > 2 || h > 24 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	if len(parts[1]) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	if len(parts) == 3 && parts[2] != "00" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	v := Minute(h*60 + m)
	if v > MinutesPerDay {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	return v, nil
}

func digits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Valid reports whether m lies within [0, 24:00].
func (m Minute) Valid() bool { return m >= 0 && m <= MinutesPerDay }

// String formats m as "HH:MM".
func (m Minute) String() string {
	return fmt.Sprintf("%02d:%02d", int(m)/60, int(m)%60)
}

func (m Minute) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *Minute) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: expected \"HH:MM\"", ErrInvalidTime)
	}
	v, err := ParseMinute(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
