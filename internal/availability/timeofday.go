package availability

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const MinutesPerDay = 24 * 60

// TimeOfDay is a wall clock time with minute granularity, stored as minutes
// since midnight. The value MinutesPerDay is only meaningful as a range end.
type TimeOfDay int

// At builds a TimeOfDay from an hour and minute without validation.
func At(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ParseTimeOfDay parses "HH:MM", tolerating a trailing ":SS" as written by
// Postgres time columns.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 2 || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	return At(h, m), nil
}

// ParseTimes parses a list of "HH:MM" values, returning them sorted and deduplicated.
func ParseTimes(values []string) ([]TimeOfDay, error) {
	var set daySet
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		t, err := ParseTimeOfDay(v)
		if err != nil {
			return nil, err
		}
		set.add(t)
	}
	return set.times(), nil
}

// FormatTimes renders times as "HH:MM" strings in the order given.
func FormatTimes(times []TimeOfDay) []string {
	out := make([]string, len(times))
	for i, t := range times {
		out[i] = t.String()
	}
	return out
}

func (t TimeOfDay) Valid() bool {
	return t >= 0 && t < MinutesPerDay
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

// On places t on the calendar date of day, in day's location.
func (t TimeOfDay) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, day.Location())
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	if t < 0 || t > MinutesPerDay {
		return nil, fmt.Errorf("%w: %d minutes", ErrInvalidTime, int(t))
	}
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
