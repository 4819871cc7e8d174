package availability

import (
	"errors"
	"fmt"
	"time"
)

// DayScope selects the weekdays a bulk pattern applies to.
type DayScope string

const (
	ScopeWorkdays  DayScope = "workdays"
	ScopeWeekend   DayScope = "weekend"
	ScopeAll       DayScope = "all"
	ScopeSingleDay DayScope = "single_day"
)

// TimeScope names the time set a bulk pattern writes.
type TimeScope string

const (
	TimesMorning   TimeScope = "morning_only"
	TimesAfternoon TimeScope = "afternoon_only"
	TimesFullDay   TimeScope = "full_day"
	TimesNone      TimeScope = "none"
)

var ErrInvalidPattern = errors.New("invalid availability pattern")

// Pattern is a bulk edit such as "morning on all workdays" or "clear Friday".
// Weekday is required when Days is ScopeSingleDay and ignored otherwise.
type Pattern struct {
	Days    DayScope  `json:"day_scope"`
	Weekday *Weekday  `json:"weekday,omitempty"`
	Times   TimeScope `json:"time_scope"`
}

func (p Pattern) Validate() error {
	switch p.Days {
	case ScopeWorkdays, ScopeWeekend, ScopeAll:
	case ScopeSingleDay:
		if p.Weekday == nil || !p.Weekday.Valid() {
			return fmt.Errorf("%w: single_day needs a weekday", ErrInvalidPattern)
		}
	default:
		return fmt.Errorf("%w: day_scope %q", ErrInvalidPattern, p.Days)
	}
	switch p.Times {
	case TimesMorning, TimesAfternoon, TimesFullDay, TimesNone:
	default:
		return fmt.Errorf("%w: time_scope %q", ErrInvalidPattern, p.Times)
	}
	return nil
}

// Matches reports whether d is covered by the pattern's day scope.
func (p Pattern) Matches(d Weekday) bool {
	switch p.Days {
	case ScopeWorkdays:
		return !d.IsWeekend()
	case ScopeWeekend:
		return d.IsWeekend()
	case ScopeAll:
		return true
	case ScopeSingleDay:
		return p.Weekday != nil && d == *p.Weekday
	}
	return false
}

// Partition holds the configured morning and afternoon time sets shared by
// every entry point that applies bulk patterns.
type Partition struct {
	Morning   []TimeOfDay
	Afternoon []TimeOfDay
}

// Times resolves a time scope against the partition.
func (p Partition) Times(scope TimeScope) []TimeOfDay {
	switch scope {
	case TimesMorning:
		return p.Morning
	case TimesAfternoon:
		return p.Afternoon
	case TimesFullDay:
		s := newDaySet(p.Morning)
		for _, t := range p.Afternoon {
			s.add(t)
		}
		return s.times()
	}
	return nil
}

// Validate checks every partition time lies on the bookable grid.
func (p Partition) Validate(w Window) error {
	for _, t := range append(append([]TimeOfDay{}, p.Morning...), p.Afternoon...) {
		if !w.Contains(t) {
			return fmt.Errorf("%w: %s outside bookable window %s-%s", ErrInvalidTime, t, w.Open, w.Close)
		}
	}
	return nil
}

// ApplyPattern replaces the time set of every weekday matched by p with the
// set named by p.Times. Weekdays outside the scope are left untouched.
// Applying the same pattern twice gives the same template as applying it once.
func ApplyPattern(t Template, p Pattern, part Partition) Template {
	set := newDaySet(part.Times(p.Times))
	for _, d := range Weekdays {
		if p.Matches(d) {
			t.days[d] = set
		}
	}
	return t
}

// ToggleSlot removes tod from d when present and adds it otherwise. The
// operation is O(1) and is its own inverse.
func ToggleSlot(t Template, d Weekday, tod TimeOfDay) Template {
	if d.Valid() {
		t.days[d].toggle(tod)
	}
	return t
}

// Window is the globally bookable span of the day together with the slot
// grid step. Both ends are inclusive.
type Window struct {
	Open  TimeOfDay
	Close TimeOfDay
	Step  time.Duration
}

func (w Window) stepMinutes() int {
	m := int(w.Step / time.Minute)
	if m <= 0 {
		return 60
	}
	return m
}

// Contains reports whether t is a valid slot start: inside [Open, Close] and
// aligned to the grid.
func (w Window) Contains(t TimeOfDay) bool {
	if !t.Valid() || t < w.Open || t > w.Close {
		return false
	}
	return int(t-w.Open)%w.stepMinutes() == 0
}

// Grid lists every bookable start time, e.g. the 17 hourly cells of 05:00-21:00.
func (w Window) Grid() []TimeOfDay {
	var out []TimeOfDay
	for t := w.Open; t <= w.Close && t.Valid(); t += TimeOfDay(w.stepMinutes()) {
		out = append(out, t)
	}
	return out
}
