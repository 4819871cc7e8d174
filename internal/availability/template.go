package availability

import (
	"encoding/json"
	"fmt"
)

// Template is a doctor's recurring weekly availability: for each weekday, the
// set of start times that can be booked. It holds no calendar dates. Template
// is a value type; every mutating helper returns a new Template and two
// templates with the same content compare equal with ==.
type Template struct {
	days [7]daySet
}

// NewTemplate builds a template from a weekday keyed map. Times are
// deduplicated and invalid entries are dropped.
func NewTemplate(days map[Weekday][]TimeOfDay) Template {
	var t Template
	for d, times := range days {
		if !d.Valid() {
			continue
		}
		t.days[d] = newDaySet(times)
	}
	return t
}

// Times returns the sorted start times configured for d.
func (t Template) Times(d Weekday) []TimeOfDay {
	if !d.Valid() {
		return nil
	}
	return t.days[d].times()
}

func (t Template) Has(d Weekday, tod TimeOfDay) bool {
	if !d.Valid() {
		return false
	}
	return t.days[d].has(tod)
}

// DayEmpty reports whether the doctor is unavailable on d.
func (t Template) DayEmpty(d Weekday) bool {
	if !d.Valid() {
		return true
	}
	return t.days[d].empty()
}

// Available is the derived availability flag: true iff at least one weekday
// has a bookable time.
func (t Template) Available() bool {
	for i := range t.days {
		if !t.days[i].empty() {
			return true
		}
	}
	return false
}

// Len counts configured start times across the week.
func (t Template) Len() int {
	n := 0
	for i := range t.days {
		n += t.days[i].len()
	}
	return n
}

// WithDay replaces the times for d.
func (t Template) WithDay(d Weekday, times []TimeOfDay) Template {
	if d.Valid() {
		t.days[d] = newDaySet(times)
	}
	return t
}

func (t Template) With(d Weekday, tod TimeOfDay) Template {
	if d.Valid() {
		t.days[d].add(tod)
	}
	return t
}

func (t Template) Without(d Weekday, tod TimeOfDay) Template {
	if d.Valid() {
		t.days[d].remove(tod)
	}
	return t
}

// Days returns every weekday with its sorted times; empty weekdays map to an
// empty, non-nil slice.
func (t Template) Days() map[Weekday][]TimeOfDay {
	out := make(map[Weekday][]TimeOfDay, len(Weekdays))
	for _, d := range Weekdays {
		out[d] = t.days[d].times()
	}
	return out
}

// ChangedDays lists the weekdays whose time sets differ between t and other.
func (t Template) ChangedDays(other Template) []Weekday {
	var out []Weekday
	for _, d := range Weekdays {
		if t.days[d] != other.days[d] {
			out = append(out, d)
		}
	}
	return out
}

// MarshalJSON writes the stored shape: weekday name -> ordered "HH:MM" list.
func (t Template) MarshalJSON() ([]byte, error) {
	out := make(map[string][]string, len(Weekdays))
	for _, d := range Weekdays {
		out[d.String()] = FormatTimes(t.days[d].times())
	}
	return json.Marshal(out)
}

func (t *Template) UnmarshalJSON(b []byte) error {
	var raw map[string][]string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	var next Template
	for key, values := range raw {
		d, err := ParseWeekday(key)
		if err != nil {
			return err
		}
		times, err := ParseTimes(values)
		if err != nil {
			return fmt.Errorf("%s: %w", d, err)
		}
		next.days[d] = newDaySet(times)
	}
	*t = next
	return nil
}
