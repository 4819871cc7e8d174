package availability

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func testPartition() Partition {
	return Partition{
		Morning:   []TimeOfDay{At(8, 0), At(9, 0), At(10, 0), At(11, 0)},
		Afternoon: []TimeOfDay{At(13, 0), At(14, 0), At(15, 0), At(16, 0), At(17, 0)},
	}
}

func TestApplyPattern_WorkdaysFullDay(t *testing.T) {
	got := ApplyPattern(Template{}, Pattern{Days: ScopeWorkdays, Times: TimesFullDay}, testPartition())

	want := []string{"08:00", "09:00", "10:00", "11:00", "13:00", "14:00", "15:00", "16:00", "17:00"}
	for _, d := range []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday} {
		if s := FormatTimes(got.Times(d)); !equalStrings(s, want) {
			t.Errorf("%s = %v, want %v", d, s, want)
		}
	}
	for _, d := range []Weekday{Saturday, Sunday} {
		if !got.DayEmpty(d) {
			t.Errorf("%s should remain empty", d)
		}
	}
}

func TestApplyPattern_Scopes(t *testing.T) {
	start := NewTemplate(map[Weekday][]TimeOfDay{
		Monday:   {At(6, 0)},
		Saturday: {At(6, 0)},
	})
	part := testPartition()

	tests := []struct {
		name    string
		pattern Pattern
		check   func(t *testing.T, got Template)
	}{
		{
			name:    "weekend morning leaves workdays untouched",
			pattern: Pattern{Days: ScopeWeekend, Times: TimesMorning},
			check: func(t *testing.T, got Template) {
				if !equalStrings(FormatTimes(got.Times(Monday)), []string{"06:00"}) {
					t.Errorf("monday changed: %v", FormatTimes(got.Times(Monday)))
				}
				if got.Times(Saturday)[0] != At(8, 0) || len(got.Times(Sunday)) != 4 {
					t.Errorf("weekend not set to morning: sat=%v sun=%v", got.Times(Saturday), got.Times(Sunday))
				}
			},
		},
		{
			name:    "all none clears everything",
			pattern: Pattern{Days: ScopeAll, Times: TimesNone},
			check: func(t *testing.T, got Template) {
				if got.Available() {
					t.Error("expected empty template")
				}
			},
		},
		{
			name:    "single day afternoon",
			pattern: Pattern{Days: ScopeSingleDay, Weekday: dayRef(Wednesday), Times: TimesAfternoon},
			check: func(t *testing.T, got Template) {
				if len(got.Times(Wednesday)) != 5 {
					t.Errorf("wednesday = %v", got.Times(Wednesday))
				}
				if !got.DayEmpty(Tuesday) || !got.DayEmpty(Thursday) {
					t.Error("neighbouring days should be untouched")
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, ApplyPattern(start, tt.pattern, part))
		})
	}
}

func TestApplyPattern_Idempotent(t *testing.T) {
	part := testPartition()
	templates := []Template{
		{},
		NewTemplate(map[Weekday][]TimeOfDay{Monday: {At(5, 0), At(21, 0)}, Sunday: {At(12, 0)}}),
		ApplyPattern(Template{}, Pattern{Days: ScopeAll, Times: TimesFullDay}, part),
	}
	var patterns []Pattern
	for _, ds := range []DayScope{ScopeWorkdays, ScopeWeekend, ScopeAll} {
		for _, ts := range []TimeScope{TimesMorning, TimesAfternoon, TimesFullDay, TimesNone} {
			patterns = append(patterns, Pattern{Days: ds, Times: ts})
		}
	}
	for _, d := range Weekdays {
		patterns = append(patterns, Pattern{Days: ScopeSingleDay, Weekday: dayRef(d), Times: TimesMorning})
	}

	for _, tpl := range templates {
		for _, p := range patterns {
			once := ApplyPattern(tpl, p, part)
			twice := ApplyPattern(once, p, part)
			if once != twice {
				t.Errorf("pattern %+v is not idempotent", p)
			}
		}
	}
}

func TestToggleSlot(t *testing.T) {
	tpl := NewTemplate(map[Weekday][]TimeOfDay{Monday: {At(9, 0)}})

	off := ToggleSlot(tpl, Monday, At(9, 0))
	if !off.DayEmpty(Monday) {
		t.Fatalf("expected monday empty, got %v", off.Times(Monday))
	}
	on := ToggleSlot(off, Monday, At(9, 0))
	if on != tpl {
		t.Errorf("expected original template back, got %v", on.Times(Monday))
	}
}

func TestToggleSlot_IsOwnInverse(t *testing.T) {
	w := Window{Open: At(5, 0), Close: At(21, 0), Step: time.Hour}
	tpl := ApplyPattern(Template{}, Pattern{Days: ScopeWorkdays, Times: TimesMorning}, testPartition())

	for _, d := range Weekdays {
		for _, tod := range w.Grid() {
			if got := ToggleSlot(ToggleSlot(tpl, d, tod), d, tod); got != tpl {
				t.Errorf("toggle %s %s twice changed the template", d, tod)
			}
		}
	}
}

func TestToggleSlot_KeepsOrder(t *testing.T) {
	tpl := NewTemplate(map[Weekday][]TimeOfDay{Friday: {At(8, 0), At(12, 0)}})
	tpl = ToggleSlot(tpl, Friday, At(10, 0))
	if s := FormatTimes(tpl.Times(Friday)); !equalStrings(s, []string{"08:00", "10:00", "12:00"}) {
		t.Errorf("got %v", s)
	}
}

func TestPattern_Validate(t *testing.T) {
	valid := []Pattern{
		{Days: ScopeWorkdays, Times: TimesFullDay},
		{Days: ScopeSingleDay, Weekday: dayRef(Sunday), Times: TimesNone},
		{Days: ScopeSingleDay, Weekday: dayRef(Monday), Times: TimesNone},
	}
	for _, p := range valid {
		if err := p.Validate(); err != nil {
			t.Errorf("%+v: unexpected error %v", p, err)
		}
	}
	invalid := []Pattern{
		{Days: "weekdays", Times: TimesFullDay},
		{Days: ScopeAll, Times: "evening"},
		{Days: ScopeSingleDay, Weekday: dayRef(Weekday(9)), Times: TimesMorning},
		{Days: ScopeSingleDay, Times: TimesNone},
	}
	for _, p := range invalid {
		if err := p.Validate(); !errors.Is(err, ErrInvalidPattern) {
			t.Errorf("%+v: expected ErrInvalidPattern, got %v", p, err)
		}
	}
}

func TestWindow(t *testing.T) {
	w := Window{Open: At(5, 0), Close: At(21, 0), Step: time.Hour}

	if n := len(w.Grid()); n != 17 {
		t.Errorf("expected 17 grid cells, got %d", n)
	}
	for _, tod := range []TimeOfDay{At(5, 0), At(13, 0), At(21, 0)} {
		if !w.Contains(tod) {
			t.Errorf("%s should be bookable", tod)
		}
	}
	for _, tod := range []TimeOfDay{At(4, 0), At(21, 30), At(9, 30), At(22, 0)} {
		if w.Contains(tod) {
			t.Errorf("%s should not be bookable", tod)
		}
	}
}

func TestPartition_Validate(t *testing.T) {
	w := Window{Open: At(8, 0), Close: At(17, 0), Step: time.Hour}
	if err := testPartition().Validate(w); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	bad := Partition{Morning: []TimeOfDay{At(7, 0)}}
	if err := bad.Validate(w); !errors.Is(err, ErrInvalidTime) {
		t.Errorf("expected ErrInvalidTime, got %v", err)
	}
}

func dayRef(d Weekday) *Weekday { return &d }

func TestPattern_SingleDayWithoutWeekdayMatchesNothing(t *testing.T) {
	tpl := NewTemplate(map[Weekday][]TimeOfDay{Monday: {At(9, 0)}})
	p := Pattern{Days: ScopeSingleDay, Times: TimesNone}

	if got := ApplyPattern(tpl, p, testPartition()); got != tpl {
		t.Errorf("pattern without weekday changed the template: monday=%v", got.Times(Monday))
	}
}

func TestPattern_DecodesWeekday(t *testing.T) {
	var p Pattern
	if err := json.Unmarshal([]byte(`{"day_scope":"single_day","weekday":"friday","time_scope":"morning_only"}`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.Weekday == nil || *p.Weekday != Friday {
		t.Errorf("weekday = %v, want friday", p.Weekday)
	}

	var missing Pattern
	if err := json.Unmarshal([]byte(`{"day_scope":"single_day","time_scope":"none"}`), &missing); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := missing.Validate(); !errors.Is(err, ErrInvalidPattern) {
		t.Errorf("expected ErrInvalidPattern for missing weekday, got %v", err)
	}
}
