package slots

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/hopecann/scheduling/internal/availability"
)

// Slot is a concrete, bookable candidate: a doctor, a calendar date and a
// start time on that date. Slots are computed on demand and never stored.
type Slot struct {
	DoctorID uuid.UUID
	Date     time.Time
	Time     availability.TimeOfDay
}

func (s Slot) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		DoctorID uuid.UUID              `json:"doctor_id"`
		Date     string                 `json:"date"`
		Time     availability.TimeOfDay `json:"time"`
		Start    time.Time              `json:"start"`
	}{s.DoctorID, s.Date.Format(time.DateOnly), s.Time, s.Start()})
}

// Start combines the slot's date and time in the date's location.
func (s Slot) Start() time.Time {
	return s.Time.On(s.Date)
}

// Project walks horizonDays calendar dates starting at startDate and emits one
// slot for every template time configured on each date's weekday. Output is
// ordered by (date, time) ascending. When excludeWeekends is set, Saturday
// and Sunday are skipped even if the template has entries for them.
func Project(doctorID uuid.UUID, tpl availability.Template, startDate time.Time, horizonDays int, excludeWeekends bool) []Slot {
	if horizonDays <= 0 {
		return []Slot{}
	}
	start := DateOf(startDate, startDate.Location())

	out := make([]Slot, 0, tpl.Len()*horizonDays/7+1)
	for i := 0; i < horizonDays; i++ {
		date := start.AddDate(0, 0, i)
		day := availability.WeekdayOf(date)
		if excludeWeekends && day.IsWeekend() {
			continue
		}
		for _, tod := range tpl.Times(day) {
			out = append(out, Slot{DoctorID: doctorID, Date: date, Time: tod})
		}
	}
	return out
}

// Horizon describes the booking window shown to patients: Days calendar days
// beginning StartOffsetDays after today.
type Horizon struct {
	StartOffsetDays int
	Days            int
	ExcludeWeekends bool
}

// DefaultHorizon starts tomorrow and spans 14 calendar days, weekdays only.
var DefaultHorizon = Horizon{StartOffsetDays: 1, Days: 14, ExcludeWeekends: true}

// Start is the first date of the horizon relative to clock in loc.
func (h Horizon) Start(clock Clock, loc *time.Location) time.Time {
	return DateOf(clock.Now(), loc).AddDate(0, 0, h.StartOffsetDays)
}

// Project expands tpl over the horizon anchored at clock.
func (h Horizon) Project(doctorID uuid.UUID, tpl availability.Template, clock Clock, loc *time.Location) []Slot {
	return Project(doctorID, tpl, h.Start(clock, loc), h.Days, h.ExcludeWeekends)
}

// Contains reports whether date falls on a projected day of the horizon.
func (h Horizon) Contains(date time.Time, clock Clock, loc *time.Location) bool {
	start := h.Start(clock, loc)
	end := start.AddDate(0, 0, h.Days)
	d := DateOf(date, loc)
	if d.Before(start) || !d.Before(end) {
		return false
	}
	return !(h.ExcludeWeekends && availability.WeekdayOf(d).IsWeekend())
}
