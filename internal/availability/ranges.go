package availability

// TimeRange is a half-open block [Start, End) of contiguous slots.
type TimeRange struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

// CollapseRanges merges sorted slot starts spaced exactly stepMinutes apart
// into contiguous blocks. It is a display and storage convenience; the
// template itself stays a flat set of start times.
func CollapseRanges(times []TimeOfDay, stepMinutes int) []TimeRange {
	if len(times) == 0 || stepMinutes <= 0 {
		return nil
	}
	set := newDaySet(times)
	sorted := set.times()
	step := TimeOfDay(stepMinutes)

	var out []TimeRange
	cur := TimeRange{Start: sorted[0], End: sorted[0] + step}
	for _, t := range sorted[1:] {
		if t == cur.End {
			cur.End = t + step
			continue
		}
		out = append(out, cur)
		cur = TimeRange{Start: t, End: t + step}
	}
	return append(out, cur)
}

// ExpandRanges is the inverse of CollapseRanges.
func ExpandRanges(ranges []TimeRange, stepMinutes int) []TimeOfDay {
	if stepMinutes <= 0 {
		return nil
	}
	var s daySet
	for _, r := range ranges {
		for t := r.Start; t < r.End; t += TimeOfDay(stepMinutes) {
			s.add(t)
		}
	}
	return s.times()
}
