package availability

import "math/bits"

const daySetWords = (MinutesPerDay + 63) / 64

// daySet is a bitmap over the minutes of one day. Membership, insertion and
// removal are O(1); iteration yields times in ascending order with no
// duplicates, which is the invariant the stored template shape relies on.
type daySet [daySetWords]uint64

func (s *daySet) has(t TimeOfDay) bool {
	if !t.Valid() {
		return false
	}
	return s[t/64]&(1<<(uint(t)%64)) != 0
}

func (s *daySet) add(t TimeOfDay) {
	if t.Valid() {
		s[t/64] |= 1 << (uint(t) % 64)
	}
}

func (s *daySet) remove(t TimeOfDay) {
	if t.Valid() {
		s[t/64] &^= 1 << (uint(t) % 64)
	}
}

func (s *daySet) toggle(t TimeOfDay) {
	if t.Valid() {
		s[t/64] ^= 1 << (uint(t) % 64)
	}
}

func (s *daySet) empty() bool {
	return *s == daySet{}
}

func (s *daySet) len() int {
	n := 0
	for _, w := range s {
		n += bits.OnesCount64(w)
	}
	return n
}

func (s *daySet) times() []TimeOfDay {
	out := make([]TimeOfDay, 0, s.len())
	for i, w := range s {
		for w != 0 {
			b := bits.TrailingZeros64(w)
			out = append(out, TimeOfDay(i*64+b))
			w &= w - 1
		}
	}
	return out
}

func newDaySet(times []TimeOfDay) daySet {
	var s daySet
	for _, t := range times {
		s.add(t)
	}
	return s
}
