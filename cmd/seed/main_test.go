package main

import (
	"testing"
	"time"

	"github.com/hopecann/scheduling/internal/availability"
)

func TestSeedPatternsAreValid(t *testing.T) {
	for i, p := range patterns {
		if err := p.Validate(); err != nil {
			t.Errorf("pattern %d: %v", i, err)
		}
	}
}

func TestSaturdayMorningFitsWindow(t *testing.T) {
	window := availability.Window{Open: availability.At(5, 0), Close: availability.At(21, 0), Step: time.Hour}
	for _, tod := range saturdayMorning {
		if !window.Contains(tod) {
			t.Errorf("%v outside the booking window", tod)
		}
	}
}
