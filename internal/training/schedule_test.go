package training_test

import (
	"math"
	"testing"

	"voxid/internal/training"
)

func TestScheduleBoundaries(t *testing.T) {
	s := training.Schedule{Base: 1e-3, WarmupSteps: 1000, TotalSteps: 70000}

	if got := s.Rate(0); got != 0 {
		t.Fatalf("Rate(0) = %v, want 0", got)
	}
	if got := s.Rate(1000); math.Abs(got-1e-3) > 1e-12 {
		t.Fatalf("Rate(warmup) = %v, want base rate", got)
	}
	if got := s.Rate(70000); got != 0 {
		t.Fatalf("Rate(total) = %v, want 0", got)
	}
}

func TestScheduleNonNegativeEverywhere(t *testing.T) {
	s := training.Schedule{Base: 2e-3, WarmupSteps: 10, TotalSteps: 100}
	for step := 0; step <= 100; step++ {
		if rate := s.Rate(step); rate < 0 {
			t.Fatalf("Rate(%d) = %v is negative", step, rate)
		}
	}
}

func TestScheduleKnownPoints(t *testing.T) {
	base := 1e-3
	s := training.Schedule{Base: base, WarmupSteps: 10, TotalSteps: 100}

	if got, want := s.Rate(5), 0.5*base; math.Abs(got-want) > 1e-15 {
		t.Fatalf("Rate(5) = %v, want %v", got, want)
	}
	if got := s.Rate(10); math.Abs(got-base) > 1e-15 {
		t.Fatalf("Rate(10) = %v, want %v", got, base)
	}
	// Midpoint of decay: cos(pi/2) = 0, so half the base rate.
	if got, want := s.Rate(55), 0.5*base; math.Abs(got-want) > 1e-15 {
		t.Fatalf("Rate(55) = %v, want %v", got, want)
	}
}

func TestScheduleMonotoneDuringWarmup(t *testing.T) {
	s := training.Schedule{Base: 1, WarmupSteps: 50, TotalSteps: 200}
	for step := 1; step < 50; step++ {
		if s.Rate(step) <= s.Rate(step-1) {
			t.Fatalf("warmup not strictly increasing at step %d", step)
		}
	}
	for step := 51; step <= 200; step++ {
		if s.Rate(step) > s.Rate(step-1) {
			t.Fatalf("decay increased at step %d", step)
		}
	}
}
