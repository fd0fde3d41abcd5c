package training

import "math"

// Schedule is the two-phase learning-rate policy: linear warmup from zero to
// the base rate, then half-cosine decay back to zero over the remaining
// steps.
type Schedule struct {
	Base        float64
	WarmupSteps int
	TotalSteps  int
}

// Rate returns the learning rate for a 0-indexed step. Rate(0) == 0,
// Rate(WarmupSteps) == Base, Rate(TotalSteps) == 0, and the rate is
// non-negative everywhere in between.
func (s Schedule) Rate(step int) float64 {
	if step <= 0 {
		return 0
	}
	if step < s.WarmupSteps {
		return s.Base * float64(step) / float64(s.WarmupSteps)
	}
	progress := float64(step-s.WarmupSteps) / float64(s.TotalSteps-s.WarmupSteps)
	if progress >= 1 {
		return 0
	}
	return s.Base * math.Max(0, 0.5*(1+math.Cos(math.Pi*progress)))
}
