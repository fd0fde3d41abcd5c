package dataset

import "math/rand"

// Split shuffles records and carves off a held-out validation slice.
// validRatio is the fraction of records reserved for validation; at least
// one record stays in each split when the corpus allows it.
func Split(records []Record, validRatio float64, rng *rand.Rand) (train, valid []Record) {
	shuffled := append([]Record{}, records...)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	n := int(float64(len(shuffled)) * validRatio)
	if n < 1 && len(shuffled) > 1 {
		n = 1
	}
	if n >= len(shuffled) {
		n = len(shuffled) - 1
	}
	return shuffled[n:], shuffled[:n]
}
