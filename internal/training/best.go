package training

import "voxid/internal/encoder"

// BestCheckpoint is the in-memory best parameter snapshot, owned solely by
// the training loop and updated through Update rather than ambient state.
type BestCheckpoint struct {
	State    *encoder.State
	Accuracy float64
	Step     int
}

// Exists reports whether any snapshot has been captured yet.
func (b *BestCheckpoint) Exists() bool { return b.State != nil }

// Update replaces the snapshot when accuracy strictly improves and reports
// whether it did. The recorded accuracy never decreases within one run.
func (b *BestCheckpoint) Update(state *encoder.State, accuracy float64, step int) bool {
	if b.Exists() && accuracy <= b.Accuracy {
		return false
	}
	b.State = state
	b.Accuracy = accuracy
	b.Step = step
	return true
}
