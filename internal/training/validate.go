package training

import (
	"context"
	"math/rand"

	"voxid/internal/dataset"
	"voxid/internal/encoder"
)

// ValidationResult aggregates one pass over the held-out split.
type ValidationResult struct {
	Loss     float64
	Accuracy float64
	Batches  int
}

// Validate iterates the held-out split exactly once, in order, including the
// final partial batch, and returns mean loss and accuracy across batches.
// Parameters are never updated; the encoder's training-mode flag is restored
// before returning so the loop's next step behaves as before.
func Validate(ctx context.Context, store *dataset.Store, records []dataset.Record, net encoder.Trainable, batchSize, segmentLen int, rng *rand.Rand) (ValidationResult, error) {
	wasTraining := net.Training()
	net.SetTraining(false)
	defer net.SetTraining(wasTraining)

	var result ValidationResult
	err := dataset.Batches(store, records, batchSize, segmentLen, rng, func(batch *dataset.Batch) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		logits, err := net.Forward(batch)
		if err != nil {
			return err
		}
		loss, accuracy, _, err := encoder.CrossEntropy(logits, batch.Labels)
		if err != nil {
			return err
		}
		result.Loss += loss
		result.Accuracy += accuracy
		result.Batches++
		return nil
	})
	if err != nil {
		return ValidationResult{}, err
	}

	result.Loss /= float64(result.Batches)
	result.Accuracy /= float64(result.Batches)
	return result, nil
}
