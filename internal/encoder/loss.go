package encoder

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"voxid/internal/services"
)

// CrossEntropy computes mean softmax cross-entropy and argmax accuracy over
// a batch of logits, plus the gradient w.r.t. the logits (already averaged
// over the batch).
func CrossEntropy(logits *mat.Dense, labels []int) (loss, accuracy float64, dLogits *mat.Dense, err error) {
	rows, cols := logits.Dims()
	if rows == 0 || rows != len(labels) {
		return 0, 0, nil, services.Wrap(services.ErrInvalidBatch, "encoder", "cross entropy",
			fmt.Sprintf("%d logit rows but %d labels", rows, len(labels)), nil)
	}

	dLogits = mat.NewDense(rows, cols, nil)
	correct := 0

	for i := 0; i < rows; i++ {
		label := labels[i]
		if label < 0 || label >= cols {
			return 0, 0, nil, services.Wrap(services.ErrInvalidBatch, "encoder", "cross entropy",
				fmt.Sprintf("label %d outside [0, %d)", label, cols), nil)
		}

		max := logits.At(i, 0)
		argmax := 0
		for j := 1; j < cols; j++ {
			if v := logits.At(i, j); v > max {
				max = v
				argmax = j
			}
		}
		if argmax == label {
			correct++
		}

		sum := 0.0
		for j := 0; j < cols; j++ {
			sum += math.Exp(logits.At(i, j) - max)
		}
		logSum := math.Log(sum)
		loss += logSum - (logits.At(i, label) - max)

		for j := 0; j < cols; j++ {
			p := math.Exp(logits.At(i, j)-max) / sum
			if j == label {
				p -= 1
			}
			dLogits.Set(i, j, p/float64(rows))
		}
	}

	loss /= float64(rows)
	accuracy = float64(correct) / float64(rows)
	return loss, accuracy, dLogits, nil
}

// Argmax returns the per-row argmax of a logits matrix.
func Argmax(logits *mat.Dense) []int {
	rows, cols := logits.Dims()
	out := make([]int, rows)
	for i := 0; i < rows; i++ {
		best := 0
		for j := 1; j < cols; j++ {
			if logits.At(i, j) > logits.At(i, best) {
				best = j
			}
		}
		out[i] = best
	}
	return out
}
