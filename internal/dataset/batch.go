package dataset

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"voxid/internal/services"
)

// PadValue right-pads short sequences in a batch. It approximates zero
// energy in log-domain mel features.
const PadValue = -20

// Batch is an ordered group of segments padded to a shared length, with a
// parallel list of integer labels. Labels is nil for inference batches.
type Batch struct {
	// Feats holds one SeqLen-by-FeatureDim matrix per item.
	Feats  []*mat.Dense
	Labels []int
	SeqLen int
}

// Size returns the number of items in the batch.
func (b *Batch) Size() int { return len(b.Feats) }

// Assemble pads segments of possibly differing lengths to the maximum length
// present and pairs them with their labels. Input order is preserved. Empty
// input is a caller bug and fails with an invalid-batch error.
func Assemble(segments []*mat.Dense, labels []int) (*Batch, error) {
	if len(segments) == 0 {
		return nil, services.Wrap(services.ErrInvalidBatch, "dataset", "assemble", "empty batch", nil)
	}
	if labels != nil && len(labels) != len(segments) {
		return nil, services.Wrap(services.ErrInvalidBatch, "dataset", "assemble",
			fmt.Sprintf("%d segments but %d labels", len(segments), len(labels)), nil)
	}

	maxLen := 0
	for i, seg := range segments {
		frames, cols := seg.Dims()
		if frames == 0 || cols != FeatureDim {
			return nil, services.Wrap(services.ErrInvalidBatch, "dataset", "assemble",
				fmt.Sprintf("segment %d has shape (%d, %d)", i, frames, cols), nil)
		}
		if frames > maxLen {
			maxLen = frames
		}
	}

	feats := make([]*mat.Dense, len(segments))
	for i, seg := range segments {
		frames, _ := seg.Dims()
		if frames == maxLen {
			feats[i] = seg
			continue
		}
		padded := mat.NewDense(maxLen, FeatureDim, nil)
		padded.Copy(seg)
		for t := frames; t < maxLen; t++ {
			for c := 0; c < FeatureDim; c++ {
				padded.Set(t, c, PadValue)
			}
		}
		feats[i] = padded
	}

	var outLabels []int
	if labels != nil {
		outLabels = append([]int{}, labels...)
	}
	return &Batch{Feats: feats, Labels: outLabels, SeqLen: maxLen}, nil
}
