package dataset

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// DefaultSegmentLen is the training segment length when none is configured.
const DefaultSegmentLen = 128

// SampleSegment cuts a training segment out of a full feature sequence.
// When the sequence is longer than segmentLen the start offset is drawn
// uniformly from [0, frames-segmentLen]; otherwise the whole sequence is
// used. The result is always a fresh copy.
func SampleSegment(feat *mat.Dense, segmentLen int, rng *rand.Rand) *mat.Dense {
	frames, _ := feat.Dims()
	if segmentLen <= 0 {
		segmentLen = DefaultSegmentLen
	}
	if frames <= segmentLen {
		return mat.DenseCopyOf(feat)
	}
	start := rng.Intn(frames - segmentLen + 1)
	return mat.DenseCopyOf(feat.Slice(start, start+segmentLen, 0, FeatureDim))
}
