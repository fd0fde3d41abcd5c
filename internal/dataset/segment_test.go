package dataset_test

import (
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"

	"voxid/internal/dataset"
)

func rampFeature(frames int) *mat.Dense {
	data := make([]float64, frames*dataset.FeatureDim)
	for t := 0; t < frames; t++ {
		for c := 0; c < dataset.FeatureDim; c++ {
			data[t*dataset.FeatureDim+c] = float64(t)
		}
	}
	return mat.NewDense(frames, dataset.FeatureDim, data)
}

func TestSampleSegmentLength(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	cases := []struct {
		frames, segLen, want int
	}{
		{200, 128, 128},
		{128, 128, 128},
		{50, 128, 50},
		{129, 128, 128},
	}
	for _, tc := range cases {
		seg := dataset.SampleSegment(rampFeature(tc.frames), tc.segLen, rng)
		rows, cols := seg.Dims()
		if rows != tc.want || cols != dataset.FeatureDim {
			t.Fatalf("frames=%d segLen=%d: got (%d,%d) want (%d,%d)",
				tc.frames, tc.segLen, rows, cols, tc.want, dataset.FeatureDim)
		}
	}
}

func TestSampleSegmentIsContiguousWindow(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	feat := rampFeature(300)

	for trial := 0; trial < 50; trial++ {
		seg := dataset.SampleSegment(feat, 128, rng)
		start := int(seg.At(0, 0))
		if start < 0 || start > 300-128 {
			t.Fatalf("start %d outside [0, %d]", start, 300-128)
		}
		for row := 0; row < 128; row++ {
			if got := seg.At(row, 0); got != float64(start+row) {
				t.Fatalf("row %d: got frame %v want %d", row, got, start+row)
			}
		}
	}
}

func TestSampleSegmentReturnsFreshCopy(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	feat := rampFeature(64)
	seg := dataset.SampleSegment(feat, 128, rng)
	seg.Set(0, 0, -999)
	if feat.At(0, 0) == -999 {
		t.Fatal("segment must not alias the source feature")
	}
}

func TestSampleSegmentVariesStartOffsets(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	feat := rampFeature(1000)
	starts := map[int]struct{}{}
	for trial := 0; trial < 30; trial++ {
		seg := dataset.SampleSegment(feat, 128, rng)
		starts[int(seg.At(0, 0))] = struct{}{}
	}
	if len(starts) < 2 {
		t.Fatal("expected stochastic start offsets across accesses")
	}
}
