package dataset_test

import (
	"errors"
	"testing"

	"gonum.org/v1/gonum/mat"

	"voxid/internal/dataset"
	"voxid/internal/services"
)

func constFeature(frames int, value float64) *mat.Dense {
	data := make([]float64, frames*dataset.FeatureDim)
	for i := range data {
		data[i] = value
	}
	return mat.NewDense(frames, dataset.FeatureDim, data)
}

func TestAssemblePadsToMaxLength(t *testing.T) {
	batch, err := dataset.Assemble(
		[]*mat.Dense{constFeature(100, 1), constFeature(60, 2)},
		[]int{0, 1},
	)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if batch.Size() != 2 || batch.SeqLen != 100 {
		t.Fatalf("unexpected batch geometry: size=%d seqLen=%d", batch.Size(), batch.SeqLen)
	}
	for _, feat := range batch.Feats {
		rows, cols := feat.Dims()
		if rows != 100 || cols != dataset.FeatureDim {
			t.Fatalf("item shape (%d,%d), want (100,%d)", rows, cols, dataset.FeatureDim)
		}
	}
	// Second item: real frames intact, frames 60..99 at the pad constant.
	if got := batch.Feats[1].At(59, 0); got != 2 {
		t.Fatalf("frame 59 should hold original value, got %v", got)
	}
	for row := 60; row < 100; row++ {
		for col := 0; col < dataset.FeatureDim; col++ {
			if got := batch.Feats[1].At(row, col); got != dataset.PadValue {
				t.Fatalf("pad at (%d,%d) = %v, want %v", row, col, got, dataset.PadValue)
			}
		}
	}
}

func TestAssemblePreservesLabelOrder(t *testing.T) {
	labels := []int{3, 0, 2, 1}
	segments := []*mat.Dense{
		constFeature(10, 0), constFeature(20, 0), constFeature(5, 0), constFeature(20, 0),
	}
	batch, err := dataset.Assemble(segments, labels)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	for i, want := range labels {
		if batch.Labels[i] != want {
			t.Fatalf("label %d: got %d want %d", i, batch.Labels[i], want)
		}
	}
	// Labels are copied, not aliased.
	labels[0] = 9
	if batch.Labels[0] == 9 {
		t.Fatal("batch labels must not alias caller slice")
	}
}

func TestAssembleEmptyInputFails(t *testing.T) {
	_, err := dataset.Assemble(nil, nil)
	if !errors.Is(err, services.ErrInvalidBatch) {
		t.Fatalf("expected ErrInvalidBatch, got %v", err)
	}
}

func TestAssembleMismatchedLabelsFail(t *testing.T) {
	_, err := dataset.Assemble([]*mat.Dense{constFeature(10, 0)}, []int{0, 1})
	if !errors.Is(err, services.ErrInvalidBatch) {
		t.Fatalf("expected ErrInvalidBatch, got %v", err)
	}
}

func TestAssembleInferenceBatchWithoutLabels(t *testing.T) {
	batch, err := dataset.Assemble([]*mat.Dense{constFeature(30, 1)}, nil)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if batch.Labels != nil {
		t.Fatal("inference batch should carry no labels")
	}
}
