package inference_test

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	"voxid/internal/dataset"
	"voxid/internal/encoder"
	"voxid/internal/inference"
	"voxid/internal/logging"
	"voxid/internal/services"
	"voxid/internal/testsupport"
)

// scriptedNet returns a fixed class per forward call.
type scriptedNet struct {
	classes  int
	script   []int
	call     int
	training bool

	seqLens    []int
	sawLabels  bool
	batchSizes []int
}

func (s *scriptedNet) Forward(batch *dataset.Batch) (*mat.Dense, error) {
	s.seqLens = append(s.seqLens, batch.SeqLen)
	s.batchSizes = append(s.batchSizes, batch.Size())
	if batch.Labels != nil {
		s.sawLabels = true
	}
	logits := mat.NewDense(batch.Size(), s.classes, nil)
	for i := 0; i < batch.Size(); i++ {
		logits.Set(i, s.script[s.call], 3)
		s.call++
	}
	return logits, nil
}

func (s *scriptedNet) Backward(*mat.Dense) error      { return nil }
func (s *scriptedNet) Step(float64)                   {}
func (s *scriptedNet) ZeroGrad()                      {}
func (s *scriptedNet) SetTraining(training bool)      { s.training = training }
func (s *scriptedNet) Training() bool                 { return s.training }
func (s *scriptedNet) State() *encoder.State          { return &encoder.State{} }
func (s *scriptedNet) LoadState(*encoder.State) error { return nil }

func inferenceFixture(t *testing.T) (*dataset.Store, string) {
	t.Helper()
	dir := t.TempDir()
	testsupport.WriteDataset(t, dir, testsupport.DatasetSpec{
		Speakers: map[string][]int{
			"id10001": {20},
			"id10002": {20},
		},
		TestFrames: []int{25, 40},
		Seed:       5,
	})
	store, err := dataset.Open(dir)
	if err != nil {
		t.Fatalf("open dataset: %v", err)
	}
	return store, dir
}

func TestRunClassifiesInDatasetOrder(t *testing.T) {
	store, _ := inferenceFixture(t)

	net := &scriptedNet{classes: 2, script: []int{0, 1}, training: true}
	runner, err := inference.NewRunner(store, net, logging.NewNop())
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	var progress []int
	runner.Progress = func(done, total int) { progress = append(progress, done) }

	predictions, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(predictions) != 2 {
		t.Fatalf("got %d predictions, want 2", len(predictions))
	}
	if predictions[0].Speaker != "id10001" || predictions[1].Speaker != "id10002" {
		t.Fatalf("predictions = %+v", predictions)
	}
	if predictions[0].SpeakerID != 0 || predictions[1].SpeakerID != 1 {
		t.Fatalf("predicted ids = %d, %d", predictions[0].SpeakerID, predictions[1].SpeakerID)
	}

	// Full-length features, one per forward pass, no training labels.
	if net.seqLens[0] != 25 || net.seqLens[1] != 40 {
		t.Fatalf("sequence lengths %v, want full 25 and 40 frames", net.seqLens)
	}
	for _, size := range net.batchSizes {
		if size != 1 {
			t.Fatalf("batch sizes %v, want all 1", net.batchSizes)
		}
	}
	if net.sawLabels {
		t.Fatal("inference batches must not carry labels")
	}
	if net.training {
		t.Fatal("runner did not switch the encoder to eval mode")
	}
	if len(progress) != 2 || progress[1] != 2 {
		t.Fatalf("progress callbacks = %v", progress)
	}
}

func TestRunFailsOnMissingFeature(t *testing.T) {
	store, dir := inferenceFixture(t)
	if err := os.Remove(filepath.Join(dir, "feat", "test-001.npy")); err != nil {
		t.Fatalf("remove feature: %v", err)
	}

	net := &scriptedNet{classes: 2, script: []int{0, 0}}
	runner, err := inference.NewRunner(store, net, logging.NewNop())
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	if _, err := runner.Run(context.Background()); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("error = %v, want not-found marker", err)
	}
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "results.csv")
	predictions := []inference.Prediction{
		{FeaturePath: "featA.npy", Speaker: "id10001"},
		{FeaturePath: "featB.npy", Speaker: "id10002"},
	}
	if err := inference.WriteCSV(path, predictions); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open results: %v", err)
	}
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("read results: %v", err)
	}

	want := [][]string{
		{"Id", "Category"},
		{"featA.npy", "id10001"},
		{"featB.npy", "id10002"},
	}
	if len(rows) != len(want) {
		t.Fatalf("rows = %v, want %v", rows, want)
	}
	for i := range want {
		for j := range want[i] {
			if rows[i][j] != want[i][j] {
				t.Fatalf("rows = %v, want %v", rows, want)
			}
		}
	}
}

func TestSummarize(t *testing.T) {
	predictions := []inference.Prediction{
		{Speaker: "b"}, {Speaker: "a"}, {Speaker: "b"}, {Speaker: "c"}, {Speaker: "a"}, {Speaker: "b"},
	}
	counts := inference.Summarize(predictions)
	if len(counts) != 3 {
		t.Fatalf("got %d speakers, want 3", len(counts))
	}
	if counts[0].Speaker != "b" || counts[0].Count != 3 {
		t.Fatalf("top = %+v, want b x3", counts[0])
	}
	if counts[1].Speaker != "a" || counts[2].Speaker != "c" {
		t.Fatalf("tie break wrong: %+v", counts)
	}
}
