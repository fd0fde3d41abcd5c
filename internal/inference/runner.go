package inference

import (
	"context"
	"encoding/csv"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/gonum/mat"

	"voxid/internal/dataset"
	"voxid/internal/encoder"
	"voxid/internal/logging"
	"voxid/internal/services"
)

// Prediction is one classified utterance.
type Prediction struct {
	FeaturePath string
	SpeakerID   int
	Speaker     string
}

// Runner classifies the held-back utterance set with a trained encoder.
type Runner struct {
	store  *dataset.Store
	net    encoder.Trainable
	logger *slog.Logger

	// Progress is invoked after each classified utterance when set.
	Progress func(done, total int)
}

// NewRunner binds a runner to an opened dataset and a restored encoder.
func NewRunner(store *dataset.Store, net encoder.Trainable, logger *slog.Logger) (*Runner, error) {
	if store == nil || net == nil {
		return nil, services.Wrap(services.ErrConfiguration, "inference", "new runner", "missing dependency", nil)
	}
	return &Runner{store: store, net: net, logger: logging.WithComponent(logger, "inference")}, nil
}

// Run classifies every utterance in dataset order. Features are forwarded at
// full length, one per batch, so no padding is involved. A missing feature
// file aborts the whole run.
func (r *Runner) Run(ctx context.Context) ([]Prediction, error) {
	paths, err := r.store.TestUtterances()
	if err != nil {
		return nil, err
	}

	r.net.SetTraining(false)
	mapping := r.store.Mapping()

	predictions := make([]Prediction, 0, len(paths))
	for i, featurePath := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		feat, err := r.store.LoadFeature(featurePath)
		if err != nil {
			return nil, err
		}
		batch, err := dataset.Assemble([]*mat.Dense{feat}, nil)
		if err != nil {
			return nil, err
		}
		logits, err := r.net.Forward(batch)
		if err != nil {
			return nil, err
		}

		id := encoder.Argmax(logits)[0]
		name, ok := mapping.Name(id)
		if !ok {
			return nil, services.Wrap(services.ErrCompute, "inference", "run", "predicted class outside speaker mapping", nil)
		}
		predictions = append(predictions, Prediction{FeaturePath: featurePath, SpeakerID: id, Speaker: name})

		if r.Progress != nil {
			r.Progress(i+1, len(paths))
		}
	}

	r.logger.Info("inference complete", logging.Int("utterances", len(predictions)))
	return predictions, nil
}

// WriteCSV writes the results table: a header row then one row per
// prediction in input order, Id being the utterance's feature path.
func WriteCSV(path string, predictions []Prediction) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "inference", "write results", "create output directory", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "inference", "write results", "create output file", err)
	}

	w := csv.NewWriter(file)
	if err := w.Write([]string{"Id", "Category"}); err != nil {
		file.Close()
		return services.Wrap(services.ErrCompute, "inference", "write results", "write header", err)
	}
	for _, p := range predictions {
		if err := w.Write([]string{p.FeaturePath, p.Speaker}); err != nil {
			file.Close()
			return services.Wrap(services.ErrCompute, "inference", "write results", "write row", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		file.Close()
		return services.Wrap(services.ErrCompute, "inference", "write results", "flush output", err)
	}
	if err := file.Close(); err != nil {
		return services.Wrap(services.ErrCompute, "inference", "write results", "close output", err)
	}
	return nil
}

// SpeakerCount aggregates predictions per speaker for display.
type SpeakerCount struct {
	Speaker string
	Count   int
}

// Summarize counts predictions per speaker, most frequent first, ties broken
// by name.
func Summarize(predictions []Prediction) []SpeakerCount {
	counts := make(map[string]int)
	for _, p := range predictions {
		counts[p.Speaker]++
	}
	out := make([]SpeakerCount, 0, len(counts))
	for speaker, count := range counts {
		out = append(out, SpeakerCount{Speaker: speaker, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Speaker < out[j].Speaker
	})
	return out
}
