package testsupport

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"

	"voxid/internal/dataset"
)

// DatasetSpec describes a synthetic corpus: utterance frame counts per
// speaker name, plus optional inference utterances.
type DatasetSpec struct {
	Speakers map[string][]int
	// TestFrames lists frame counts for testdata.json entries.
	TestFrames []int
	Seed       int64
}

// WriteDataset materializes a dataset root under dir with mapping.json,
// metadata.json, testdata.json, and one .npy feature file per utterance.
// Speaker ids are assigned in sorted name order. Feature values are drawn
// from a seeded normal so runs are reproducible.
func WriteDataset(t testing.TB, dir string, spec DatasetSpec) {
	t.Helper()

	rng := rand.New(rand.NewSource(spec.Seed))
	featDir := filepath.Join(dir, "feat")
	if err := os.MkdirAll(featDir, 0o755); err != nil {
		t.Fatalf("create feature dir: %v", err)
	}

	names := sortedKeys(spec.Speakers)
	speaker2id := make(map[string]int, len(names))
	id2speaker := make(map[string]string, len(names))
	for i, name := range names {
		speaker2id[name] = i
		id2speaker[fmt.Sprint(i)] = name
	}
	writeJSON(t, filepath.Join(dir, "mapping.json"), map[string]any{
		"speaker2id": speaker2id,
		"id2speaker": id2speaker,
	})

	type uttMeta struct {
		FeaturePath string `json:"feature_path"`
		MelLen      int    `json:"mel_len"`
	}
	speakers := make(map[string][]uttMeta, len(names))
	for _, name := range names {
		for u, frames := range spec.Speakers[name] {
			rel := filepath.Join("feat", fmt.Sprintf("%s-%03d.npy", name, u))
			WriteFeature(t, filepath.Join(dir, rel), frames, rng)
			speakers[name] = append(speakers[name], uttMeta{FeaturePath: rel, MelLen: frames})
		}
	}
	writeJSON(t, filepath.Join(dir, "metadata.json"), map[string]any{"speakers": speakers})

	type testUtt struct {
		FeaturePath string `json:"feature_path"`
	}
	var utts []testUtt
	for u, frames := range spec.TestFrames {
		rel := filepath.Join("feat", fmt.Sprintf("test-%03d.npy", u))
		WriteFeature(t, filepath.Join(dir, rel), frames, rng)
		utts = append(utts, testUtt{FeaturePath: rel})
	}
	writeJSON(t, filepath.Join(dir, "testdata.json"), map[string]any{"utterances": utts})
}

// WriteFeature writes a frames-by-FeatureDim .npy matrix at path.
func WriteFeature(t testing.TB, path string, frames int, rng *rand.Rand) {
	t.Helper()

	data := make([]float64, frames*dataset.FeatureDim)
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	feat := mat.NewDense(frames, dataset.FeatureDim, data)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create dir for %s: %v", path, err)
	}
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer file.Close()
	if err := npyio.Write(file, feat); err != nil {
		t.Fatalf("write npy %s: %v", path, err)
	}
}

func writeJSON(t testing.TB, path string, value any) {
	t.Helper()
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		t.Fatalf("marshal %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func sortedKeys(m map[string][]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
