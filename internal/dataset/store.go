package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"

	"voxid/internal/services"
)

// FeatureDim is the fixed number of mel bins in every feature file.
const FeatureDim = 40

// Record pairs an utterance's feature file with its speaker id.
type Record struct {
	FeaturePath string
	Speaker     int
	MelLen      int
}

// Store provides read-only access to one dataset root.
type Store struct {
	root    string
	mapping *SpeakerMapping
}

type mappingFile struct {
	Speaker2ID map[string]int `json:"speaker2id"`
}

type metadataFile struct {
	Speakers map[string][]struct {
		FeaturePath string `json:"feature_path"`
		MelLen      int    `json:"mel_len"`
	} `json:"speakers"`
}

type testdataFile struct {
	Utterances []struct {
		FeaturePath string `json:"feature_path"`
	} `json:"utterances"`
}

// Open validates the dataset root and loads the speaker mapping.
func Open(root string) (*Store, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, services.Wrap(services.ErrConfiguration, "dataset", "open",
			fmt.Sprintf("dataset root %q is not a directory", root), err)
	}

	var raw mappingFile
	if err := readJSON(filepath.Join(root, "mapping.json"), &raw); err != nil {
		return nil, err
	}
	mapping, err := NewSpeakerMapping(raw.Speaker2ID)
	if err != nil {
		return nil, err
	}

	return &Store{root: root, mapping: mapping}, nil
}

// Mapping returns the speaker name/id bijection.
func (s *Store) Mapping() *SpeakerMapping { return s.mapping }

// Root returns the dataset root directory.
func (s *Store) Root() string { return s.root }

// TrainingRecords reads metadata.json and flattens it into one record per
// utterance. Speakers are visited in sorted name order so the result is
// deterministic.
func (s *Store) TrainingRecords() ([]Record, error) {
	var meta metadataFile
	if err := readJSON(filepath.Join(s.root, "metadata.json"), &meta); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(meta.Speakers))
	for name := range meta.Speakers {
		names = append(names, name)
	}
	sort.Strings(names)

	var records []Record
	for _, name := range names {
		id, ok := s.mapping.ID(name)
		if !ok {
			return nil, services.Wrap(services.ErrConfiguration, "dataset", "training records",
				fmt.Sprintf("speaker %q in metadata.json has no mapping entry", name), nil)
		}
		for _, utt := range meta.Speakers[name] {
			records = append(records, Record{FeaturePath: utt.FeaturePath, Speaker: id, MelLen: utt.MelLen})
		}
	}
	if len(records) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "dataset", "training records",
			"metadata.json lists no utterances", nil)
	}
	return records, nil
}

// TestUtterances reads testdata.json and returns feature paths in file order.
func (s *Store) TestUtterances() ([]string, error) {
	var td testdataFile
	if err := readJSON(filepath.Join(s.root, "testdata.json"), &td); err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(td.Utterances))
	for _, utt := range td.Utterances {
		paths = append(paths, utt.FeaturePath)
	}
	if len(paths) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "dataset", "test utterances",
			"testdata.json lists no utterances", nil)
	}
	return paths, nil
}

// LoadFeature reads one utterance's mel-spectrogram matrix. The path is
// resolved relative to the dataset root. A missing file is a fatal not-found
// error per the run's failure semantics.
func (s *Store) LoadFeature(featurePath string) (*mat.Dense, error) {
	full := filepath.Join(s.root, featurePath)
	file, err := os.Open(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "dataset", "load feature", featurePath, err)
		}
		return nil, services.Wrap(services.ErrConfiguration, "dataset", "load feature", featurePath, err)
	}
	defer file.Close()

	var feat mat.Dense
	if err := npyio.Read(file, &feat); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "dataset", "decode feature", featurePath, err)
	}
	rows, cols := feat.Dims()
	if rows == 0 || cols != FeatureDim {
		return nil, services.Wrap(services.ErrConfiguration, "dataset", "decode feature",
			fmt.Sprintf("%s: unexpected shape (%d, %d), want (frames, %d)", featurePath, rows, cols, FeatureDim), nil)
	}
	return &feat, nil
}

func readJSON(path string, target any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "dataset", "read",
			fmt.Sprintf("missing or unreadable %s", filepath.Base(path)), err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return services.Wrap(services.ErrConfiguration, "dataset", "parse",
			fmt.Sprintf("malformed %s", filepath.Base(path)), err)
	}
	return nil
}
