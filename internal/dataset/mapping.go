package dataset

import (
	"fmt"

	"voxid/internal/services"
)

// SpeakerMapping is an immutable bijection between speaker names and dense
// integer ids in [0, Count).
type SpeakerMapping struct {
	nameToID map[string]int
	idToName []string
}

// NewSpeakerMapping validates and freezes a speaker2id table.
func NewSpeakerMapping(nameToID map[string]int) (*SpeakerMapping, error) {
	if len(nameToID) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "dataset", "speaker mapping", "empty speaker table", nil)
	}
	idToName := make([]string, len(nameToID))
	seen := make([]bool, len(nameToID))
	for name, id := range nameToID {
		if id < 0 || id >= len(nameToID) {
			return nil, services.Wrap(services.ErrConfiguration, "dataset", "speaker mapping",
				fmt.Sprintf("id %d for %q outside [0, %d)", id, name, len(nameToID)), nil)
		}
		if seen[id] {
			return nil, services.Wrap(services.ErrConfiguration, "dataset", "speaker mapping",
				fmt.Sprintf("duplicate id %d", id), nil)
		}
		seen[id] = true
		idToName[id] = name
	}
	cloned := make(map[string]int, len(nameToID))
	for name, id := range nameToID {
		cloned[name] = id
	}
	return &SpeakerMapping{nameToID: cloned, idToName: idToName}, nil
}

// Count returns the number of speakers.
func (m *SpeakerMapping) Count() int { return len(m.idToName) }

// ID resolves a speaker name to its dense id.
func (m *SpeakerMapping) ID(name string) (int, bool) {
	id, ok := m.nameToID[name]
	return id, ok
}

// Name resolves a dense id back to the speaker name.
func (m *SpeakerMapping) Name(id int) (string, bool) {
	if id < 0 || id >= len(m.idToName) {
		return "", false
	}
	return m.idToName[id], true
}
