package checkpoint

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"voxid/internal/config"
	"voxid/internal/encoder"
	"voxid/internal/logging"
	"voxid/internal/services"
)

// FormatVersion guards against loading envelopes written by an
// incompatible build.
const FormatVersion = 1

// Envelope is the on-disk checkpoint: the snapshot plus the validation
// accuracy and step that earned it.
type Envelope struct {
	FormatVersion int            `msgpack:"format_version"`
	SavedAt       time.Time      `msgpack:"saved_at"`
	Step          int            `msgpack:"step"`
	Accuracy      float64        `msgpack:"accuracy"`
	Encoder       *encoder.State `msgpack:"encoder"`
}

// Save writes the envelope at path through a temp file and rename, so the
// previous checkpoint survives a crash mid-write.
func Save(path string, env *Envelope) error {
	if env == nil || env.Encoder == nil {
		return services.Wrap(services.ErrCompute, "checkpoint", "save", "empty snapshot", nil)
	}
	env.FormatVersion = FormatVersion
	if env.SavedAt.IsZero() {
		env.SavedAt = time.Now().UTC()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "checkpoint", "save", "create checkpoint directory", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return services.Wrap(services.ErrCompute, "checkpoint", "save", "create temp file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	enc := msgpack.NewEncoder(tmp)
	if err := enc.Encode(env); err != nil {
		tmp.Close()
		return services.Wrap(services.ErrCompute, "checkpoint", "save", "encode snapshot", err)
	}
	if err := tmp.Close(); err != nil {
		return services.Wrap(services.ErrCompute, "checkpoint", "save", "flush temp file", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return services.Wrap(services.ErrCompute, "checkpoint", "save", "replace checkpoint", err)
	}
	return nil
}

// Load reads an envelope back. A missing file maps to the not-found marker
// so callers can distinguish "never trained" from a corrupt checkpoint.
func Load(path string) (*Envelope, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "checkpoint", "load", "checkpoint file missing", err)
		}
		return nil, services.Wrap(services.ErrCompute, "checkpoint", "load", "open checkpoint", err)
	}
	defer file.Close()

	var env Envelope
	if err := msgpack.NewDecoder(file).Decode(&env); err != nil {
		return nil, services.Wrap(services.ErrCompute, "checkpoint", "load", "decode checkpoint", err)
	}
	if env.FormatVersion != FormatVersion {
		return nil, services.Wrap(services.ErrConfiguration, "checkpoint", "load", "unsupported checkpoint format version", nil)
	}
	if env.Encoder == nil {
		return nil, services.Wrap(services.ErrCompute, "checkpoint", "load", "checkpoint carries no parameters", nil)
	}
	return &env, nil
}

// Writer persists best snapshots for the training loop: each save updates
// the rolling path and drops a step-tagged archive copy beside it.
type Writer struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewWriter builds a writer bound to the configured checkpoint paths.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	return &Writer{cfg: cfg, logger: logging.WithComponent(logger, "checkpoint")}
}

// Save implements the training loop's saver contract.
func (w *Writer) Save(state *encoder.State, step int, accuracy float64) error {
	env := &Envelope{Step: step, Accuracy: accuracy, Encoder: state}
	if err := Save(w.cfg.Paths.SavePath, env); err != nil {
		return err
	}
	archive := w.cfg.ArchivePath(step)
	if err := Save(archive, env); err != nil {
		return err
	}
	w.logger.Info("snapshot persisted",
		logging.Int(logging.FieldStep, step),
		logging.Float64("accuracy", accuracy),
		logging.String("path", w.cfg.Paths.SavePath),
		logging.String("archive", archive),
	)
	return nil
}
