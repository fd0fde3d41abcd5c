package testsupport

import (
	"path/filepath"
	"testing"

	"voxid/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test
// and small, fast training settings. Options are applied last.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "dataset")
	cfg.Paths.SavePath = filepath.Join(base, "ckpt", "model.ckpt")
	cfg.Paths.OutputPath = filepath.Join(base, "output.csv")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	cfg.Training.BatchSize = 4
	cfg.Training.Workers = 2
	cfg.Training.SegmentLen = 16
	cfg.Training.ValidRatio = 0.25
	cfg.Training.ValidSteps = 5
	cfg.Training.WarmupSteps = 2
	cfg.Training.SaveSteps = 10
	cfg.Training.TotalSteps = 20
	cfg.Training.Seed = 7

	cfg.Model.DModel = 8
	cfg.Model.Heads = 2
	cfg.Model.FFExpansion = 2
	cfg.Model.ConvKernel = 3
	cfg.Model.Blocks = 1

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithTotalSteps overrides the training step budget.
func WithTotalSteps(steps int) ConfigOption {
	return func(c *config.Config) { c.Training.TotalSteps = steps }
}
