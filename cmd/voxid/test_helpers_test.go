package main

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"voxid/internal/testsupport"
)

// writeTestConfig writes a minimal TOML config whose paths all live under a
// per-test temp directory and returns its location.
func writeTestConfig(t *testing.T) string {
	t.Helper()

	base := t.TempDir()
	datasetDir := filepath.Join(base, "dataset")
	testsupport.WriteDataset(t, datasetDir, testsupport.DatasetSpec{
		Speakers: map[string][]int{
			"id10001": {24, 24, 24, 24},
			"id10002": {24, 24, 24, 24},
		},
		TestFrames: []int{24, 30},
		Seed:       13,
	})

	content := fmt.Sprintf(`[paths]
data_dir = %q
save_path = %q
output_path = %q
log_dir = %q

[training]
batch_size = 4
n_workers = 2
segment_len = 16
valid_ratio = 0.25
base_lr = 0.001
valid_steps = 5
warmup_steps = 2
save_steps = 10
total_steps = 20
seed = 7

[model]
d_model = 8
n_heads = 2
ff_expansion = 2
conv_kernel = 3
blocks = 1

[logging]
format = "json"
level = "warn"
`,
		datasetDir,
		filepath.Join(base, "ckpt", "model.ckpt"),
		filepath.Join(base, "output.csv"),
		filepath.Join(base, "logs"),
	)

	path := filepath.Join(base, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
