package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains dataset and output locations.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	SavePath   string `toml:"save_path"`
	OutputPath string `toml:"output_path"`
	LogDir     string `toml:"log_dir"`
}

// Training contains optimization-loop settings.
type Training struct {
	BatchSize   int     `toml:"batch_size"`
	Workers     int     `toml:"n_workers"`
	SegmentLen  int     `toml:"segment_len"`
	ValidRatio  float64 `toml:"valid_ratio"`
	BaseLR      float64 `toml:"base_lr"`
	ValidSteps  int     `toml:"valid_steps"`
	WarmupSteps int     `toml:"warmup_steps"`
	SaveSteps   int     `toml:"save_steps"`
	TotalSteps  int     `toml:"total_steps"`
	Seed        int64   `toml:"seed"`
	// ModelPath warm-starts training from an existing checkpoint when set.
	// Empty means fresh random initialization.
	ModelPath string `toml:"model_path"`
}

// Model contains encoder dimensions and regularization rates.
type Model struct {
	DModel             int     `toml:"d_model"`
	Heads              int     `toml:"n_heads"`
	FFExpansion        int     `toml:"ff_expansion"`
	ConvKernel         int     `toml:"conv_kernel"`
	Blocks             int     `toml:"blocks"`
	DropoutAttention   float64 `toml:"dropout_attention"`
	DropoutFeedForward float64 `toml:"dropout_feedforward"`
	DropoutConvolution float64 `toml:"dropout_convolution"`
}

// Logging contains log output settings.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for voxid.
type Config struct {
	Paths    Paths    `toml:"paths"`
	Training Training `toml:"training"`
	Model    Model    `toml:"model"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/voxid/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("voxid.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a run writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.LogDir, filepath.Dir(c.Paths.SavePath)}
	if strings.TrimSpace(c.Paths.OutputPath) != "" {
		dirs = append(dirs, filepath.Dir(c.Paths.OutputPath))
	}
	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ArchivePath derives the step-tagged checkpoint path from the rolling
// save path: model.ckpt -> model-step70000.ckpt.
func (c *Config) ArchivePath(step int) string {
	base := c.Paths.SavePath
	ext := filepath.Ext(base)
	return fmt.Sprintf("%s-step%d%s", strings.TrimSuffix(base, ext), step, ext)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
