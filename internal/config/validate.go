package config

import (
	"errors"
	"fmt"
	"sort"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTraining(); err != nil {
		return err
	}
	if err := c.validateModel(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.SavePath == "" {
		return errors.New("paths.save_path must be set")
	}
	return nil
}

func (c *Config) validateTraining() error {
	if err := ensurePositive(map[string]int{
		"training.batch_size":   c.Training.BatchSize,
		"training.n_workers":    c.Training.Workers,
		"training.segment_len":  c.Training.SegmentLen,
		"training.valid_steps":  c.Training.ValidSteps,
		"training.warmup_steps": c.Training.WarmupSteps,
		"training.save_steps":   c.Training.SaveSteps,
		"training.total_steps":  c.Training.TotalSteps,
	}); err != nil {
		return err
	}
	if c.Training.WarmupSteps >= c.Training.TotalSteps {
		return errors.New("training.warmup_steps must be less than training.total_steps")
	}
	if c.Training.ValidRatio <= 0 || c.Training.ValidRatio >= 1 {
		return errors.New("training.valid_ratio must be between 0 and 1 exclusive")
	}
	if c.Training.BaseLR <= 0 {
		return errors.New("training.base_lr must be positive")
	}
	return nil
}

func (c *Config) validateModel() error {
	if err := ensurePositive(map[string]int{
		"model.d_model":      c.Model.DModel,
		"model.n_heads":      c.Model.Heads,
		"model.ff_expansion": c.Model.FFExpansion,
		"model.conv_kernel":  c.Model.ConvKernel,
		"model.blocks":       c.Model.Blocks,
	}); err != nil {
		return err
	}
	if c.Model.DModel%c.Model.Heads != 0 {
		return errors.New("model.d_model must be divisible by model.n_heads")
	}
	if c.Model.ConvKernel%2 == 0 {
		return errors.New("model.conv_kernel must be odd")
	}
	for name, rate := range map[string]float64{
		"model.dropout_attention":   c.Model.DropoutAttention,
		"model.dropout_feedforward": c.Model.DropoutFeedForward,
		"model.dropout_convolution": c.Model.DropoutConvolution,
	} {
		if rate < 0 || rate >= 1 {
			return fmt.Errorf("%s must be in [0, 1)", name)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

func ensurePositive(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
