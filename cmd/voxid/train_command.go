package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"voxid/internal/checkpoint"
	"voxid/internal/config"
	"voxid/internal/dataset"
	"voxid/internal/encoder"
	"voxid/internal/logging"
	"voxid/internal/runlog"
	"voxid/internal/training"
)

func newTrainCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "train",
		Short: "Train the speaker encoder on the configured dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("initialize logging: %w", err)
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runTraining(runCtx, cmd, cfg, logger)
		},
	}
}

func runTraining(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) error {
	lockPath := filepath.Join(filepath.Dir(cfg.Paths.SavePath), "voxid.lock")
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire training lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another run holds the training lock at %s", lockPath)
	}
	defer func() { _ = lock.Unlock() }()

	store, err := dataset.Open(cfg.Paths.DataDir)
	if err != nil {
		return err
	}
	records, err := store.TrainingRecords()
	if err != nil {
		return err
	}

	splitRNG := rand.New(rand.NewSource(cfg.Training.Seed))
	train, valid := dataset.Split(records, cfg.Training.ValidRatio, splitRNG)
	logger.Info("dataset ready",
		logging.Int("speakers", store.Mapping().Count()),
		logging.Int("train_utterances", len(train)),
		logging.Int("valid_utterances", len(valid)),
	)

	net, err := buildNetwork(cfg, store.Mapping().Count(), logger)
	if err != nil {
		return err
	}

	cursor, err := dataset.NewCursor(store, train, dataset.CursorOptions{
		BatchSize:  cfg.Training.BatchSize,
		SegmentLen: cfg.Training.SegmentLen,
		Workers:    cfg.Training.Workers,
		Seed:       cfg.Training.Seed,
	})
	if err != nil {
		return err
	}
	defer cursor.Close()

	runs, err := runlog.Open(cfg)
	if err != nil {
		return err
	}
	defer runs.Close()
	runID, err := runs.StartRun(ctx, cfg)
	if err != nil {
		return err
	}
	logger.Info("run started", logging.String(logging.FieldRunID, runID))

	bar := newProgressBar(cfg.Training.TotalSteps, "training")
	hooks := training.Hooks{
		AfterStep: func(step int, loss, accuracy, lr float64) {
			if bar != nil {
				_ = bar.Set(step)
			}
		},
		AfterValidate: func(step int, result training.ValidationResult, improved bool) {
			if err := runs.RecordValidation(ctx, runID, step, result.Loss, result.Accuracy, improved); err != nil {
				logger.Warn("record validation", logging.Error(err))
			}
		},
		AfterSave: func(step int, accuracy float64) {
			if err := runs.RecordCheckpoint(ctx, runID, step, accuracy, cfg.Paths.SavePath); err != nil {
				logger.Warn("record checkpoint", logging.Error(err))
			}
		},
	}

	loop, err := training.NewLoop(cfg, store, cursor, valid, net, checkpoint.NewWriter(cfg, logger), hooks, logger)
	if err != nil {
		return err
	}

	best, runErr := loop.Run(ctx)
	finishProgressBar(bar)

	status := runlog.StatusCompleted
	switch {
	case runErr == nil:
	case errors.Is(runErr, context.Canceled):
		status = runlog.StatusInterrupted
	default:
		status = runlog.StatusFailed
	}
	// The run row is stamped even when the loop was cancelled.
	if err := runs.FinishRun(context.Background(), runID, status); err != nil {
		logger.Warn("finish run", logging.Error(err))
	}
	if runErr != nil {
		return runErr
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderTrainSummary(runID, cfg.Training.TotalSteps, best.Step, best.Accuracy, cfg.Paths.SavePath))
	return nil
}

// buildNetwork starts fresh from the model settings, or warm-starts from an
// existing checkpoint when training.model_path is set.
func buildNetwork(cfg *config.Config, classes int, logger *slog.Logger) (*encoder.Network, error) {
	if cfg.Training.ModelPath == "" {
		return encoder.New(encoder.FromModelConfig(cfg.Model, classes), cfg.Training.Seed)
	}

	net, env, err := restoreNetwork(cfg.Training.ModelPath, cfg.Training.Seed)
	if err != nil {
		return nil, err
	}
	if env.Encoder.Config.Classes != classes {
		return nil, fmt.Errorf("checkpoint %s was trained for %d speakers, dataset has %d",
			cfg.Training.ModelPath, env.Encoder.Config.Classes, classes)
	}
	logger.Info("warm start",
		logging.String("path", cfg.Training.ModelPath),
		logging.Int(logging.FieldStep, env.Step),
		logging.Float64("accuracy", env.Accuracy),
	)
	return net, nil
}
