package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"voxid/internal/dataset"
	"voxid/internal/inference"
	"voxid/internal/logging"
)

func newInferCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "infer",
		Short: "Classify the held-back utterances with a trained checkpoint",
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

			modelPath := cfg.Training.ModelPath
			if modelPath == "" {
				modelPath = cfg.Paths.SavePath
			}
			net, env, err := restoreNetwork(modelPath, cfg.Training.Seed)
			if err != nil {
				return err
			}
			logger.Info("checkpoint loaded",
				logging.String("path", modelPath),
				logging.Int(logging.FieldStep, env.Step),
				logging.Float64("accuracy", env.Accuracy),
			)

			store, err := dataset.Open(cfg.Paths.DataDir)
			if err != nil {
				return err
			}

			runner, err := inference.NewRunner(store, net, logger)
			if err != nil {
				return err
			}

			paths, err := store.TestUtterances()
			if err != nil {
				return err
			}
			pb := newProgressBar(len(paths), "classifying")
			if pb != nil {
				runner.Progress = func(done, total int) { _ = pb.Set(done) }
			}

			predictions, err := runner.Run(runCtx)
			finishProgressBar(pb)
			if err != nil {
				return err
			}

			if err := inference.WriteCSV(cfg.Paths.OutputPath, predictions); err != nil {
				return err
			}
			logger.Info("results written",
				logging.String("path", cfg.Paths.OutputPath),
				logging.Int("rows", len(predictions)),
			)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Classified %d utterances -> %s\n", len(predictions), cfg.Paths.OutputPath)
			fmt.Fprintln(out, renderSummaryTable(inference.Summarize(predictions)))
			return nil
		},
	}
}
