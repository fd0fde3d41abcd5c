package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"voxid/internal/runlog"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Training run history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listRuns(cmd, ctx, 0)
		},
	}
	runsCmd.AddCommand(newRunsShowCommand(ctx))
	return runsCmd
}

func newRunsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Validation and checkpoint history for one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := runlog.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			validations, err := store.Validations(cmd.Context(), run.ID)
			if err != nil {
				return err
			}
			checkpoints, err := store.Checkpoints(cmd.Context(), run.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s (%s), started %s\n", run.ID, run.Status, run.StartedAt.Format(time.RFC3339))

			if len(validations) > 0 {
				fmt.Fprintln(out, renderValidationsTable(validations))
			}
			if len(checkpoints) > 0 {
				fmt.Fprintln(out, renderCheckpointsTable(checkpoints))
			}
			return nil
		},
	}
}

func listRuns(cmd *cobra.Command, ctx *commandContext, limit int) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	store, err := runlog.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No training runs recorded")
		return nil
	}

	fmt.Fprintln(out, renderRunsTable(runs))
	return nil
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
