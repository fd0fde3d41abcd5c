package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"voxid/internal/inference"
	"voxid/internal/runlog"
)

func newTableWriter(header table.Row, rightAligned ...int) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(header)

	configs := make([]table.ColumnConfig, 0, len(rightAligned))
	for _, col := range rightAligned {
		configs = append(configs, table.ColumnConfig{
			Number:      col,
			Align:       text.AlignRight,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)
	return tw
}

func renderRunsTable(runs []*runlog.Run) string {
	tw := newTableWriter(table.Row{"Run", "Status", "Started", "Steps", "Best step", "Best accuracy"}, 4, 5, 6)
	for _, run := range runs {
		tw.AppendRow(table.Row{
			run.ID,
			run.Status,
			run.StartedAt.Format("2006-01-02 15:04:05"),
			run.TotalSteps,
			run.BestStep,
			formatAccuracy(run.BestAccuracy),
		})
	}
	return tw.Render()
}

func renderValidationsTable(validations []runlog.Validation) string {
	tw := newTableWriter(table.Row{"Step", "Loss", "Accuracy", "Improved"}, 1, 2, 3)
	for _, v := range validations {
		tw.AppendRow(table.Row{v.Step, fmt.Sprintf("%.4f", v.Loss), formatAccuracy(v.Accuracy), yesNo(v.Improved)})
	}
	return tw.Render()
}

func renderCheckpointsTable(checkpoints []runlog.Checkpoint) string {
	tw := newTableWriter(table.Row{"Step", "Accuracy", "Path"}, 1, 2)
	for _, c := range checkpoints {
		tw.AppendRow(table.Row{c.Step, formatAccuracy(c.Accuracy), c.Path})
	}
	return tw.Render()
}

func renderSummaryTable(counts []inference.SpeakerCount) string {
	tw := newTableWriter(table.Row{"Speaker", "Utterances"}, 2)
	for _, c := range counts {
		tw.AppendRow(table.Row{c.Speaker, c.Count})
	}
	return tw.Render()
}

func renderTrainSummary(runID string, totalSteps, bestStep int, bestAccuracy float64, savePath string) string {
	tw := newTableWriter(table.Row{"Run", "Steps", "Best step", "Best accuracy", "Checkpoint"}, 2, 3, 4)
	tw.AppendRow(table.Row{runID, totalSteps, bestStep, formatAccuracy(bestAccuracy), savePath})
	return tw.Render()
}
