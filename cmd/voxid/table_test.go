package main

import (
	"strings"
	"testing"
	"time"

	"voxid/internal/inference"
	"voxid/internal/runlog"
)

func TestRenderRunsTable(t *testing.T) {
	started := time.Date(2026, 8, 30, 10, 30, 0, 0, time.UTC)
	out := renderRunsTable([]*runlog.Run{
		{ID: "run-1", Status: runlog.StatusCompleted, StartedAt: started, TotalSteps: 70000, BestStep: 42000, BestAccuracy: 0.8125},
	})
	for _, want := range []string{"run-1", "completed", "2026-08-30 10:30:00", "70000", "42000", "0.8125"} {
		if !strings.Contains(out, want) {
			t.Fatalf("runs table missing %q:\n%s", want, out)
		}
	}
}

func TestRenderValidationsTable(t *testing.T) {
	out := renderValidationsTable([]runlog.Validation{
		{Step: 2000, Loss: 1.25, Accuracy: 0.5, Improved: true},
		{Step: 4000, Loss: 1.5, Accuracy: 0.4, Improved: false},
	})
	for _, want := range []string{"2000", "1.2500", "0.5000", "yes", "no"} {
		if !strings.Contains(out, want) {
			t.Fatalf("validations table missing %q:\n%s", want, out)
		}
	}
}

func TestRenderCheckpointsTable(t *testing.T) {
	out := renderCheckpointsTable([]runlog.Checkpoint{
		{Step: 10000, Accuracy: 0.625, Path: "/tmp/model-step10000.ckpt"},
	})
	for _, want := range []string{"10000", "0.6250", "/tmp/model-step10000.ckpt"} {
		if !strings.Contains(out, want) {
			t.Fatalf("checkpoints table missing %q:\n%s", want, out)
		}
	}
}

func TestRenderSummaryTable(t *testing.T) {
	out := renderSummaryTable([]inference.SpeakerCount{{Speaker: "id10001", Count: 7}})
	if !strings.Contains(out, "id10001") || !strings.Contains(out, "7") {
		t.Fatalf("summary table wrong:\n%s", out)
	}
}

func TestRenderTrainSummary(t *testing.T) {
	out := renderTrainSummary("run-9", 20, 10, 0.75, "/tmp/model.ckpt")
	for _, want := range []string{"run-9", "20", "10", "0.7500", "/tmp/model.ckpt"} {
		if !strings.Contains(out, want) {
			t.Fatalf("train summary missing %q:\n%s", want, out)
		}
	}
}
