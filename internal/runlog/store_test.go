package runlog_test

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"voxid/internal/runlog"
	"voxid/internal/testsupport"
)

func openStore(t *testing.T) *runlog.Store {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store, err := runlog.Open(cfg)
	if err != nil {
		t.Fatalf("open runlog: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRunLifecycle(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	cfg := testsupport.NewConfig(t)

	id, err := store.StartRun(ctx, cfg)
	if err != nil {
		t.Fatalf("start run: %v", err)
	}
	if id == "" {
		t.Fatal("empty run id")
	}

	run, err := store.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if run.Status != runlog.StatusRunning {
		t.Fatalf("status = %q, want running", run.Status)
	}
	if run.TotalSteps != cfg.Training.TotalSteps || run.BatchSize != cfg.Training.BatchSize {
		t.Fatalf("run settings not recorded: %+v", run)
	}
	if run.FinishedAt != nil {
		t.Fatal("fresh run already finished")
	}

	if err := store.RecordValidation(ctx, id, 5, 0.9, 0.5, true); err != nil {
		t.Fatalf("record validation: %v", err)
	}
	if err := store.RecordValidation(ctx, id, 10, 0.4, 0.8, true); err != nil {
		t.Fatalf("record validation: %v", err)
	}
	if err := store.RecordValidation(ctx, id, 15, 0.5, 0.7, false); err != nil {
		t.Fatalf("record validation: %v", err)
	}
	if err := store.RecordCheckpoint(ctx, id, 10, 0.8, "/tmp/model.ckpt"); err != nil {
		t.Fatalf("record checkpoint: %v", err)
	}
	if err := store.FinishRun(ctx, id, runlog.StatusCompleted); err != nil {
		t.Fatalf("finish run: %v", err)
	}

	run, err = store.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if run.Status != runlog.StatusCompleted {
		t.Fatalf("status = %q, want completed", run.Status)
	}
	if run.FinishedAt == nil {
		t.Fatal("finished run has no finish time")
	}
	if run.BestStep != 10 || run.BestAccuracy != 0.8 {
		t.Fatalf("best = step %d acc %v, want step 10 acc 0.8", run.BestStep, run.BestAccuracy)
	}

	validations, err := store.Validations(ctx, id)
	if err != nil {
		t.Fatalf("validations: %v", err)
	}
	if len(validations) != 3 {
		t.Fatalf("got %d validations, want 3", len(validations))
	}
	if validations[0].Step != 5 || validations[2].Step != 15 {
		t.Fatalf("validations out of step order: %+v", validations)
	}
	if !validations[1].Improved || validations[2].Improved {
		t.Fatalf("improved flags wrong: %+v", validations)
	}

	checkpoints, err := store.Checkpoints(ctx, id)
	if err != nil {
		t.Fatalf("checkpoints: %v", err)
	}
	if len(checkpoints) != 1 || checkpoints[0].Step != 10 || checkpoints[0].Path != "/tmp/model.ckpt" {
		t.Fatalf("checkpoints = %+v", checkpoints)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	cfg := testsupport.NewConfig(t)

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := store.StartRun(ctx, cfg)
		if err != nil {
			t.Fatalf("start run: %v", err)
		}
		ids = append(ids, id)
	}

	runs, err := store.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("got %d runs, want 3", len(runs))
	}

	limited, err := store.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("list runs limited: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("got %d runs with limit 2", len(limited))
	}
}

func TestCorruptTimestampIsAnError(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	cfg := testsupport.NewConfig(t)

	id, err := store.StartRun(ctx, cfg)
	if err != nil {
		t.Fatalf("start run: %v", err)
	}
	if err := store.RecordValidation(ctx, id, 5, 0.9, 0.5, true); err != nil {
		t.Fatalf("record validation: %v", err)
	}

	db, err := sql.Open("sqlite", store.Path())
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec("UPDATE runs SET started_at = 'garbage' WHERE id = ?", id); err != nil {
		t.Fatalf("corrupt started_at: %v", err)
	}
	if _, err := db.Exec("UPDATE validations SET created_at = 'garbage' WHERE run_id = ?", id); err != nil {
		t.Fatalf("corrupt created_at: %v", err)
	}

	if _, err := store.GetRun(ctx, id); err == nil {
		t.Fatal("expected error for corrupt run timestamp")
	}
	if _, err := store.Validations(ctx, id); err == nil {
		t.Fatal("expected error for corrupt validation timestamp")
	}
}

func TestFinishUnknownRun(t *testing.T) {
	store := openStore(t)
	if err := store.FinishRun(context.Background(), "no-such-run", runlog.StatusFailed); err == nil {
		t.Fatal("expected error for unknown run")
	}
	if _, err := store.GetRun(context.Background(), "no-such-run"); err == nil {
		t.Fatal("expected error for unknown run lookup")
	}
}
