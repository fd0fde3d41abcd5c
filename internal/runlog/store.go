package runlog

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"voxid/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; stale databases must be deleted rather than migrated.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the
// expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Run statuses.
const (
	StatusRunning     = "running"
	StatusCompleted   = "completed"
	StatusFailed      = "failed"
	StatusInterrupted = "interrupted"
)

// Run is one training invocation.
type Run struct {
	ID           string
	Status       string
	StartedAt    time.Time
	FinishedAt   *time.Time
	Seed         int64
	TotalSteps   int
	BatchSize    int
	BaseLR       float64
	DataDir      string
	BestStep     int
	BestAccuracy float64
}

// Validation is one held-out pass inside a run.
type Validation struct {
	Step      int
	Loss      float64
	Accuracy  float64
	Improved  bool
	CreatedAt time.Time
}

// Checkpoint records one persisted snapshot.
type Checkpoint struct {
	Step      int
	Accuracy  float64
	Path      string
	CreatedAt time.Time
}

// Store manages run history backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the run database under the log directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure log directory: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.LogDir, "runs.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin schema tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return tx.Commit()
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to reset)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

// StartRun inserts a new running row and returns its generated id.
func (s *Store) StartRun(ctx context.Context, cfg *config.Config) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, started_at, seed, total_steps, batch_size, base_lr, data_dir)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, StatusRunning, now,
		cfg.Training.Seed, cfg.Training.TotalSteps, cfg.Training.BatchSize,
		cfg.Training.BaseLR, cfg.Paths.DataDir,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// RecordValidation appends one held-out pass and, when it improved, updates
// the run's best columns.
func (s *Store) RecordValidation(ctx context.Context, runID string, step int, loss, accuracy float64, improved bool) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO validations (run_id, step, loss, accuracy, improved, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		runID, step, loss, accuracy, boolToInt(improved), now,
	)
	if err != nil {
		return fmt.Errorf("insert validation: %w", err)
	}
	if improved {
		if _, err := s.db.ExecContext(ctx,
			"UPDATE runs SET best_step = ?, best_accuracy = ? WHERE id = ?",
			step, accuracy, runID,
		); err != nil {
			return fmt.Errorf("update run best: %w", err)
		}
	}
	return nil
}

// RecordCheckpoint appends one persisted snapshot.
func (s *Store) RecordCheckpoint(ctx context.Context, runID string, step int, accuracy float64, path string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (run_id, step, accuracy, path, created_at)
         VALUES (?, ?, ?, ?, ?)`,
		runID, step, accuracy, path, now,
	)
	if err != nil {
		return fmt.Errorf("insert checkpoint: %w", err)
	}
	return nil
}

// FinishRun stamps the terminal status and finish time.
func (s *Store) FinishRun(ctx context.Context, runID, status string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		"UPDATE runs SET status = ?, finished_at = ? WHERE id = ?",
		status, now, runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("finish run: unknown run %s", runID)
	}
	return nil
}

// GetRun loads one run by id.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, started_at, finished_at, seed, total_steps, batch_size,
                base_lr, data_dir, best_step, best_accuracy
         FROM runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("unknown run %s", runID)
		}
		return nil, err
	}
	return run, nil
}

// ListRuns returns runs newest first, capped at limit when positive.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	query := `SELECT id, status, started_at, finished_at, seed, total_steps, batch_size,
                     base_lr, data_dir, best_step, best_accuracy
              FROM runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Validations returns a run's held-out passes in step order.
func (s *Store) Validations(ctx context.Context, runID string) ([]Validation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT step, loss, accuracy, improved, created_at
         FROM validations WHERE run_id = ? ORDER BY step`, runID)
	if err != nil {
		return nil, fmt.Errorf("list validations: %w", err)
	}
	defer rows.Close()

	var out []Validation
	for rows.Next() {
		var v Validation
		var improved int
		var createdAt string
		if err := rows.Scan(&v.Step, &v.Loss, &v.Accuracy, &improved, &createdAt); err != nil {
			return nil, fmt.Errorf("scan validation: %w", err)
		}
		v.Improved = improved != 0
		if v.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("parse validation created_at: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Checkpoints returns a run's persisted snapshots in step order.
func (s *Store) Checkpoints(ctx context.Context, runID string) ([]Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT step, accuracy, path, created_at
         FROM checkpoints WHERE run_id = ? ORDER BY step`, runID)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var out []Checkpoint
	for rows.Next() {
		var c Checkpoint
		var createdAt string
		if err := rows.Scan(&c.Step, &c.Accuracy, &c.Path, &createdAt); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		if c.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("parse checkpoint created_at: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var startedAt string
	var finishedAt sql.NullString
	if err := row.Scan(&run.ID, &run.Status, &startedAt, &finishedAt,
		&run.Seed, &run.TotalSteps, &run.BatchSize, &run.BaseLR,
		&run.DataDir, &run.BestStep, &run.BestAccuracy); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	var parseErr error
	if run.StartedAt, parseErr = time.Parse(time.RFC3339Nano, startedAt); parseErr != nil {
		return nil, fmt.Errorf("parse run started_at: %w", parseErr)
	}
	if finishedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, finishedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse run finished_at: %w", err)
		}
		run.FinishedAt = &t
	}
	return &run, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
