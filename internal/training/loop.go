package training

import (
	"context"
	"log/slog"
	"math/rand"

	"voxid/internal/config"
	"voxid/internal/dataset"
	"voxid/internal/encoder"
	"voxid/internal/logging"
	"voxid/internal/services"
)

// Phase names the loop's control state.
type Phase string

const (
	PhaseRunning       Phase = "running"
	PhaseValidating    Phase = "validating"
	PhaseCheckpointing Phase = "checkpointing"
	PhaseDone          Phase = "done"
)

// Saver persists the best checkpoint to the rolling and archive locations.
type Saver interface {
	Save(state *encoder.State, step int, accuracy float64) error
}

// Hooks observe loop milestones. All fields are optional. Hook failures are
// bookkeeping problems and never block progress.
type Hooks struct {
	AfterStep     func(step int, loss, accuracy, lr float64)
	AfterValidate func(step int, result ValidationResult, improved bool)
	AfterSave     func(step int, accuracy float64)
}

// Loop drives optimization: it draws batches from the infinite training
// stream, updates parameters on a warmup/half-cosine schedule, validates
// every ValidSteps steps, and persists the best snapshot every SaveSteps
// steps.
type Loop struct {
	cfg    *config.Config
	store  *dataset.Store
	cursor *dataset.Cursor
	valid  []dataset.Record
	net    encoder.Trainable
	saver  Saver
	hooks  Hooks
	logger *slog.Logger

	schedule Schedule
	best     BestCheckpoint
	phase    Phase
	validRNG *rand.Rand
}

// NewLoop assembles a training loop. The cursor must stream the training
// split; records holds the held-out validation split.
func NewLoop(cfg *config.Config, store *dataset.Store, cursor *dataset.Cursor, valid []dataset.Record, net encoder.Trainable, saver Saver, hooks Hooks, logger *slog.Logger) (*Loop, error) {
	if cfg == nil || store == nil || cursor == nil || net == nil {
		return nil, services.Wrap(services.ErrConfiguration, "training", "new loop", "missing dependency", nil)
	}
	if len(valid) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "training", "new loop", "empty validation split", nil)
	}
	return &Loop{
		cfg:    cfg,
		store:  store,
		cursor: cursor,
		valid:  valid,
		net:    net,
		saver:  saver,
		hooks:  hooks,
		logger: logging.WithComponent(logger, "training"),
		schedule: Schedule{
			Base:        cfg.Training.BaseLR,
			WarmupSteps: cfg.Training.WarmupSteps,
			TotalSteps:  cfg.Training.TotalSteps,
		},
		phase:    PhaseRunning,
		validRNG: rand.New(rand.NewSource(cfg.Training.Seed + 104729)),
	}, nil
}

// Phase returns the loop's current control state.
func (l *Loop) Phase() Phase { return l.phase }

// Best returns the in-memory best checkpoint.
func (l *Loop) Best() *BestCheckpoint { return &l.best }

// Run executes the configured number of steps. Any encoder failure is fatal
// and propagated; on context cancellation only previously persisted
// checkpoints survive.
func (l *Loop) Run(ctx context.Context) (*BestCheckpoint, error) {
	l.net.SetTraining(true)
	total := l.cfg.Training.TotalSteps

	for step := 0; step < total; step++ {
		loss, accuracy, err := l.runStep(ctx, step)
		if err != nil {
			return &l.best, err
		}

		// Triggers are 1-indexed: they fire on the step after reaching the
		// configured multiple.
		if (step+1)%l.cfg.Training.ValidSteps == 0 {
			if err := l.runValidation(ctx, step+1); err != nil {
				return &l.best, err
			}
		}
		if (step+1)%l.cfg.Training.SaveSteps == 0 && l.best.Exists() {
			if err := l.runCheckpoint(step + 1); err != nil {
				return &l.best, err
			}
		}

		if l.hooks.AfterStep != nil {
			l.hooks.AfterStep(step+1, loss, accuracy, l.schedule.Rate(step))
		}
	}

	l.phase = PhaseDone
	l.logger.Info("training complete",
		logging.Int("total_steps", total),
		logging.Float64("best_accuracy", l.best.Accuracy),
		logging.Int("best_step", l.best.Step),
	)
	return &l.best, nil
}

func (l *Loop) runStep(ctx context.Context, step int) (loss, accuracy float64, err error) {
	batch, err := l.cursor.Next(ctx)
	if err != nil {
		return 0, 0, err
	}

	logits, err := l.net.Forward(batch)
	if err != nil {
		return 0, 0, err
	}
	loss, accuracy, dLogits, err := encoder.CrossEntropy(logits, batch.Labels)
	if err != nil {
		return 0, 0, err
	}
	if err := l.net.Backward(dLogits); err != nil {
		return 0, 0, err
	}

	l.net.Step(l.schedule.Rate(step))
	l.net.ZeroGrad()
	return loss, accuracy, nil
}

func (l *Loop) runValidation(ctx context.Context, step int) error {
	l.phase = PhaseValidating
	defer func() { l.phase = PhaseRunning }()

	result, err := Validate(ctx, l.store, l.valid, l.net,
		l.cfg.Training.BatchSize, l.cfg.Training.SegmentLen, l.validRNG)
	if err != nil {
		return err
	}

	improved := l.best.Update(l.net.State(), result.Accuracy, step)
	l.logger.Info("validation pass",
		logging.Int(logging.FieldStep, step),
		logging.String(logging.FieldSplit, "valid"),
		logging.Float64("loss", result.Loss),
		logging.Float64("accuracy", result.Accuracy),
		logging.Bool("improved", improved),
	)
	if l.hooks.AfterValidate != nil {
		l.hooks.AfterValidate(step, result, improved)
	}
	return nil
}

func (l *Loop) runCheckpoint(step int) error {
	l.phase = PhaseCheckpointing
	defer func() { l.phase = PhaseRunning }()

	if l.saver == nil {
		return nil
	}
	if err := l.saver.Save(l.best.State, l.best.Step, l.best.Accuracy); err != nil {
		return err
	}
	l.logger.Info("checkpoint saved",
		logging.Int(logging.FieldStep, step),
		logging.Int("best_step", l.best.Step),
		logging.Float64("best_accuracy", l.best.Accuracy),
	)
	if l.hooks.AfterSave != nil {
		l.hooks.AfterSave(l.best.Step, l.best.Accuracy)
	}
	return nil
}
