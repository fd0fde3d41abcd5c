package dataset

import (
	"context"
	"math/rand"
	"sync"

	"gonum.org/v1/gonum/mat"

	"voxid/internal/services"
)

// CursorOptions configures the training batch stream.
type CursorOptions struct {
	BatchSize  int
	SegmentLen int
	Workers    int
	Seed       int64
}

// Cursor is an infinite, auto-restarting batch stream over a finite split.
// When the underlying records are exhausted they are reshuffled and the
// stream restarts; exhaustion is never surfaced to the caller. Feature
// loading and segment sampling run on parallel workers, which is safe
// because feature files are read-only and segments are pure functions of
// them.
type Cursor struct {
	out       chan cursorResult
	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

type cursorResult struct {
	batch *Batch
	err   error
}

// NewCursor starts the loader workers and returns the stream. Close must be
// called to release them.
func NewCursor(store *Store, records []Record, opts CursorOptions) (*Cursor, error) {
	if len(records) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "dataset", "cursor", "empty training split", nil)
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 || batchSize > len(records) {
		batchSize = len(records)
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}

	c := &Cursor{
		out:  make(chan cursorResult, workers),
		stop: make(chan struct{}),
	}

	jobs := make(chan []Record, workers)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(jobs)
		rng := rand.New(rand.NewSource(opts.Seed))
		order := make([]int, len(records))
		for i := range order {
			order[i] = i
		}
		for {
			rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
			// Trailing remainder is dropped; those records return after the
			// next reshuffle.
			for at := 0; at+batchSize <= len(order); at += batchSize {
				group := make([]Record, batchSize)
				for i := 0; i < batchSize; i++ {
					group[i] = records[order[at+i]]
				}
				select {
				case jobs <- group:
				case <-c.stop:
					return
				}
			}
		}
	}()

	for w := 0; w < workers; w++ {
		c.wg.Add(1)
		go func(seed int64) {
			defer c.wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for group := range jobs {
				batch, err := loadGroup(store, group, opts.SegmentLen, rng)
				select {
				case c.out <- cursorResult{batch: batch, err: err}:
				case <-c.stop:
					return
				}
				if err != nil {
					return
				}
			}
		}(opts.Seed + int64(w) + 1)
	}

	return c, nil
}

// Next blocks until the next batch is ready. It only fails on feature-load
// errors or context cancellation, never on exhaustion.
func (c *Cursor) Next(ctx context.Context) (*Batch, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-c.out:
		return res.batch, res.err
	}
}

// Close stops the loader workers and waits for them to exit.
func (c *Cursor) Close() {
	c.closeOnce.Do(func() {
		close(c.stop)
		go func() {
			// Drain so workers blocked on send can observe stop.
			for range c.out {
			}
		}()
		c.wg.Wait()
		close(c.out)
	})
}

func loadGroup(store *Store, group []Record, segmentLen int, rng *rand.Rand) (*Batch, error) {
	segments := make([]*mat.Dense, len(group))
	labels := make([]int, len(group))
	for i, rec := range group {
		feat, err := store.LoadFeature(rec.FeaturePath)
		if err != nil {
			return nil, err
		}
		segments[i] = SampleSegment(feat, segmentLen, rng)
		labels[i] = rec.Speaker
	}
	return Assemble(segments, labels)
}

// Batches iterates the records once, in order, invoking fn for every batch
// including a final partial one. Used by validation, which must visit the
// held-out split exactly once without shuffling.
func Batches(store *Store, records []Record, batchSize, segmentLen int, rng *rand.Rand, fn func(*Batch) error) error {
	if len(records) == 0 {
		return services.Wrap(services.ErrConfiguration, "dataset", "batches", "empty split", nil)
	}
	if batchSize <= 0 {
		batchSize = len(records)
	}
	for at := 0; at < len(records); at += batchSize {
		end := at + batchSize
		if end > len(records) {
			end = len(records)
		}
		batch, err := loadGroup(store, records[at:end], segmentLen, rng)
		if err != nil {
			return err
		}
		if err := fn(batch); err != nil {
			return err
		}
	}
	return nil
}
