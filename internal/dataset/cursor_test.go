package dataset_test

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"voxid/internal/dataset"
	"voxid/internal/services"
)

func TestCursorStreamsBeyondOnePass(t *testing.T) {
	store := openTestStore(t)
	records, err := store.TrainingRecords()
	if err != nil {
		t.Fatalf("TrainingRecords: %v", err)
	}

	cursor, err := dataset.NewCursor(store, records, dataset.CursorOptions{
		BatchSize:  2,
		SegmentLen: 32,
		Workers:    2,
		Seed:       5,
	})
	if err != nil {
		t.Fatalf("NewCursor: %v", err)
	}
	defer cursor.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 5 records at batch size 2 yield 2 batches per pass; drawing 10 batches
	// forces several reshuffle-and-restart cycles without any exhaustion error.
	for i := 0; i < 10; i++ {
		batch, err := cursor.Next(ctx)
		if err != nil {
			t.Fatalf("Next %d: %v", i, err)
		}
		if batch.Size() != 2 {
			t.Fatalf("batch %d size = %d, want 2", i, batch.Size())
		}
		if batch.SeqLen > 32 {
			t.Fatalf("batch %d seqLen = %d, want <= segment length", i, batch.SeqLen)
		}
		for _, label := range batch.Labels {
			if label < 0 || label >= store.Mapping().Count() {
				t.Fatalf("label %d outside speaker range", label)
			}
		}
	}
}

func TestCursorPropagatesMissingFeature(t *testing.T) {
	store := openTestStore(t)
	records := []dataset.Record{{FeaturePath: "feat/absent.npy", Speaker: 0}}

	cursor, err := dataset.NewCursor(store, records, dataset.CursorOptions{BatchSize: 1, Workers: 1})
	if err != nil {
		t.Fatalf("NewCursor: %v", err)
	}
	defer cursor.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = cursor.Next(ctx)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from stream, got %v", err)
	}
}

func TestCursorNextHonorsContext(t *testing.T) {
	store := openTestStore(t)
	records, err := store.TrainingRecords()
	if err != nil {
		t.Fatal(err)
	}
	cursor, err := dataset.NewCursor(store, records, dataset.CursorOptions{BatchSize: 2, Workers: 1})
	if err != nil {
		t.Fatal(err)
	}
	defer cursor.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Drain whatever was prefetched before cancellation can win the select.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := cursor.Next(ctx); errors.Is(err, context.Canceled) {
			return
		}
	}
	t.Fatal("Next never observed cancellation")
}

func TestBatchesVisitEveryRecordOnceWithPartialTail(t *testing.T) {
	store := openTestStore(t)
	records, err := store.TrainingRecords()
	if err != nil {
		t.Fatal(err)
	}

	rng := rand.New(rand.NewSource(9))
	var sizes []int
	var total int
	err = dataset.Batches(store, records, 2, 32, rng, func(b *dataset.Batch) error {
		sizes = append(sizes, b.Size())
		total += b.Size()
		return nil
	})
	if err != nil {
		t.Fatalf("Batches: %v", err)
	}
	if total != len(records) {
		t.Fatalf("visited %d records, want %d", total, len(records))
	}
	if sizes[len(sizes)-1] != 1 {
		t.Fatalf("expected final partial batch of 1, got sizes %v", sizes)
	}
}

func TestSplitDisjointCoverage(t *testing.T) {
	records := make([]dataset.Record, 10)
	for i := range records {
		records[i] = dataset.Record{FeaturePath: string(rune('a' + i)), Speaker: i % 2}
	}
	train, valid := dataset.Split(records, 0.25, rand.New(rand.NewSource(1)))
	if len(train)+len(valid) != len(records) {
		t.Fatalf("split sizes %d+%d != %d", len(train), len(valid), len(records))
	}
	if len(valid) == 0 || len(train) == 0 {
		t.Fatal("both splits should be non-empty")
	}
	seen := map[string]int{}
	for _, r := range train {
		seen[r.FeaturePath]++
	}
	for _, r := range valid {
		seen[r.FeaturePath]++
	}
	for path, n := range seen {
		if n != 1 {
			t.Fatalf("record %q appears %d times across splits", path, n)
		}
	}
}
