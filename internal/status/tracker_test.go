package status

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestMemoryTracker_RecordAndLookup(t *testing.T) {
	tr := NewMemoryTracker(time.Minute)
	ctx := context.Background()

	if _, err := tr.Lookup(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	for _, s := range []State{StateReceived, StateRasterized, StateCompleted} {
		if err := tr.Record(ctx, "req-1", s, ""); err != nil {
			t.Fatalf("record %s: %v", s, err)
		}
	}

	entry, err := tr.Lookup(ctx, "req-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.State != StateCompleted {
		t.Errorf("expected completed, got %s", entry.State)
	}

	stats, _ := tr.Stats(ctx)
	if stats["completed"] != 1 || stats["failed"] != 0 {
		t.Errorf("unexpected stats: %v", stats)
	}
}

func TestMemoryTracker_Expiry(t *testing.T) {
	tr := NewMemoryTracker(time.Second)
	now := time.Now()
	tr.now = func() time.Time { return now }
	ctx := context.Background()

	tr.Record(ctx, "old", StateFailed, "boom")
	now = now.Add(2 * time.Second)

	if _, err := tr.Lookup(ctx, "old"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired entry, got %v", err)
	}

	tr.Record(ctx, "new", StateReceived, "")
	if _, ok := tr.entries["old"]; ok {
		t.Error("expected expired entry to be evicted on write")
	}
}

func TestState_Terminal(t *testing.T) {
	if !StateCompleted.Terminal() || !StateFailed.Terminal() {
		t.Error("expected completed and failed to be terminal")
	}
	if StateSummarized.Terminal() {
		t.Error("expected summarized to be non-terminal")
	}
}

// Requires a reachable Redis, e.g. REDIS_TEST_URL=redis://localhost:6379/15
func TestRedisTracker(t *testing.T) {
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set, skipping test")
	}
	ctx := context.Background()

	tr, err := NewRedisTracker(ctx, &RedisTrackerConfig{
		RedisURL:  url,
		Namespace: "medreport-test:" + uuid.NewString(),
		TTL:       time.Minute,
	})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer tr.Close()

	subCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	events, closeSub, err := tr.Subscribe(subCtx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer closeSub()

	if err := tr.Record(ctx, "req-1", StateFailed, "bad pdf"); err != nil {
		t.Fatalf("record: %v", err)
	}

	entry, err := tr.Lookup(ctx, "req-1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if entry.State != StateFailed || entry.Detail != "bad pdf" {
		t.Errorf("unexpected entry: %+v", entry)
	}

	if _, err := tr.Lookup(ctx, "req-2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	stats, err := tr.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats["failed"] != 1 {
		t.Errorf("expected one failure, got %v", stats)
	}

	select {
	case ev := <-events:
		if ev == "" {
			t.Error("expected event payload")
		}
	case <-subCtx.Done():
		t.Error("timed out waiting for status event")
	}
}
