package track

import (
	"context"
	"testing"
	"time"

	"github.com/eastgate/supplysync/internal/kv"
)

func TestTracker_CountsAccumulate(t *testing.T) {
	tr := New(kv.NewMemoryStore(), "testns", time.Hour)
	ctx := context.Background()

	if err := tr.MarkSuccess(ctx, "scan-1", 3); err != nil {
		t.Fatalf("mark success: %v", err)
	}
	if err := tr.MarkSuccess(ctx, "scan-1", 2); err != nil {
		t.Fatalf("mark success: %v", err)
	}
	if err := tr.MarkFailure(ctx, "scan-1", 1); err != nil {
		t.Fatalf("mark failure: %v", err)
	}

	c, err := tr.Read(ctx, "scan-1")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if c.Success != 5 || c.Failure != 1 {
		t.Fatalf("unexpected counts: %+v", c)
	}
}

func TestTracker_UnknownKeyReadsZero(t *testing.T) {
	tr := New(kv.NewMemoryStore(), "testns", time.Hour)

	c, err := tr.Read(context.Background(), "never-marked")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if c.Success != 0 || c.Failure != 0 {
		t.Fatalf("expected zero counts, got %+v", c)
	}
}

func TestTracker_ZeroMarksAreNoOps(t *testing.T) {
	store := kv.NewMemoryStore()
	tr := New(store, "testns", time.Hour)
	ctx := context.Background()

	_ = tr.MarkSuccess(ctx, "scan-2", 0)
	_ = tr.MarkFailure(ctx, "scan-2", -1)

	c, _ := tr.Read(ctx, "scan-2")
	if c.Success != 0 || c.Failure != 0 {
		t.Fatalf("expected untouched counters, got %+v", c)
	}
}

func TestTracker_KeysAreScopedPerTrackingKey(t *testing.T) {
	tr := New(kv.NewMemoryStore(), "testns", time.Hour)
	ctx := context.Background()

	_ = tr.MarkSuccess(ctx, "scan-a", 1)
	_ = tr.MarkSuccess(ctx, "scan-b", 7)

	a, _ := tr.Read(ctx, "scan-a")
	b, _ := tr.Read(ctx, "scan-b")
	if a.Success != 1 || b.Success != 7 {
		t.Fatalf("counters bled across keys: a=%+v b=%+v", a, b)
	}
}
