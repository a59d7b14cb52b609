package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eastgate/supplysync/internal/queue"
)

func newRunner(q queue.Queue, handlers map[queue.Kind]Handler) *Runner {
	return &Runner{
		Queue:       q,
		Handlers:    handlers,
		PollEvery:   time.Millisecond,
		MaxPerPoll:  10,
		MaxAttempts: 3,
		RetryDelay:  0,
	}
}

func TestTick_DispatchesByKind(t *testing.T) {
	q := queue.NewMemoryQueue()
	ctx := context.Background()

	var chunks, syncs int
	r := newRunner(q, map[queue.Kind]Handler{
		queue.KindChunkImport: func(ctx context.Context, job queue.Job) error { chunks++; return nil },
		queue.KindVariantSync: func(ctx context.Context, job queue.Job) error { syncs++; return nil },
	})

	_ = q.Enqueue(ctx, queue.Job{Kind: queue.KindChunkImport}, 0)
	_ = q.Enqueue(ctx, queue.Job{Kind: queue.KindVariantSync}, 0)
	_ = q.Enqueue(ctx, queue.Job{Kind: queue.KindVariantSync}, 0)

	if err := r.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if chunks != 1 || syncs != 2 {
		t.Fatalf("dispatch counts: chunks=%d syncs=%d", chunks, syncs)
	}
	if q.Len() != 0 {
		t.Fatalf("queue should be drained, %d left", q.Len())
	}
}

func TestTick_RetriesUntilMaxAttemptsThenDrops(t *testing.T) {
	q := queue.NewMemoryQueue()
	ctx := context.Background()

	runs := 0
	r := newRunner(q, map[queue.Kind]Handler{
		queue.KindVariantSync: func(ctx context.Context, job queue.Job) error {
			runs++
			return errors.New("still broken")
		},
	})

	_ = q.Enqueue(ctx, queue.Job{Kind: queue.KindVariantSync}, 0)

	// Each tick runs the job once and re-enqueues until the attempt cap.
	for i := 0; i < 5; i++ {
		if err := r.Tick(ctx); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}
	if runs != r.MaxAttempts {
		t.Fatalf("expected %d attempts, got %d", r.MaxAttempts, runs)
	}
	if q.Len() != 0 {
		t.Fatalf("dead-lettered job still queued")
	}
}

func TestTick_RetrySucceedsSecondTime(t *testing.T) {
	q := queue.NewMemoryQueue()
	ctx := context.Background()

	runs := 0
	r := newRunner(q, map[queue.Kind]Handler{
		queue.KindChunkImport: func(ctx context.Context, job queue.Job) error {
			runs++
			if runs == 1 {
				return errors.New("transient")
			}
			if job.Attempt != 1 {
				t.Fatalf("retry should carry attempt 1, got %d", job.Attempt)
			}
			return nil
		},
	})

	_ = q.Enqueue(ctx, queue.Job{Kind: queue.KindChunkImport}, 0)
	_ = r.Tick(ctx)
	_ = r.Tick(ctx)

	if runs != 2 {
		t.Fatalf("expected 2 runs, got %d", runs)
	}
	if q.Len() != 0 {
		t.Fatalf("job left queued after success")
	}
}

func TestTick_DropsUnhandledKinds(t *testing.T) {
	q := queue.NewMemoryQueue()
	ctx := context.Background()

	r := newRunner(q, map[queue.Kind]Handler{})
	_ = q.Enqueue(ctx, queue.Job{Kind: queue.Kind("mystery")}, 0)

	if err := r.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if q.Len() != 0 {
		t.Fatalf("unhandled job must be dropped, not retried")
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	q := queue.NewMemoryQueue()
	r := newRunner(q, map[queue.Kind]Handler{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("runner did not stop on cancel")
	}
}
