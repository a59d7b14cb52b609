package worker

import (
	"context"
	"time"

	"github.com/eastgate/supplysync/internal/obs"
	"github.com/eastgate/supplysync/internal/queue"
)

// Handler processes one job. A returned error means the job is retried with a
// bumped attempt counter until MaxAttempts, then dead-lettered. Handlers that
// manage their own retry (the chunk processor requeues its own batches) return
// nil after scheduling it.
type Handler func(ctx context.Context, job queue.Job) error

// Runner polls the queue on a fixed interval and fans due jobs out to the
// registered handlers, one at a time. Single-threaded on purpose: parallelism
// comes from running more worker processes, each with its own claims.
type Runner struct {
	Queue    queue.Queue
	Handlers map[queue.Kind]Handler
	Logger   *obs.Logger
	Metrics  *obs.Metrics

	PollEvery   time.Duration
	MaxPerPoll  int
	MaxAttempts int
	RetryDelay  time.Duration
}

// Run polls until ctx is canceled. It always drains one tick before
// returning so a shutdown does not strand already-dequeued jobs.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.PollEvery)
	defer ticker.Stop()

	r.Logger.Info(map[string]interface{}{
		"op": "runner_start", "poll_s": int(r.PollEvery.Seconds()), "max_per_poll": r.MaxPerPoll,
	})

	for {
		select {
		case <-ctx.Done():
			r.Logger.Info(map[string]interface{}{"op": "runner_stop"})
			return ctx.Err()
		case <-ticker.C:
			if err := r.Tick(ctx); err != nil {
				r.Logger.Error(map[string]interface{}{
					"op": "runner_tick", "error": err.Error(),
				})
			}
		}
	}
}

// Tick dequeues one batch of due jobs and runs them. Split out from Run so
// tests and one-shot commands can drive the runner without a ticker.
func (r *Runner) Tick(ctx context.Context) error {
	jobs, err := r.Queue.Dequeue(ctx, r.MaxPerPoll)
	if err != nil {
		return err
	}

	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.dispatch(ctx, job)
	}
	return nil
}

func (r *Runner) dispatch(ctx context.Context, job queue.Job) {
	handler, ok := r.Handlers[job.Kind]
	if !ok {
		// Unknown kinds are dropped, not retried: redelivery cannot fix them.
		r.Logger.Error(map[string]interface{}{
			"op": "job_unhandled", "job_id": job.ID, "kind": string(job.Kind),
		})
		return
	}

	start := time.Now()
	err := handler(ctx, job)
	r.Metrics.ObserveMS("job_"+string(job.Kind), float64(time.Since(start).Milliseconds()))

	if err == nil {
		return
	}

	attempt := job.Attempt + 1
	if attempt >= r.MaxAttempts {
		r.Logger.Error(map[string]interface{}{
			"op": "job_dead_letter", "job_id": job.ID, "kind": string(job.Kind),
			"attempts": attempt, "error": err.Error(),
		})
		return
	}

	job.Attempt = attempt
	if qErr := r.Queue.Enqueue(ctx, job, r.RetryDelay); qErr != nil {
		r.Logger.Error(map[string]interface{}{
			"op": "job_retry_enqueue", "job_id": job.ID, "kind": string(job.Kind),
			"error": qErr.Error(),
		})
		return
	}
	r.Logger.Warn(map[string]interface{}{
		"op": "job_retry", "job_id": job.ID, "kind": string(job.Kind),
		"attempt": attempt, "error": err.Error(),
	})
}
