package queue

import (
	"context"
	"encoding/json"
	"time"
)

type Kind string

const (
	KindChunkImport Kind = "chunk_import"
	KindVariantSync Kind = "variant_sync"
	KindEnrich      Kind = "enrich"
)

// Job is one unit of work. Attempt counts deliveries of this job; RunAt is
// the earliest moment the job may be handed to a worker.
type Job struct {
	ID      string          `json:"id"`
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload"`
	Attempt int             `json:"attempt"`
	RunAt   time.Time       `json:"run_at"`
}

// Queue is the shared job queue. The real deployment uses external queue
// infrastructure (at-least-once delivery, per-job timeout, dead-lettering);
// this interface is the contract the pipeline codes against, and the memory
// implementation serves tests and single-node runs.
type Queue interface {
	// Enqueue adds job, delayed by delay when > 0.
	Enqueue(ctx context.Context, job Job, delay time.Duration) error

	// Dequeue removes and returns up to max due jobs.
	Dequeue(ctx context.Context, max int) ([]Job, error)
}
