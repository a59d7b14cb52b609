package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type MemoryQueue struct {
	mu   sync.Mutex
	jobs []Job

	// Now is injected for delay tests; nil means time.Now.
	Now func() time.Time
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

func (q *MemoryQueue) now() time.Time {
	if q.Now != nil {
		return q.Now()
	}
	return time.Now()
}

func (q *MemoryQueue) Enqueue(ctx context.Context, job Job, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.RunAt = q.now()
	if delay > 0 {
		job.RunAt = job.RunAt.Add(delay)
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *MemoryQueue) Dequeue(ctx context.Context, max int) ([]Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()

	sort.SliceStable(q.jobs, func(i, j int) bool {
		return q.jobs[i].RunAt.Before(q.jobs[j].RunAt)
	})

	var due []Job
	rest := q.jobs[:0]
	for _, j := range q.jobs {
		if (max <= 0 || len(due) < max) && !j.RunAt.After(now) {
			due = append(due, j)
			continue
		}
		rest = append(rest, j)
	}
	q.jobs = rest
	return due, nil
}

// Len reports queued jobs including not-yet-due ones. Test helper.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}
