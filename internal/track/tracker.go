package track

import (
	"context"
	"strconv"
	"time"

	"github.com/eastgate/supplysync/internal/kv"
)

// Counts is the aggregate outcome of one fan-out of per-item import jobs.
type Counts struct {
	Success int64
	Failure int64
}

// Tracker accumulates per-batch success/failure counters keyed by a
// caller-supplied tracking key. Counters appear on first mark and expire with
// TTL; consumers read and discard.
type Tracker struct {
	Store     kv.Store
	Namespace string
	TTL       time.Duration
}

func New(store kv.Store, namespace string, ttl time.Duration) Tracker {
	return Tracker{Store: store, Namespace: namespace, TTL: ttl}
}

func (t Tracker) successKey(key string) string {
	return t.Namespace + ":track:" + key + ":success"
}

func (t Tracker) failureKey(key string) string {
	return t.Namespace + ":track:" + key + ":failure"
}

func (t Tracker) MarkSuccess(ctx context.Context, key string, n int) error {
	if n <= 0 {
		return nil
	}
	_, err := t.Store.IncrBy(ctx, t.successKey(key), int64(n), t.TTL)
	return err
}

func (t Tracker) MarkFailure(ctx context.Context, key string, n int) error {
	if n <= 0 {
		return nil
	}
	_, err := t.Store.IncrBy(ctx, t.failureKey(key), int64(n), t.TTL)
	return err
}

func (t Tracker) Read(ctx context.Context, key string) (Counts, error) {
	var c Counts

	v, found, err := t.Store.Get(ctx, t.successKey(key))
	if err != nil {
		return Counts{}, err
	}
	if found {
		c.Success, _ = strconv.ParseInt(v, 10, 64)
	}

	v, found, err = t.Store.Get(ctx, t.failureKey(key))
	if err != nil {
		return Counts{}, err
	}
	if found {
		c.Failure, _ = strconv.ParseInt(v, 10, 64)
	}
	return c, nil
}
