package claim

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/eastgate/supplysync/internal/kv"
)

func newTestService(store kv.Store) *Service {
	return NewService(store, "testns", "worker-test", nil, nil)
}

func TestAcquire_MutualExclusion(t *testing.T) {
	s := newTestService(kv.NewMemoryStore())
	ctx := context.Background()

	const racers = 2
	tokens := make([]string, racers)
	oks := make([]bool, racers)

	var start sync.WaitGroup
	start.Add(1)
	var done sync.WaitGroup

	for i := 0; i < racers; i++ {
		done.Add(1)
		go func(i int) {
			defer done.Done()
			start.Wait()
			tok, ok, err := s.Acquire(ctx, "CJ123", time.Minute)
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			tokens[i], oks[i] = tok, ok
		}(i)
	}
	start.Done()
	done.Wait()

	wins := 0
	loser := -1
	for i, ok := range oks {
		if ok {
			wins++
		} else {
			loser = i
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}

	// The loser never got a token; its release must be a no-op.
	released, err := s.Release(ctx, "CJ123", tokens[loser])
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if released {
		t.Fatalf("loser must not be able to release the live claim")
	}

	if _, ok, _ := s.Acquire(ctx, "CJ123", time.Minute); ok {
		t.Fatalf("claim should still be held after the loser's release attempt")
	}
}

func TestRelease_TokenGated(t *testing.T) {
	store := kv.NewMemoryStore()
	s := newTestService(store)
	ctx := context.Background()

	tokenA, ok, err := s.Acquire(ctx, "CJ55", time.Minute)
	if err != nil || !ok {
		t.Fatalf("acquire A: ok=%v err=%v", ok, err)
	}

	// Simulate the lease expiring and another worker re-acquiring.
	if _, err := s.ForceRelease(ctx, "CJ55"); err != nil {
		t.Fatalf("force release: %v", err)
	}
	tokenB, ok, err := s.Acquire(ctx, "CJ55", time.Minute)
	if err != nil || !ok {
		t.Fatalf("acquire B: ok=%v err=%v", ok, err)
	}

	// Stale worker shows up with its old token.
	released, err := s.Release(ctx, "CJ55", tokenA)
	if err != nil {
		t.Fatalf("stale release: %v", err)
	}
	if released {
		t.Fatalf("stale token must not delete the live claim")
	}

	released, err = s.Release(ctx, "CJ55", tokenB)
	if err != nil || !released {
		t.Fatalf("live token should release: ok=%v err=%v", released, err)
	}
}

func TestAcquire_TTLSelfHeal(t *testing.T) {
	store := kv.NewMemoryStore()
	now := time.Now()
	store.Now = func() time.Time { return now }

	s := newTestService(store)
	ctx := context.Background()

	if _, ok, _ := s.Acquire(ctx, "CJ9", 30*time.Second); !ok {
		t.Fatalf("first acquire should win")
	}
	if _, ok, _ := s.Acquire(ctx, "CJ9", 30*time.Second); ok {
		t.Fatalf("second acquire should lose while lease is live")
	}

	now = now.Add(31 * time.Second)

	tok, ok, err := s.Acquire(ctx, "CJ9", 30*time.Second)
	if err != nil || !ok {
		t.Fatalf("acquire after expiry: ok=%v err=%v", ok, err)
	}
	if tok == "" {
		t.Fatalf("expected fresh token")
	}
}

func TestAcquire_FailsClosedOnStoreError(t *testing.T) {
	s := newTestService(failingStore{})
	ctx := context.Background()

	tok, ok, err := s.Acquire(ctx, "CJ1", time.Minute)
	if err == nil {
		t.Fatalf("expected store error to surface")
	}
	if ok || tok != "" {
		t.Fatalf("acquire must fail closed on store error")
	}
}

func TestInspect_SkipsOwnerIndexKeys(t *testing.T) {
	store := kv.NewMemoryStore()
	s := newTestService(store)
	ctx := context.Background()

	for _, pid := range []string{"CJ1", "CJ2", "CJ3"} {
		if _, ok, _ := s.Acquire(ctx, pid, time.Minute); !ok {
			t.Fatalf("acquire %s failed", pid)
		}
	}
	// Auxiliary bookkeeping keys in the same namespace.
	_, _ = store.SetIfAbsent(ctx, "testns:owner:worker-test", "CJ1,CJ2", 0)

	infos, err := s.Inspect(ctx, "")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("expected 3 claims, got %d", len(infos))
	}
	for _, in := range infos {
		if in.Owner != "worker-test" {
			t.Fatalf("unexpected owner %q", in.Owner)
		}
		if in.Token == "" {
			t.Fatalf("expected token in inspect output")
		}
		if in.TTLRemaining <= 0 {
			t.Fatalf("expected positive ttl, got %v", in.TTLRemaining)
		}
	}
}

func TestInspect_ReportsNoExpiry(t *testing.T) {
	store := kv.NewMemoryStore()
	s := newTestService(store)
	ctx := context.Background()

	// A claim written without TTL (the defect Reclaim cleans up).
	_, _ = store.SetIfAbsent(ctx, "testns:processing:CJ77", "tok|w", 0)

	infos, err := s.Inspect(ctx, "")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("expected 1 claim, got %d", len(infos))
	}
	if infos[0].TTLRemaining != kv.NoExpiry {
		t.Fatalf("expected NoExpiry, got %v", infos[0].TTLRemaining)
	}
}

// failingStore errors on every call, for fail-closed tests.
type failingStore struct{}

func (failingStore) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return false, context.DeadlineExceeded
}
func (failingStore) Get(ctx context.Context, key string) (string, bool, error) {
	return "", false, context.DeadlineExceeded
}
func (failingStore) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	return 0, false, context.DeadlineExceeded
}
func (failingStore) DeleteIfTokenMatches(ctx context.Context, key, token string) (bool, error) {
	return false, context.DeadlineExceeded
}
func (failingStore) Delete(ctx context.Context, key string) (bool, error) {
	return false, context.DeadlineExceeded
}
func (failingStore) Scan(ctx context.Context, pattern string, fn func(string) error) error {
	return context.DeadlineExceeded
}
func (failingStore) IncrBy(ctx context.Context, key string, n int64, ttl time.Duration) (int64, error) {
	return 0, context.DeadlineExceeded
}
