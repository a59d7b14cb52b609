package claim

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/eastgate/supplysync/internal/kv"
	"github.com/eastgate/supplysync/internal/obs"
)

// Info is a read-only view of one live claim, as returned by Inspect.
type Info struct {
	PID          string
	Token        string
	Owner        string
	TTLRemaining time.Duration // kv.NoExpiry when the key carries no expiry
}

// Service grants at-most-one-worker ownership of a PID while it is being
// imported or refreshed. Claims are keyed "<ns>:processing:<pid>" and store
// "token|owner"; the token issued by Acquire is the only credential Release
// accepts. Each Acquire issues a fresh authoritative token — a token from
// before any release or reclaim is never valid again.
type Service struct {
	Store     kv.Store
	Namespace string
	Owner     string // informational: hostname+pid or job id of this worker
	Logger    *obs.Logger
	Metrics   *obs.Metrics
}

func NewService(store kv.Store, namespace, owner string, logger *obs.Logger, metrics *obs.Metrics) *Service {
	return &Service{
		Store:     store,
		Namespace: namespace,
		Owner:     owner,
		Logger:    logger,
		Metrics:   metrics,
	}
}

func (s *Service) Key(pid string) string {
	return s.Namespace + ":processing:" + pid
}

// ProcessingPattern is the scan pattern covering all live claims.
func (s *Service) ProcessingPattern() string {
	return s.Namespace + ":processing:*"
}

// ownerIndexMarker identifies auxiliary bookkeeping keys that share the
// namespace but are not claims.
func (s *Service) ownerIndexMarker() string {
	return s.Namespace + ":owner:"
}

// Acquire takes the claim for pid if no unexpired claim exists. ok=false is
// contention, not an error: the caller skips the PID this round. Store errors
// fail closed — the caller must never assume exclusivity it cannot prove.
func (s *Service) Acquire(ctx context.Context, pid string, ttl time.Duration) (token string, ok bool, err error) {
	start := time.Now()
	token = uuid.NewString()

	ok, err = s.Store.SetIfAbsent(ctx, s.Key(pid), token+"|"+s.Owner, ttl)
	s.Metrics.ObserveMS("acquire", float64(time.Since(start).Milliseconds()))

	if err != nil {
		s.Metrics.IncAcquire("error")
		s.Logger.Error(map[string]interface{}{
			"op": "claim_acquire", "pid": pid, "error": err.Error(),
		})
		return "", false, err
	}
	if !ok {
		s.Metrics.IncAcquire("contended")
		return "", false, nil
	}

	s.Metrics.IncAcquire("acquired")
	s.Logger.Info(map[string]interface{}{
		"op": "claim_acquire", "pid": pid, "owner": s.Owner, "ttl_s": int(ttl.Seconds()),
	})
	return token, true, nil
}

// Release deletes the claim only when token matches the stored one. A false
// return means the claim was already gone or owned by a newer token; both are
// safe no-ops for the caller.
func (s *Service) Release(ctx context.Context, pid, token string) (bool, error) {
	start := time.Now()

	ok, err := s.Store.DeleteIfTokenMatches(ctx, s.Key(pid), token)
	s.Metrics.ObserveMS("release", float64(time.Since(start).Milliseconds()))

	if err != nil {
		s.Metrics.IncRelease("error")
		s.Logger.Error(map[string]interface{}{
			"op": "claim_release", "pid": pid, "error": err.Error(),
		})
		return false, err
	}
	if !ok {
		s.Metrics.IncRelease("stale")
		return false, nil
	}

	s.Metrics.IncRelease("released")
	return true, nil
}

// ForceRelease deletes the claim regardless of token. Operator tooling only;
// pipeline workers must never call this.
func (s *Service) ForceRelease(ctx context.Context, pid string) (bool, error) {
	ok, err := s.Store.Delete(ctx, s.Key(pid))
	if err != nil {
		return false, err
	}
	if ok {
		s.Logger.Warn(map[string]interface{}{
			"op": "claim_force_release", "pid": pid,
		})
	}
	return ok, nil
}

// Inspect enumerates live claims matching pattern (empty means all claims in
// the namespace) via an incremental scan. Owner-index keys sharing the
// namespace are excluded.
func (s *Service) Inspect(ctx context.Context, pattern string) ([]Info, error) {
	if pattern == "" {
		pattern = s.ProcessingPattern()
	}

	prefix := s.Namespace + ":processing:"
	ownerMarker := s.ownerIndexMarker()

	var out []Info
	err := s.Store.Scan(ctx, pattern, func(key string) error {
		if strings.HasPrefix(key, ownerMarker) {
			return nil
		}
		if !strings.HasPrefix(key, prefix) {
			return nil
		}

		val, found, err := s.Store.Get(ctx, key)
		if err != nil {
			return err
		}
		if !found {
			return nil // expired between scan and read
		}

		ttl, found, err := s.Store.TTL(ctx, key)
		if err != nil {
			return err
		}
		if !found {
			return nil
		}

		token, owner := splitValue(val)
		out = append(out, Info{
			PID:          strings.TrimPrefix(key, prefix),
			Token:        token,
			Owner:        owner,
			TTLRemaining: ttl,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func splitValue(v string) (token, owner string) {
	if i := strings.IndexByte(v, '|'); i >= 0 {
		return v[:i], v[i+1:]
	}
	return v, ""
}
