package claimops

import (
	"context"
	"time"

	"github.com/eastgate/supplysync/internal/claim"
	"github.com/eastgate/supplysync/internal/kv"
	"github.com/eastgate/supplysync/internal/obs"
)

// Action is what Reclaim decided for one claim.
const (
	ActionKept         = "kept"
	ActionReleased     = "released"
	ActionWouldRelease = "would_release"
)

// Row is one claim as seen by a reclaim pass.
type Row struct {
	PID    string        `json:"pid"`
	Owner  string        `json:"owner"`
	TTL    time.Duration `json:"ttl"`
	Action string        `json:"action"`
}

// Report summarizes one reclaim pass.
type Report struct {
	Inspected int   `json:"inspected"`
	Released  int   `json:"released"`
	Rows      []Row `json:"rows"`
}

// Reclaimer releases stuck claims. The normal pipeline never needs it: claims
// expire by TTL. It exists for the claims that cannot expire, the ones written
// without a TTL by older workers or by hand.
type Reclaimer struct {
	Claims *claim.Service
	Logger *obs.Logger
}

// Reclaim inspects the claims matching pattern (empty means all) and releases
// the stuck ones. Without force, only claims carrying no expiry are released;
// TTL-bearing claims are left to expire on their own. With force, everything
// matching goes. DryRun reports what would be released without touching
// anything.
func (r *Reclaimer) Reclaim(ctx context.Context, pattern string, force, dryRun bool) (Report, error) {
	infos, err := r.Claims.Inspect(ctx, pattern)
	if err != nil {
		return Report{}, err
	}

	rep := Report{Inspected: len(infos)}
	for _, info := range infos {
		row := Row{PID: info.PID, Owner: info.Owner, TTL: info.TTLRemaining}

		stuck := info.TTLRemaining == kv.NoExpiry
		if !force && !stuck {
			row.Action = ActionKept
			rep.Rows = append(rep.Rows, row)
			continue
		}

		if dryRun {
			row.Action = ActionWouldRelease
			rep.Rows = append(rep.Rows, row)
			continue
		}

		released, err := r.Claims.ForceRelease(ctx, info.PID)
		if err != nil {
			return rep, err
		}
		if released {
			row.Action = ActionReleased
			rep.Released++
		} else {
			row.Action = ActionKept // expired between inspect and release
		}
		rep.Rows = append(rep.Rows, row)
	}

	r.Logger.Info(map[string]interface{}{
		"op": "claims_reclaim", "pattern": pattern, "force": force, "dry_run": dryRun,
		"inspected": rep.Inspected, "released": rep.Released,
	})
	return rep, nil
}
