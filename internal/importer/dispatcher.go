package importer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/eastgate/supplysync/internal/backoff"
	"github.com/eastgate/supplysync/internal/catalog"
	"github.com/eastgate/supplysync/internal/claim"
	"github.com/eastgate/supplysync/internal/obs"
	"github.com/eastgate/supplysync/internal/queue"
)

// Dispatcher walks the upstream listing and fans PIDs out into chunk jobs.
// Claiming happens here, the moment a PID comes off a page, so two
// overlapping scans can never both enqueue the same PID: the second scan
// loses the claim and skips.
type Dispatcher struct {
	Catalog catalog.Client
	Claims  *claim.Service
	Queue   queue.Queue
	Logger  *obs.Logger
	Metrics *obs.Metrics

	PageSize  int
	ChunkSize int
	ClaimTTL  time.Duration
	Filters   map[string]string

	// Backoff applied when a page fetch itself is rate limited.
	PageBackoffBase time.Duration
	PageBackoffCap  time.Duration
}

type ScanSummary struct {
	TrackingKey string `json:"tracking_key"`
	Pages       int    `json:"pages"`
	Listed      int    `json:"listed"`
	Claimed     int    `json:"claimed"`
	Skipped     int    `json:"skipped"`
	Chunks      int    `json:"chunks"`
}

// Scan pages through the catalog once, claiming and enqueueing as it goes.
// It returns after the last page, or on the first non-retryable error.
func (d *Dispatcher) Scan(ctx context.Context) (ScanSummary, error) {
	sum := ScanSummary{TrackingKey: "scan-" + uuid.NewString()}

	var chunk []Item
	flush := func() error {
		if len(chunk) == 0 {
			return nil
		}
		payload, err := json.Marshal(ChunkJob{
			TrackingKey: sum.TrackingKey,
			Items:       chunk,
		})
		if err != nil {
			return err
		}
		if err := d.Queue.Enqueue(ctx, queue.Job{Kind: queue.KindChunkImport, Payload: payload}, 0); err != nil {
			return err
		}
		sum.Chunks++
		chunk = nil
		return nil
	}

	page := 1
	totalPages := 1
	attempt := 1

	for page <= totalPages {
		items, tp, err := d.Catalog.ListPage(ctx, page, d.PageSize, d.Filters)
		if err != nil {
			if catalog.IsRateLimited(err) {
				delay := backoff.Delay(d.PageBackoffBase, d.PageBackoffCap, attempt)
				d.Logger.Warn(map[string]interface{}{
					"op": "scan_page_rate_limited", "page": page, "attempt": attempt,
					"delay_s": int(delay.Seconds()),
				})
				attempt++
				if err := sleep(ctx, delay); err != nil {
					return sum, err
				}
				continue // retry the same page
			}
			return sum, err
		}
		attempt = 1

		if tp > 0 {
			totalPages = tp
		}
		sum.Pages++
		sum.Listed += len(items)

		for _, it := range items {
			token, ok, err := d.Claims.Acquire(ctx, it.PID, d.ClaimTTL)
			if err != nil || !ok {
				// Held by another scan or worker: skip, a later pass picks
				// it up.
				sum.Skipped++
				continue
			}
			sum.Claimed++
			chunk = append(chunk, Item{PID: it.PID, ClaimToken: token, Raw: it.Raw})

			if len(chunk) >= d.ChunkSize {
				if err := flush(); err != nil {
					return sum, err
				}
			}
		}
		page++
	}

	if err := flush(); err != nil {
		return sum, err
	}

	d.Logger.Info(map[string]interface{}{
		"op": "scan_done", "tracking_key": sum.TrackingKey, "pages": sum.Pages,
		"listed": sum.Listed, "claimed": sum.Claimed, "skipped": sum.Skipped,
		"chunks": sum.Chunks,
	})
	return sum, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
