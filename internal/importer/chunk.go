package importer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/eastgate/supplysync/internal/catalog"
	"github.com/eastgate/supplysync/internal/claim"
	"github.com/eastgate/supplysync/internal/domain"
	"github.com/eastgate/supplysync/internal/obs"
	"github.com/eastgate/supplysync/internal/queue"
	"github.com/eastgate/supplysync/internal/state"
	"github.com/eastgate/supplysync/internal/track"
)

// removedReasonMax matches the removed_reason column width.
const removedReasonMax = 255

// ChunkProcessor imports one batch of upstream payloads. Claims arrive
// pre-acquired from dispatch; the processor only re-acquires for items whose
// tokens were stripped by a requeue. Every claimed item is released on every
// exit path.
type ChunkProcessor struct {
	Claims   *claim.Service
	Products state.Store
	Catalog  catalog.Client
	Queue    queue.Queue
	Tracker  track.Tracker
	Logger   *obs.Logger
	Metrics  *obs.Metrics

	ClaimTTL       time.Duration
	RequeueDelay   time.Duration
	MaxRequeues    int
	EnrichOnImport bool

	// Now is injected for tests; nil means time.Now.
	Now func() time.Time
}

// Summary aggregates per-item outcomes of one chunk run. A single bad item
// never aborts the batch; it lands in one of these buckets instead.
type Summary struct {
	Received  int  `json:"received"`
	Imported  int  `json:"imported"`
	Contended int  `json:"contended"`
	Invalid   int  `json:"invalid"`
	Removed   int  `json:"removed"`
	Failed    int  `json:"failed"`
	Requeued  bool `json:"requeued"`
}

type claimedItem struct {
	item  Item
	token string
}

func (p *ChunkProcessor) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *ChunkProcessor) Process(ctx context.Context, job ChunkJob) (Summary, error) {
	sum := Summary{Received: len(job.Items)}

	var claimed []claimedItem
	for _, it := range job.Items {
		if it.PID == "" {
			sum.Invalid++
			continue
		}
		token := it.ClaimToken
		if token == "" {
			t, ok, err := p.Claims.Acquire(ctx, it.PID, p.ClaimTTL)
			if err != nil || !ok {
				// Contention or a fail-closed store error: skip this round.
				sum.Contended++
				continue
			}
			token = t
		}
		claimed = append(claimed, claimedItem{item: it, token: token})
	}

	// Release every claim on every exit path. The release context survives
	// cancellation of the job context so claims are not leaked mid-shutdown.
	releaseCtx := context.WithoutCancel(ctx)
	defer func() {
		for _, c := range claimed {
			_, _ = p.Claims.Release(releaseCtx, c.item.PID, c.token)
		}
	}()

	now := p.now()

	var (
		records []domain.Product // goes into the bulk write
		upserts []Item           // same items, retryable form (token stripped)
		retry   []Item           // items to carry into a requeue
	)

	hitRateLimit := false
	for _, c := range claimed {
		if hitRateLimit {
			retry = append(retry, Item{PID: c.item.PID, Raw: c.item.Raw})
			continue
		}

		raw := c.item.Raw
		if len(raw) == 0 {
			fetched, err := p.Catalog.GetDetail(ctx, c.item.PID)
			switch {
			case err == nil:
				raw = fetched
			case catalog.IsRemoved(err):
				if mErr := p.Products.MarkRemoved(ctx, c.item.PID, truncateReason(err.Error()), now); mErr != nil {
					sum.Failed++
					p.Logger.Error(map[string]interface{}{
						"op": "chunk_mark_removed", "pid": c.item.PID, "error": mErr.Error(),
					})
					continue
				}
				sum.Removed++
				p.Metrics.IncImport("removed", 1)
				continue
			case catalog.IsRateLimited(err):
				hitRateLimit = true
				retry = append(retry, Item{PID: c.item.PID})
				continue
			default:
				sum.Failed++
				p.Logger.Error(map[string]interface{}{
					"op": "chunk_detail_fetch", "pid": c.item.PID, "error": err.Error(),
				})
				continue
			}
		}

		pp, ok := catalog.ParseProduct(raw)
		if !ok {
			sum.Invalid++
			p.Logger.Warn(map[string]interface{}{
				"op": "chunk_parse", "pid": c.item.PID, "reason": "unusable_payload",
			})
			continue
		}

		price := pp.Price
		if price == "" {
			price = "0"
		}
		syncedAt := now
		records = append(records, domain.Product{
			ExternalID:   c.item.PID,
			Title:        pp.Title,
			Description:  pp.Description,
			ImageURL:     pp.ImageURL,
			Price:        price,
			Currency:     pp.Currency,
			SyncEnabled:  true,
			Active:       true,
			LastSyncedAt: &syncedAt,
		})
		upserts = append(upserts, Item{PID: c.item.PID, Raw: raw})
	}

	if len(records) > 0 {
		if err := p.Products.BulkUpsertProducts(ctx, records); err != nil {
			p.Logger.Error(map[string]interface{}{
				"op": "chunk_bulk_upsert", "tracking_key": job.TrackingKey,
				"items": len(records), "error": err.Error(),
			})
			retry = append(retry, upserts...)
		} else {
			sum.Imported = len(records)
			p.Metrics.IncImport("imported", sum.Imported)
			p.enrich(ctx, upserts)
		}
	}

	p.Metrics.IncImport("contended", sum.Contended)
	p.Metrics.IncImport("invalid", sum.Invalid)
	p.Metrics.IncImport("failed", sum.Failed)

	_ = p.Tracker.MarkSuccess(ctx, job.TrackingKey, sum.Imported+sum.Removed)
	_ = p.Tracker.MarkFailure(ctx, job.TrackingKey, sum.Invalid+sum.Failed)

	if len(retry) > 0 {
		if job.Requeues >= p.MaxRequeues {
			// Out of requeue budget: give the items up and report them.
			_ = p.Tracker.MarkFailure(ctx, job.TrackingKey, len(retry))
			p.Logger.Error(map[string]interface{}{
				"op": "chunk_dead_letter", "tracking_key": job.TrackingKey, "items": len(retry),
			})
			return sum, nil
		}

		payload, err := json.Marshal(ChunkJob{
			TrackingKey: job.TrackingKey,
			Items:       retry,
			Requeues:    job.Requeues + 1,
		})
		if err != nil {
			return sum, err
		}
		if err := p.Queue.Enqueue(ctx, queue.Job{Kind: queue.KindChunkImport, Payload: payload}, p.RequeueDelay); err != nil {
			return sum, err
		}
		sum.Requeued = true
		p.Metrics.IncChunkRequeue()
		p.Logger.Warn(map[string]interface{}{
			"op": "chunk_requeue", "tracking_key": job.TrackingKey,
			"items": len(retry), "requeues": job.Requeues + 1,
		})
	}

	return sum, nil
}

// enrich schedules downstream translation/SEO/media jobs. Fire-and-forget:
// an enqueue failure is logged and never rolls back the import.
func (p *ChunkProcessor) enrich(ctx context.Context, imported []Item) {
	if !p.EnrichOnImport {
		return
	}
	for _, it := range imported {
		payload, err := json.Marshal(EnrichJob{PID: it.PID, Tasks: enrichTasks})
		if err != nil {
			continue
		}
		if err := p.Queue.Enqueue(ctx, queue.Job{Kind: queue.KindEnrich, Payload: payload}, 0); err != nil {
			p.Logger.Warn(map[string]interface{}{
				"op": "enrich_enqueue", "pid": it.PID, "error": err.Error(),
			})
		}
	}
}

func truncateReason(s string) string {
	if len(s) > removedReasonMax {
		return s[:removedReasonMax]
	}
	return s
}
