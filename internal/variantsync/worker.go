package variantsync

import (
	"context"
	"encoding/json"
	"time"

	"github.com/eastgate/supplysync/internal/backoff"
	"github.com/eastgate/supplysync/internal/catalog"
	"github.com/eastgate/supplysync/internal/claim"
	"github.com/eastgate/supplysync/internal/domain"
	"github.com/eastgate/supplysync/internal/importer"
	"github.com/eastgate/supplysync/internal/obs"
	"github.com/eastgate/supplysync/internal/queue"
	"github.com/eastgate/supplysync/internal/state"
)

// Outcome is the terminal disposition of one variant sync run.
type Outcome int

const (
	// Synced: variants fetched and written, product sync timestamp advanced.
	Synced Outcome = iota
	// Removed: upstream delisted the product; recorded locally, never retried.
	Removed
	// Requeued: rate limited upstream; the job re-enqueued itself with backoff.
	Requeued
	// Skipped: nothing to do (claim contention, sync disabled, unknown PID, or
	// an unusable variants payload).
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Synced:
		return "synced"
	case Removed:
		return "removed"
	case Requeued:
		return "requeued"
	case Skipped:
		return "skipped"
	}
	return "unknown"
}

// removedReasonMax matches the removed_reason column width.
const removedReasonMax = 255

// Worker refreshes variant stock and prices for one product at a time. It
// takes its own claim per run; a variant sync and a chunk import can never
// write the same PID concurrently.
type Worker struct {
	Claims   *claim.Service
	Products state.Store
	Catalog  catalog.Client
	Queue    queue.Queue
	Logger   *obs.Logger
	Metrics  *obs.Metrics

	ClaimTTL    time.Duration
	BackoffBase time.Duration
	BackoffCap  time.Duration

	// Now is injected for tests; nil means time.Now.
	Now func() time.Time
}

func (w *Worker) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

// Sync refreshes the variants of one product. Attempt starts at 1 and travels
// with the job across rate-limit requeues; it drives the requeue delay only,
// not a retry cap — a product that keeps rate limiting keeps backing off at
// the cap rather than being dropped.
func (w *Worker) Sync(ctx context.Context, pid string, attempt int) (Outcome, error) {
	if attempt < 1 {
		attempt = 1
	}

	product, found, err := w.Products.GetProduct(ctx, pid)
	if err != nil {
		return Skipped, err
	}
	if !found || !product.SyncEnabled {
		w.Metrics.IncVariantSync("skipped")
		w.Logger.Info(map[string]interface{}{
			"op": "variant_sync_skip", "pid": pid, "known": found,
		})
		return Skipped, nil
	}

	token, ok, err := w.Claims.Acquire(ctx, pid, w.ClaimTTL)
	if err != nil {
		return Skipped, err
	}
	if !ok {
		// Another worker holds the PID; its run supersedes this one.
		w.Metrics.IncVariantSync("contended")
		return Skipped, nil
	}
	releaseCtx := context.WithoutCancel(ctx)
	defer func() {
		_, _ = w.Claims.Release(releaseCtx, pid, token)
	}()

	raw, err := w.Catalog.GetVariants(ctx, pid)
	switch {
	case err == nil:
	case catalog.IsRemoved(err):
		if mErr := w.Products.MarkRemoved(ctx, pid, truncateReason(err.Error()), w.now()); mErr != nil {
			return Skipped, mErr
		}
		w.Metrics.IncVariantSync("removed")
		w.Logger.Warn(map[string]interface{}{
			"op": "variant_sync_removed", "pid": pid, "reason": err.Error(),
		})
		return Removed, nil
	case catalog.IsRateLimited(err):
		return w.requeue(ctx, pid, attempt)
	default:
		w.Metrics.IncVariantSync("failed")
		return Skipped, err
	}

	variants, ok := catalog.ExtractVariants(raw)
	if !ok {
		// Unrecognized payload shape: treat as no data, don't churn retries.
		w.Metrics.IncVariantSync("skipped")
		w.Logger.Warn(map[string]interface{}{
			"op": "variant_sync_payload", "pid": pid, "reason": "unrecognized_shape",
		})
		return Skipped, nil
	}

	existing, err := w.Products.ListVariants(ctx, pid)
	if err != nil {
		return Skipped, err
	}
	known := make(map[string]domain.Variant, len(existing))
	for _, v := range existing {
		known[v.ExternalVariantID] = v
	}

	now := w.now()
	for _, vp := range variants {
		prev, seen := known[vp.VariantID]

		stock := 0
		if vp.Stock != nil {
			stock = *vp.Stock
		} else if seen {
			stock = prev.StockOnHand
		}

		rec := domain.Variant{
			ExternalVariantID: vp.VariantID,
			ProductExternalID: pid,
			SKU:               vp.SKU,
			StockOnHand:       stock,
			Price:             resolvePrice(vp, prev, seen, product),
			StockSyncedAt:     now,
		}
		if rec.SKU == "" && seen {
			rec.SKU = prev.SKU
		}
		if err := w.Products.UpsertVariant(ctx, rec); err != nil {
			w.Metrics.IncVariantSync("failed")
			return Skipped, err
		}
	}

	// A product that answers its variants endpoint is not removed; undo any
	// stale removal flag and advance the sync timestamp.
	if err := w.Products.ClearRemoval(ctx, pid, now); err != nil {
		return Skipped, err
	}

	w.Metrics.IncVariantSync("synced")
	w.Logger.Info(map[string]interface{}{
		"op": "variant_sync", "pid": pid, "variants": len(variants),
	})
	return Synced, nil
}

func (w *Worker) requeue(ctx context.Context, pid string, attempt int) (Outcome, error) {
	delay := backoff.Delay(w.BackoffBase, w.BackoffCap, attempt)
	payload, err := json.Marshal(importer.VariantSyncJob{PID: pid, Attempt: attempt + 1})
	if err != nil {
		return Skipped, err
	}
	if err := w.Queue.Enqueue(ctx, queue.Job{Kind: queue.KindVariantSync, Payload: payload}, delay); err != nil {
		return Skipped, err
	}
	w.Metrics.IncVariantSync("requeued")
	w.Logger.Warn(map[string]interface{}{
		"op": "variant_sync_rate_limited", "pid": pid, "attempt": attempt,
		"delay_s": int(delay.Seconds()),
	})
	return Requeued, nil
}

// resolvePrice picks the variant price for the write: the payload's own price,
// then the previously stored variant price, then the parent product price,
// then "0" so the row never carries an empty decimal.
func resolvePrice(vp catalog.VariantPayload, prev domain.Variant, seen bool, product domain.Product) string {
	if vp.Price != "" {
		return vp.Price
	}
	if seen && prev.Price != "" {
		return prev.Price
	}
	if product.Price != "" {
		return product.Price
	}
	return "0"
}

func truncateReason(s string) string {
	if len(s) > removedReasonMax {
		return s[:removedReasonMax]
	}
	return s
}
