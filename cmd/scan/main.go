package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eastgate/supplysync/internal/catalog"
	"github.com/eastgate/supplysync/internal/claim"
	"github.com/eastgate/supplysync/internal/config"
	"github.com/eastgate/supplysync/internal/importer"
	"github.com/eastgate/supplysync/internal/kv"
	"github.com/eastgate/supplysync/internal/obs"
	"github.com/eastgate/supplysync/internal/queue"
	"github.com/eastgate/supplysync/internal/state"
	"github.com/eastgate/supplysync/internal/track"
	"github.com/eastgate/supplysync/internal/variantsync"
	"github.com/eastgate/supplysync/internal/worker"
)

// scan runs one full catalog pass in-process: page through the listing,
// claim and chunk the PIDs, then drain the resulting jobs until the queue is
// empty. One-shot counterpart to the long-running worker.
func main() {
	cfg := config.Load()
	logger := obs.NewLogger()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stateRes, err := state.NewStore(ctx, state.FactoryConfig{
		Backend:  cfg.StateBackend,
		MySQLDSN: cfg.MySQLDSN,
	})
	if err != nil {
		logger.Error(map[string]interface{}{"op": "state_init", "error": err.Error()})
		os.Exit(1)
	}
	if stateRes.DB != nil {
		defer stateRes.DB.Close()
		if cfg.RunMigrations {
			if err := state.ApplyMigrations(ctx, stateRes.DB); err != nil {
				logger.Error(map[string]interface{}{"op": "migrate", "error": err.Error()})
				os.Exit(1)
			}
		}
	}

	kvRes, err := kv.NewStore(ctx, kv.FactoryConfig{
		Backend:       cfg.ClaimBackend,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
	})
	if err != nil {
		logger.Error(map[string]interface{}{"op": "claim_store_init", "error": err.Error()})
		os.Exit(1)
	}
	if kvRes.Client != nil {
		defer kvRes.Client.Close()
	}

	owner, _ := os.Hostname()
	claims := claim.NewService(kvRes.Store, cfg.Namespace, "scan/"+owner, logger, nil)
	tracker := track.New(kvRes.Store, cfg.Namespace, cfg.TrackTTL)
	cat := catalog.NewHTTPClient(cfg.CatalogBaseURL, cfg.CatalogRPS)
	jobs := queue.NewMemoryQueue()

	d := &importer.Dispatcher{
		Catalog:         cat,
		Claims:          claims,
		Queue:           jobs,
		Logger:          logger,
		PageSize:        cfg.PageSize,
		ChunkSize:       cfg.ChunkSize,
		ClaimTTL:        cfg.ClaimTTL,
		PageBackoffBase: cfg.VariantBackoffBase,
		PageBackoffCap:  cfg.VariantBackoffCap,
	}

	sum, err := d.Scan(ctx)
	if err != nil {
		logger.Error(map[string]interface{}{"op": "scan", "error": err.Error()})
		os.Exit(1)
	}

	chunks := &importer.ChunkProcessor{
		Claims:         claims,
		Products:       stateRes.Store,
		Catalog:        cat,
		Queue:          jobs,
		Tracker:        tracker,
		Logger:         logger,
		ClaimTTL:       cfg.ClaimTTL,
		RequeueDelay:   0, // drain immediately in one-shot mode
		MaxRequeues:    cfg.MaxRequeues,
		EnrichOnImport: cfg.EnrichOnImport,
	}
	variants := &variantsync.Worker{
		Claims:      claims,
		Products:    stateRes.Store,
		Catalog:     cat,
		Queue:       jobs,
		Logger:      logger,
		ClaimTTL:    cfg.ClaimTTL,
		BackoffBase: cfg.VariantBackoffBase,
		BackoffCap:  cfg.VariantBackoffCap,
	}

	r := &worker.Runner{
		Queue:  jobs,
		Logger: logger,
		Handlers: map[queue.Kind]worker.Handler{
			queue.KindChunkImport: func(ctx context.Context, job queue.Job) error {
				var cj importer.ChunkJob
				if err := json.Unmarshal(job.Payload, &cj); err != nil {
					return nil
				}
				_, err := chunks.Process(ctx, cj)
				return err
			},
			queue.KindVariantSync: func(ctx context.Context, job queue.Job) error {
				var vj importer.VariantSyncJob
				if err := json.Unmarshal(job.Payload, &vj); err != nil {
					return nil
				}
				_, err := variants.Sync(ctx, vj.PID, vj.Attempt)
				return err
			},
			queue.KindEnrich: func(ctx context.Context, job queue.Job) error {
				return nil // downstream concern, dropped in one-shot mode
			},
		},
		MaxPerPoll:  cfg.MaxPerPoll,
		MaxAttempts: cfg.MaxAttempts,
	}

	// Drain until the queue is empty. Delayed retries (429 backoff) mean some
	// passes find nothing due yet; pace the loop instead of spinning.
	for jobs.Len() > 0 {
		if err := ctx.Err(); err != nil {
			logger.Error(map[string]interface{}{"op": "scan_drain", "error": err.Error()})
			os.Exit(1)
		}
		if err := r.Tick(ctx); err != nil {
			logger.Error(map[string]interface{}{"op": "scan_drain", "error": err.Error()})
			os.Exit(1)
		}
		if jobs.Len() > 0 {
			time.Sleep(cfg.PollEvery)
		}
	}

	counts, err := tracker.Read(ctx, sum.TrackingKey)
	if err != nil {
		logger.Warn(map[string]interface{}{"op": "track_read", "error": err.Error()})
	}

	fmt.Printf("scan %s: pages=%d listed=%d claimed=%d skipped=%d chunks=%d imported=%d failed=%d\n",
		sum.TrackingKey, sum.Pages, sum.Listed, sum.Claimed, sum.Skipped, sum.Chunks,
		counts.Success, counts.Failure)
}
