package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

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

func main() {
	cfg := config.Load()
	logger := obs.NewLogger()

	logger.Info(map[string]interface{}{
		"op": "worker_boot", "env": cfg.Env,
		"state_backend": cfg.StateBackend, "claim_backend": cfg.ClaimBackend,
		"namespace": cfg.Namespace,
	})

	ctx, cancel := context.WithCancel(context.Background())
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

	metrics := obs.NewMetrics(prometheus.DefaultRegisterer)
	claims := claim.NewService(kvRes.Store, cfg.Namespace, ownerID(), logger, metrics)
	tracker := track.New(kvRes.Store, cfg.Namespace, cfg.TrackTTL)
	cat := catalog.NewHTTPClient(cfg.CatalogBaseURL, cfg.CatalogRPS)
	jobs := queue.NewMemoryQueue()

	chunks := &importer.ChunkProcessor{
		Claims:         claims,
		Products:       stateRes.Store,
		Catalog:        cat,
		Queue:          jobs,
		Tracker:        tracker,
		Logger:         logger,
		Metrics:        metrics,
		ClaimTTL:       cfg.ClaimTTL,
		RequeueDelay:   cfg.RequeueDelay,
		MaxRequeues:    cfg.MaxRequeues,
		EnrichOnImport: cfg.EnrichOnImport,
	}

	variants := &variantsync.Worker{
		Claims:      claims,
		Products:    stateRes.Store,
		Catalog:     cat,
		Queue:       jobs,
		Logger:      logger,
		Metrics:     metrics,
		ClaimTTL:    cfg.ClaimTTL,
		BackoffBase: cfg.VariantBackoffBase,
		BackoffCap:  cfg.VariantBackoffCap,
	}

	r := &worker.Runner{
		Queue:  jobs,
		Logger: logger,
		Metrics: metrics,
		Handlers: map[queue.Kind]worker.Handler{
			queue.KindChunkImport: func(ctx context.Context, job queue.Job) error {
				var cj importer.ChunkJob
				if err := json.Unmarshal(job.Payload, &cj); err != nil {
					logger.Error(map[string]interface{}{
						"op": "chunk_payload", "job_id": job.ID, "error": err.Error(),
					})
					return nil // malformed payload: redelivery cannot fix it
				}
				_, err := chunks.Process(ctx, cj)
				return err
			},
			queue.KindVariantSync: func(ctx context.Context, job queue.Job) error {
				var vj importer.VariantSyncJob
				if err := json.Unmarshal(job.Payload, &vj); err != nil {
					logger.Error(map[string]interface{}{
						"op": "variant_payload", "job_id": job.ID, "error": err.Error(),
					})
					return nil
				}
				_, err := variants.Sync(ctx, vj.PID, vj.Attempt)
				return err
			},
			queue.KindEnrich: func(ctx context.Context, job queue.Job) error {
				// Enrichment runs in downstream services; here we only record
				// the hand-off.
				logger.Info(map[string]interface{}{
					"op": "enrich_handoff", "job_id": job.ID,
				})
				return nil
			},
		},
		PollEvery:   cfg.PollEvery,
		MaxPerPoll:  cfg.MaxPerPoll,
		MaxAttempts: cfg.MaxAttempts,
		RetryDelay:  cfg.PollEvery,
	}

	if cfg.MetricsAddr != "" && cfg.MetricsAddr != "off" {
		go serveMetrics(cfg.MetricsAddr, logger)
	}

	go func() {
		logger.Info(map[string]interface{}{"op": "worker_start", "env": cfg.Env})
		if err := r.Run(ctx); err != nil && err != context.Canceled {
			logger.Error(map[string]interface{}{"op": "worker_run", "error": err.Error()})
			os.Exit(1)
		}
	}()

	waitForShutdown(logger, cancel)
}

func serveMetrics(addr string, logger *obs.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error(map[string]interface{}{"op": "metrics_listen", "error": err.Error()})
	}
}

func ownerID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return host + "/" + strconv.Itoa(os.Getpid())
}

func waitForShutdown(logger *obs.Logger, cancel func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info(map[string]interface{}{"op": "shutdown_signal"})
	cancel()
	logger.Info(map[string]interface{}{"op": "shutdown_complete"})
}
