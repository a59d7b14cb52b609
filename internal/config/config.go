package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env string // ENV, default "dev"

	// Snapshot store backend: memory | mysql
	StateBackend string // STATE_BACKEND
	MySQLDSN     string // DB_DSN, required when STATE_BACKEND=mysql

	// Claim store backend: memory | redis
	ClaimBackend  string // CLAIM_BACKEND
	RedisAddr     string // REDIS_ADDR
	RedisPassword string // REDIS_PASSWORD
	RedisDB       int    // REDIS_DB

	// Key namespace for claims, owner index and tracking counters.
	Namespace string // SYNC_NAMESPACE, default "cjsync"

	// Upstream catalog API.
	CatalogBaseURL string  // CATALOG_BASE_URL
	CatalogRPS     float64 // CATALOG_RPS, client-side request rate ceiling

	ClaimTTL time.Duration // CLAIM_TTL, default 20m

	PageSize  int // SCAN_PAGE_SIZE, default 100
	ChunkSize int // SCAN_CHUNK_SIZE, default 25

	// Variant sync 429 backoff: base * 2^(attempt-1), capped.
	VariantBackoffBase time.Duration // VARIANT_BACKOFF_BASE, default 30s
	VariantBackoffCap  time.Duration // VARIANT_BACKOFF_CAP, default 8m

	// Chunk requeue after a failed bulk upsert.
	RequeueDelay time.Duration // CHUNK_REQUEUE_DELAY, default 1m
	MaxRequeues  int           // CHUNK_MAX_REQUEUES, default 3

	// Follow-up enrichment jobs (translation/seo/media) after import.
	EnrichOnImport bool // ENRICH_ON_IMPORT, default true

	TrackTTL time.Duration // TRACK_TTL, default 24h

	PollEvery   time.Duration // WORKER_POLL_EVERY, default 1s
	MaxPerPoll  int           // WORKER_MAX_PER_POLL, default 10
	MaxAttempts int           // WORKER_MAX_ATTEMPTS, default 5

	// Prometheus scrape endpoint for the worker process.
	MetricsAddr string // METRICS_ADDR, default ":9090", "off" disables

	// Optional: run migrations at startup (dev convenience)
	RunMigrations bool // RUN_MIGRATIONS
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Env:                getenv("ENV", "dev"),
		StateBackend:       getenv("STATE_BACKEND", "memory"),
		MySQLDSN:           getenv("DB_DSN", ""),
		ClaimBackend:       getenv("CLAIM_BACKEND", "memory"),
		RedisAddr:          getenv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:      getenv("REDIS_PASSWORD", ""),
		RedisDB:            getenvInt("REDIS_DB", 0),
		Namespace:          getenv("SYNC_NAMESPACE", "cjsync"),
		CatalogBaseURL:     getenv("CATALOG_BASE_URL", ""),
		CatalogRPS:         getenvFloat("CATALOG_RPS", 4),
		ClaimTTL:           getenvDuration("CLAIM_TTL", 20*time.Minute),
		PageSize:           getenvInt("SCAN_PAGE_SIZE", 100),
		ChunkSize:          getenvInt("SCAN_CHUNK_SIZE", 25),
		VariantBackoffBase: getenvDuration("VARIANT_BACKOFF_BASE", 30*time.Second),
		VariantBackoffCap:  getenvDuration("VARIANT_BACKOFF_CAP", 8*time.Minute),
		RequeueDelay:       getenvDuration("CHUNK_REQUEUE_DELAY", time.Minute),
		MaxRequeues:        getenvInt("CHUNK_MAX_REQUEUES", 3),
		EnrichOnImport:     getenv("ENRICH_ON_IMPORT", "true") == "true",
		TrackTTL:           getenvDuration("TRACK_TTL", 24*time.Hour),
		PollEvery:          getenvDuration("WORKER_POLL_EVERY", time.Second),
		MaxPerPoll:         getenvInt("WORKER_MAX_PER_POLL", 10),
		MaxAttempts:        getenvInt("WORKER_MAX_ATTEMPTS", 5),
		MetricsAddr:        getenv("METRICS_ADDR", ":9090"),
		RunMigrations:      getenv("RUN_MIGRATIONS", "false") == "true",
	}
	return cfg.Normalize()
}

// Normalize applies floors and keeps the backoff ceiling inside the claim TTL,
// so a worker sleeping out its backoff can never outlive its own lease.
func (c Config) Normalize() Config {
	if c.ClaimTTL <= 0 {
		c.ClaimTTL = 20 * time.Minute
	}
	if c.VariantBackoffBase <= 0 {
		c.VariantBackoffBase = 30 * time.Second
	}
	if c.VariantBackoffCap <= 0 {
		c.VariantBackoffCap = 8 * time.Minute
	}
	if c.VariantBackoffCap > c.ClaimTTL {
		c.VariantBackoffCap = c.ClaimTTL
	}
	if c.VariantBackoffBase > c.VariantBackoffCap {
		c.VariantBackoffBase = c.VariantBackoffCap
	}
	if c.PageSize <= 0 {
		c.PageSize = 100
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = 25
	}
	if c.MaxRequeues < 0 {
		c.MaxRequeues = 0
	}
	return c
}

func getenv(key string, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
