package obs

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	ClaimAcquireTotal *prometheus.CounterVec // result=acquired|contended|error
	ClaimReleaseTotal *prometheus.CounterVec // result=released|stale|error
	ClaimsLive        prometheus.Gauge

	ImportTotal      *prometheus.CounterVec // result=imported|removed|contended|invalid|failed
	ChunkRequeues    prometheus.Counter
	VariantSyncTotal *prometheus.CounterVec // result=synced|removed|requeued|contended|skipped|failed

	OpLatencyMS *prometheus.HistogramVec // op=acquire|release|job_<kind>
}

// The Inc* helpers are nil-safe, like the Logger, so components can run
// without metrics wired.

func (m *Metrics) IncAcquire(result string) {
	if m == nil {
		return
	}
	m.ClaimAcquireTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) IncRelease(result string) {
	if m == nil {
		return
	}
	m.ClaimReleaseTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) IncImport(result string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ImportTotal.WithLabelValues(result).Add(float64(n))
}

func (m *Metrics) IncChunkRequeue() {
	if m == nil {
		return
	}
	m.ChunkRequeues.Inc()
}

func (m *Metrics) IncVariantSync(result string) {
	if m == nil {
		return
	}
	m.VariantSyncTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) SetClaimsLive(n int) {
	if m == nil {
		return
	}
	m.ClaimsLive.Set(float64(n))
}

func (m *Metrics) ObserveMS(op string, ms float64) {
	if m == nil {
		return
	}
	m.OpLatencyMS.WithLabelValues(op).Observe(ms)
}

// NewMetrics registers on reg, or the default registry when reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		ClaimAcquireTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sync_claim_acquire_total",
				Help: "Total claim acquire attempts by result",
			},
			[]string{"result"},
		),
		ClaimReleaseTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sync_claim_release_total",
				Help: "Total claim release attempts by result",
			},
			[]string{"result"},
		),
		ClaimsLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sync_claims_live",
			Help: "Number of live processing claims at last count",
		}),
		ImportTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sync_import_total",
				Help: "Chunk import item outcomes",
			},
			[]string{"result"},
		),
		ChunkRequeues: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sync_chunk_requeue_total",
			Help: "Chunk batches re-enqueued after a failed bulk upsert",
		}),
		VariantSyncTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sync_variant_sync_total",
				Help: "Variant sync outcomes per product",
			},
			[]string{"result"},
		),
		OpLatencyMS: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sync_op_latency_ms",
				Help:    "Latency of sync operations (ms)",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1ms .. ~2048ms
			},
			[]string{"op"},
		),
	}

	reg.MustRegister(
		m.ClaimAcquireTotal,
		m.ClaimReleaseTotal,
		m.ClaimsLive,
		m.ImportTotal,
		m.ChunkRequeues,
		m.VariantSyncTotal,
		m.OpLatencyMS,
	)

	return m
}
