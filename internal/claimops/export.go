package claimops

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/eastgate/supplysync/internal/claim"
	"github.com/eastgate/supplysync/internal/obs"
)

// Exporter counts live claims and optionally pushes the count to a Prometheus
// push gateway, for alerting on claim buildup between worker scrapes.
type Exporter struct {
	Claims *claim.Service
	Logger *obs.Logger

	// GatewayURL enables the push; empty means count-only.
	GatewayURL string
	JobName    string

	// pusher is swapped in tests.
	pusher func(ctx context.Context, g prometheus.Gauge) error
}

// Count returns the number of live claims matching pattern (empty means all
// claims in the namespace).
func (e *Exporter) Count(ctx context.Context, pattern string) (int, error) {
	infos, err := e.Claims.Inspect(ctx, pattern)
	if err != nil {
		return 0, err
	}
	return len(infos), nil
}

// Export counts live claims and, when a gateway is configured, pushes the
// gauge. A push failure is an error: a monitoring pipeline that silently
// drops the sample is worse than one that visibly fails.
func (e *Exporter) Export(ctx context.Context, pattern string) (int, error) {
	n, err := e.Count(ctx, pattern)
	if err != nil {
		return 0, err
	}

	if e.GatewayURL != "" {
		g := prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "supplysync_claims_live",
			Help: "Number of live processing claims.",
		})
		g.Set(float64(n))

		if err := e.push(ctx, g); err != nil {
			e.Logger.Error(map[string]interface{}{
				"op": "claims_export_push", "gateway": e.GatewayURL, "error": err.Error(),
			})
			return n, err
		}
	}

	e.Logger.Info(map[string]interface{}{
		"op": "claims_export", "live": n, "pushed": e.GatewayURL != "",
	})
	return n, nil
}

func (e *Exporter) push(ctx context.Context, g prometheus.Gauge) error {
	if e.pusher != nil {
		return e.pusher(ctx, g)
	}
	job := e.JobName
	if job == "" {
		job = "supplysync_claims"
	}
	return push.New(e.GatewayURL, job).Collector(g).PushContext(ctx)
}
