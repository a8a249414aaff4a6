package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once          sync.Once
	boundaries    *prom.CounterVec
	facetChanges  *prom.CounterVec
	notifications *prom.CounterVec
	fitDuration   *prom.HistogramVec
	fitFailures   prom.Counter
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.boundaries = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "plk",
			Name:      "mutation_boundaries_total",
			Help:      "Mutation boundaries by origin and outcome",
		}, []string{"origin", "outcome"})
		pr.facetChanges = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "plk",
			Name:      "facet_changes_total",
			Help:      "Detected facet changes by facet",
		}, []string{"facet"})
		pr.notifications = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "plk",
			Name:      "notifications_total",
			Help:      "Channel notifications fired",
		}, []string{"channel"})
		pr.fitDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "plk",
			Name:      "fit_duration_seconds",
			Help:      "Duration of fit runs",
			Buckets:   prom.DefBuckets,
		}, []string{"result"})
		pr.fitFailures = prom.NewCounter(prom.CounterOpts{
			Namespace: "plk",
			Name:      "fit_failures_total",
			Help:      "Fit runs that ended in an error",
		})
		reg.MustRegister(pr.boundaries, pr.facetChanges, pr.notifications, pr.fitDuration, pr.fitFailures)
	})
	return pr
}

func (p *PrometheusRecorder) IncBoundary(origin string, outcome BoundaryOutcome) {
	if p == nil || p.boundaries == nil {
		return
	}
	p.boundaries.WithLabelValues(origin, string(outcome)).Inc()
}

func (p *PrometheusRecorder) IncFacetChange(facet string) {
	if p == nil || p.facetChanges == nil {
		return
	}
	p.facetChanges.WithLabelValues(facet).Inc()
}

func (p *PrometheusRecorder) IncNotification(channel string) {
	if p == nil || p.notifications == nil {
		return
	}
	p.notifications.WithLabelValues(channel).Inc()
}

func (p *PrometheusRecorder) ObserveFitDuration(d time.Duration, success bool) {
	if p == nil || p.fitDuration == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.fitDuration.WithLabelValues(res).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncFitFailure() {
	if p == nil || p.fitFailures == nil {
		return
	}
	p.fitFailures.Inc()
}
