package progknn

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector receives the statistics of every Table.Run.
// Implement this interface to integrate with monitoring systems.
type MetricsCollector interface {
	// RecordRun is called after each Run with its result and the dirty
	// queue length left behind.
	RecordRun(res UpdateResult, queueLen int)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordRun(UpdateResult, int) {}

const (
	phaseAddPoint    = "add_point"
	phaseUpdateIndex = "update_index"
	phaseUpdateTable = "update_table"
)

// PrometheusCollector exports Run statistics as Prometheus metrics:
//
//	progknn_ops_allocated_total{phase}  ops allocated per phase
//	progknn_ops_performed_total{phase}  work achieved per phase
//	progknn_phase_duration_seconds{phase}
//	progknn_points_inserted             running total of ingested points
//	progknn_dirty_queue_length
//	progknn_runs_total
type PrometheusCollector struct {
	allocated *prometheus.CounterVec
	performed *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	inserted  prometheus.Gauge
	queueLen  prometheus.Gauge
	runs      prometheus.Counter
}

var _ MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheusCollector creates the collector's metrics and registers them
// on reg. A nil reg uses prometheus.DefaultRegisterer. constLabels are
// attached to every metric, which lets several tables share a registry.
func NewPrometheusCollector(reg prometheus.Registerer, constLabels prometheus.Labels) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &PrometheusCollector{
		allocated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "progknn",
			Name:        "ops_allocated_total",
			Help:        "Operations allocated to each phase of a run.",
			ConstLabels: constLabels,
		}, []string{"phase"}),
		performed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "progknn",
			Name:        "ops_performed_total",
			Help:        "Work achieved by each phase of a run.",
			ConstLabels: constLabels,
		}, []string{"phase"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   "progknn",
			Name:        "phase_duration_seconds",
			Help:        "Time spent in each phase of a run.",
			ConstLabels: constLabels,
			Buckets:     prometheus.ExponentialBuckets(1e-6, 4, 12),
		}, []string{"phase"}),
		inserted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "progknn",
			Name:        "points_inserted",
			Help:        "Points ingested into the neighbor table.",
			ConstLabels: constLabels,
		}),
		queueLen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "progknn",
			Name:        "dirty_queue_length",
			Help:        "Points waiting for a neighbor recheck.",
			ConstLabels: constLabels,
		}),
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "progknn",
			Name:        "runs_total",
			Help:        "Completed runs.",
			ConstLabels: constLabels,
		}),
	}
	var errs []error
	for _, m := range []prometheus.Collector{c.allocated, c.performed, c.duration, c.inserted, c.queueLen, c.runs} {
		errs = append(errs, reg.Register(m))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *PrometheusCollector) RecordRun(res UpdateResult, queueLen int) {
	c.allocated.WithLabelValues(phaseAddPoint).Add(float64(res.AddPointOps))
	c.allocated.WithLabelValues(phaseUpdateIndex).Add(float64(res.UpdateIndexOps))
	c.allocated.WithLabelValues(phaseUpdateTable).Add(float64(res.UpdateTableOps))

	c.performed.WithLabelValues(phaseAddPoint).Add(float64(res.AddPointResult))
	c.performed.WithLabelValues(phaseUpdateIndex).Add(float64(res.UpdateIndexResult))
	c.performed.WithLabelValues(phaseUpdateTable).Add(float64(res.UpdateTableResult))

	c.duration.WithLabelValues(phaseAddPoint).Observe(res.AddPointElapsed.Seconds())
	c.duration.WithLabelValues(phaseUpdateIndex).Observe(res.UpdateIndexElapsed.Seconds())
	c.duration.WithLabelValues(phaseUpdateTable).Observe(res.UpdateTableElapsed.Seconds())

	c.inserted.Set(float64(res.NumPointsInserted))
	c.queueLen.Set(float64(queueLen))
	c.runs.Inc()
}
