package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	batchesIngested    *prometheus.CounterVec
	recordsIngested    *prometheus.CounterVec
	mergedPoints       prometheus.Counter
	validationFailures *prometheus.CounterVec
	resolutions        *prometheus.CounterVec
	errorsTotal        *prometheus.CounterVec
	graphNodes         prometheus.Gauge
	graphEdges         prometheus.Gauge
	graphBuildDuration prometheus.Histogram
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		batchesIngested: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "valueflow_batches_ingested_total",
				Help: "Total number of observation batches ingested",
			},
			[]string{"source", "kind"},
		),
		recordsIngested: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "valueflow_records_ingested_total",
				Help: "Total number of raw records ingested",
			},
			[]string{"source", "kind"},
		),
		mergedPoints: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "valueflow_merged_points_total",
				Help: "Total number of points produced by merge passes",
			},
		),
		validationFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "valueflow_validation_failures_total",
				Help: "Total number of failed quality checks",
			},
			[]string{"check"},
		),
		resolutions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "valueflow_resolutions_total",
				Help: "Total number of item valuations attempted",
			},
			[]string{"outcome"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "valueflow_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		graphNodes: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "valueflow_graph_nodes",
				Help: "Node count of the most recently built value graph",
			},
		),
		graphEdges: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "valueflow_graph_edges",
				Help: "Edge count of the most recently built value graph",
			},
		),
		graphBuildDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "valueflow_graph_build_duration_seconds",
				Help:    "Duration of graph rebuilds in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

// RecordBatchIngested records an accepted observation batch.
func (r *Recorder) RecordBatchIngested(source, kind string, records int) {
	r.batchesIngested.WithLabelValues(source, kind).Inc()
	r.recordsIngested.WithLabelValues(source, kind).Add(float64(records))
}

// RecordMergedPoints records the size of a merge result.
func (r *Recorder) RecordMergedPoints(points int) {
	r.mergedPoints.Add(float64(points))
}

// RecordValidationFailure records a failed quality check.
func (r *Recorder) RecordValidationFailure(check string) {
	r.validationFailures.WithLabelValues(check).Inc()
}

// RecordGraphBuild records the outcome of a graph rebuild.
func (r *Recorder) RecordGraphBuild(seconds float64, nodes, edges int) {
	r.graphBuildDuration.Observe(seconds)
	r.graphNodes.Set(float64(nodes))
	r.graphEdges.Set(float64(edges))
}

// RecordResolution records an item valuation outcome.
func (r *Recorder) RecordResolution(outcome string) {
	r.resolutions.WithLabelValues(outcome).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}
