package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the intake pipeline.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Uploads          *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
	Exports          *prometheus.CounterVec
	RecordsCompleted prometheus.Counter
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Uploads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "doc_intake_uploads_total",
			Help: "Document uploads by kind and outcome",
		}, []string{"kind", "outcome"}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "doc_intake_stage_duration_seconds",
			Help:    "Time spent in each pipeline stage",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),
		Exports: f.NewCounterVec(prometheus.CounterOpts{
			Name: "doc_intake_exports_total",
			Help: "Workflow board exports by outcome",
		}, []string{"outcome"}),
		RecordsCompleted: f.NewCounter(prometheus.CounterOpts{
			Name: "doc_intake_records_completed_total",
			Help: "Records that received all three documents",
		}),
	}
}

// ObserveUpload counts one upload.
func (m *Metrics) ObserveUpload(kind, outcome string) {
	if m == nil {
		return
	}
	m.Uploads.WithLabelValues(kind, outcome).Inc()
}

// ObserveStage records how long a stage took since start.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// ObserveExport counts one export attempt.
func (m *Metrics) ObserveExport(ok bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.Exports.WithLabelValues(outcome).Inc()
}

// IncrementRecordsCompleted counts a record reaching completion.
func (m *Metrics) IncrementRecordsCompleted() {
	if m == nil {
		return
	}
	m.RecordsCompleted.Inc()
}
