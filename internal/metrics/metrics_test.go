package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveUpload("identity_card", "ok")
	m.ObserveUpload("identity_card", "ok")
	m.ObserveUpload("log_card", "decode_error")
	m.ObserveExport(true)
	m.ObserveExport(false)
	m.IncrementRecordsCompleted()
	m.ObserveStage("ocr", time.Now().Add(-time.Second))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Uploads.WithLabelValues("identity_card", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Uploads.WithLabelValues("log_card", "decode_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Exports.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Exports.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecordsCompleted))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "doc_intake_stage_duration_seconds")
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveUpload("identity_card", "ok")
		m.ObserveStage("ocr", time.Now())
		m.ObserveExport(true)
		m.IncrementRecordsCompleted()
	})
}
