package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIngestionMetrics_RegistersOnce(t *testing.T) {
	registry := prometheus.NewRegistry()

	_, err := NewIngestionMetrics(registry)
	require.NoError(t, err)

	_, err = NewIngestionMetrics(registry)
	assert.Error(t, err, "duplicate registration should fail")
}

func TestIngestionMetrics_Record(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewIngestionMetrics(registry)
	require.NoError(t, err)

	m.RecordQueued()
	m.RecordQueued()
	m.RecordFinished("TREATED", "ok")
	m.RecordFinished("TREATED", "duplicate")
	m.RecordFinished("FAILED", "error")
	m.RecordRows("sample_data", 5)
	m.RecordRows("sample_data", 0)
	m.RecordSkipped(2)
	m.RecordClaimConflict()
	m.RecordIngest("ok", 20*time.Millisecond)
	m.RecordTick(3, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.uploadsQueuedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.uploadsFinishedTotal.WithLabelValues("TREATED", "duplicate")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.rowsWrittenTotal.WithLabelValues("sample_data")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.skippedEntriesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.claimConflictsTotal))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.queueDepth))

	expected := `
# HELP ultraqc_upload_claim_conflicts_total Total number of queued uploads already claimed by another worker
# TYPE ultraqc_upload_claim_conflicts_total counter
ultraqc_upload_claim_conflicts_total 1
`
	require.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected),
		"ultraqc_upload_claim_conflicts_total"))
}

func TestIngestionMetrics_NilSafe(t *testing.T) {
	var m *IngestionMetrics
	assert.NotPanics(t, func() {
		m.RecordQueued()
		m.RecordFinished("FAILED", "error")
		m.RecordClaimConflict()
		m.RecordIngest("error", time.Second)
		m.RecordRows("plot_data", 1)
		m.RecordSkipped(1)
		m.RecordTick(0, time.Second)
	})
}
