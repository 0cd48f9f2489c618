package metrics

import (
	"math/big"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsRecordNothing(t *testing.T) {
	var m *Metrics
	m.RecordOperation("stake", Success, time.Millisecond)
	m.RecordOperationError("stake", "below_minimum")
	m.Snapshot(1, big.NewInt(1), 1, big.NewInt(1))
	m.RecordViolation("pool_solvency")
	m.RecordPublishError()
	m.RecordHTTPRequest("GET", "/pool", 200)
}

func TestSnapshotAndCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Snapshot(7, big.NewInt(2500), 2, big.NewInt(100))
	assert.Equal(t, float64(7), testutil.ToFloat64(m.journalSeq))
	assert.Equal(t, float64(2500), testutil.ToFloat64(m.activePrincipal))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.activeDeposits))

	m.RecordOperationError("stake", "below_minimum")
	m.RecordOperationError("stake", "below_minimum")
	assert.Equal(t, float64(2), testutil.ToFloat64(m.opErrors.WithLabelValues("stake", "below_minimum")))

	m.RecordHTTPRequest("POST", "/api/v1/stake", 409)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.httpRequestTotal.WithLabelValues("POST", "/api/v1/stake", "4xx")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
