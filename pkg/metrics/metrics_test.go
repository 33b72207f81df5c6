package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.IncPage(3)
	m.IncPage(3)
	m.AddDiscovered(3, 5)
	m.AddDiscovered(3, 0)
	m.ObserveDownload(3, true, 2048, time.Second)
	m.ObserveDownload(3, false, 999, time.Second)
	m.IncError("network")
	m.IncRecovery("auth_expired")
	m.AddDemoted(3, 2)
	m.SetRecords(3, map[string]int{"complete": 7, "failed": 1})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PagesScanned.WithLabelValues("3")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.DocumentsDiscovered.WithLabelValues("3")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DownloadAttempts.WithLabelValues("3", "complete")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DownloadAttempts.WithLabelValues("3", "failed")))
	assert.Equal(t, 2048.0, testutil.ToFloat64(m.DownloadBytes.WithLabelValues("3")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Errors.WithLabelValues("network")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionRecoveries.WithLabelValues("auth_expired")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RecordsDemoted.WithLabelValues("3")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.Records.WithLabelValues("3", "complete")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.IncPage(1)
	m.AddDiscovered(1, 1)
	m.ObserveDownload(1, true, 1, time.Second)
	m.IncError("x")
	m.IncRecovery("challenge")
	m.AddDemoted(1, 1)
	m.SetRecords(1, map[string]int{"complete": 1})
	assert.NoError(t, m.WriteTextfile("/nonexistent/x.prom"))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.AddDiscovered(1, 4)

	path := filepath.Join(t.TempDir(), "docmirror.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `docmirror_documents_discovered_total{dataset="1"} 4`)
}
