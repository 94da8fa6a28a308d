package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ToolCall("search_by_name", "ok")
	m.StoreFailure("update_field", "not_found")
	m.AgentRun("answered", "", 2)
	m.Transcription("error")
	assert.Nil(t, m.Registry())
}

func TestCounters(t *testing.T) {
	m := New()
	m.ToolCall("add_new_contact", "ok")
	m.ToolCall("add_new_contact", "ok")
	m.StoreFailure("records", "backend")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.toolCalls.WithLabelValues("add_new_contact", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.storeFailures.WithLabelValues("records", "backend")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.AgentRun("failed", "iteration_cap", 5)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `rolodex_agent_runs_total{reason="iteration_cap",state="failed"} 1`)
}
