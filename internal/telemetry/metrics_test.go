package telemetry

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"github.com/vinodismyname/ritualstats/internal/narration"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	m.ObserveToolCall("analyze_records", "ok", 20*time.Millisecond)
	m.ObserveToolCall("analyze_records", "ok", 30*time.Millisecond)
	m.ObserveToolCall("group_timeline", "busy", time.Millisecond)
	require.Equal(t, 2.0, testutil.ToFloat64(m.toolCalls.WithLabelValues("analyze_records", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.toolCalls.WithLabelValues("group_timeline", "busy")))

	m.ObserveNarration(narration.Narration{Key: "gender", Attempts: 1, Elapsed: time.Second})
	m.ObserveNarration(narration.Narration{Key: "castes", Failed: true, Attempts: 3})
	require.Equal(t, 1.0, testutil.ToFloat64(m.narrations.WithLabelValues("failed")))

	m.CacheLookup(true)
	m.CacheLookup(false)
	m.AnalysisComputed()
	require.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.analyses))
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.ObserveToolCall("describe_schema", "ok", time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `ritualstats_tool_calls_total{outcome="ok",tool="describe_schema"} 1`)
}
