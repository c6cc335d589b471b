package observability

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerServesPrometheusMetrics(t *testing.T) {
	manager, err := New("deepresearch-test")
	require.NoError(t, err)
	defer func() { _ = manager.Shutdown(context.Background()) }()

	metrics, err := NewMetrics()
	require.NoError(t, err)
	metrics.RecordRun(context.Background(), "completed")
	metrics.RecordModelCall(context.Background(), "openai:gpt-4.1", 120)
	metrics.RecordToolExecution(context.Background(), "tavily_search", true)

	recorder := httptest.NewRecorder()
	manager.Handler().ServeHTTP(recorder, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(recorder.Result().Body)
	require.NoError(t, err)
	assert.Equal(t, 200, recorder.Code)
	assert.Contains(t, string(body), "research_runs_total")
	assert.Contains(t, string(body), "model_calls_total")
	assert.Contains(t, string(body), "tokens_used_total")
	assert.Contains(t, string(body), "tool_executions_total")
}

func TestNilMetricsRecordingIsNoop(t *testing.T) {
	// Recording on a nil Metrics is a no-op, not a panic.
	var metrics *Metrics
	metrics.RecordRun(context.Background(), "completed")
	metrics.RecordModelCall(context.Background(), "openai:gpt-4.1", 10)
	metrics.RecordToolExecution(context.Background(), "think_tool", false)
}
