package metricsvc

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ilmlab/core/progress"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(false)

	m.Reconciled(progress.OutcomeClean)
	m.Reconciled(progress.OutcomeRepaired)
	m.Reconciled(progress.OutcomeRepaired)
	m.TaskCompleted(progress.TaskRecorded)
	m.TaskCompleted(progress.TaskAlreadyCompleted)
	m.AchievementUnlocked(progress.AchievementFirstDiscovery)
	m.PersistFailed(progress.OpTask)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.reconciled.WithLabelValues(progress.OutcomeClean)))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.reconciled.WithLabelValues(progress.OutcomeRepaired)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.tasks.WithLabelValues(string(progress.TaskRecorded))))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.tasks.WithLabelValues(string(progress.TaskAlreadyCompleted))))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.achievements.WithLabelValues(progress.AchievementFirstDiscovery)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.persistFails.WithLabelValues(progress.OpTask)))

	expected := `
# HELP ilmlab_progress_tasks_total Task completions, by status.
# TYPE ilmlab_progress_tasks_total counter
ilmlab_progress_tasks_total{status="already_completed"} 1
ilmlab_progress_tasks_total{status="recorded"} 1
`
	require.NoError(t, testutil.CollectAndCompare(m.tasks, strings.NewReader(expected)))
}

func TestMetrics_Handler(t *testing.T) {
	m := New(false)
	m.ObserveRequest(http.MethodGet, "/v1/me", http.StatusOK, 20*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `ilmlab_http_request_duration_seconds_count{code="200",method="GET",route="/v1/me"} 1`)
	assert.NotContains(t, string(body), "go_goroutines")
}
