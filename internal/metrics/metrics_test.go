package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordersCountAfterRegister(t *testing.T) {
	MustRegister()
	MustRegister()

	before := testutil.ToFloat64(transitions.WithLabelValues("publish", "ok"))
	RecordTransition("publish", "ok")
	RecordTransition("publish", "ok")
	assert.Equal(t, before+2, testutil.ToFloat64(transitions.WithLabelValues("publish", "ok")))

	RecordImport("", "rejected")
	assert.GreaterOrEqual(t, testutil.ToFloat64(imports.WithLabelValues("unknown", "rejected")), 1.0)

	snapshots := testutil.ToFloat64(historyCommits)
	RecordSnapshot(3)
	assert.Equal(t, snapshots+1, testutil.ToFloat64(historyCommits))

	RecordSave("ok")
	ObserveRequest(http.MethodGet, http.StatusNotFound, 12*time.Millisecond)
}

func TestHandlerServesMetrics(t *testing.T) {
	MustRegister()
	RecordTransition("submit", "denied")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "casehub_workflow_transitions_total")
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(204))
	assert.Equal(t, "3xx", statusClass(302))
	assert.Equal(t, "4xx", statusClass(409))
	assert.Equal(t, "5xx", statusClass(503))
}
