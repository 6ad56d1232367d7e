package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrument_UsesRoutePattern(t *testing.T) {
	m := New("test", "local")

	r := chi.NewRouter()
	r.Use(m.Instrument)
	r.Get("/api/apps/{appID}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"app-1", "app-2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/apps/"+id, nil))
	}

	count := testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/apps/{appID}", "404"))
	assert.Equal(t, 2.0, count)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.httpInFlight))
}

func TestHandler_ExposesCollectors(t *testing.T) {
	m := New("1.2.3", "sqlite")
	m.RecordJob("history-retention", 20*time.Millisecond, true)
	m.AddHistoryPruned(3)
	m.AddHistoryPruned(0)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `apphub_build_info{backend="sqlite",version="1.2.3"} 1`)
	assert.Contains(t, body, `apphub_jobs_runs_total{job="history-retention",success="true"} 1`)
	assert.Contains(t, body, "apphub_history_pruned_entries_total 3")
	assert.True(t, strings.Contains(body, "go_goroutines"))
}

func TestStatusRecorder_FirstStatusWins(t *testing.T) {
	rec := &statusRecorder{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}
	_, _ = rec.Write([]byte("ok"))
	rec.WriteHeader(http.StatusInternalServerError)
	assert.Equal(t, http.StatusOK, rec.status)
}
