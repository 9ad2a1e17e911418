package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ExclusiveAccount/secops-toolkit/pkg/models"
	"github.com/ExclusiveAccount/secops-toolkit/pkg/report"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func quiet() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func row(ip string, cat models.Category, status models.Status) models.Row {
	return models.Row{
		Finding: models.Finding{IP: ip, Port: "80", Name: "finding " + ip, Category: cat},
		Result:  models.VerificationResult{Status: status, EvidencePath: "output/x"},
	}
}

func sampleRun(id string) report.RunSummary {
	rows := []models.Row{
		row("10.0.0.1", models.CategoryApache, models.StatusVerified),
		row("10.0.0.1", models.CategorySSL, models.StatusFalsePositive),
		row("10.0.0.2", models.CategoryApache, models.StatusManual),
	}
	return report.RunSummary{
		RunID:       id,
		GeneratedAt: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
		Input:       "scan.csv",
		Counts:      report.CountByStatus(rows),
		Rows:        rows,
	}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestEmptyDashboard(t *testing.T) {
	d := NewDashboard(DashboardConfig{}, quiet())
	h := d.Handler()

	w := get(t, h, "/api/findings")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", w.Body.String())

	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/run").Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/findings/10.0.0.1").Code)
	assert.Equal(t, 0, decode[Stats](t, get(t, h, "/api/stats")).Total)
}

func TestFindingFilters(t *testing.T) {
	d := NewDashboard(DashboardConfig{}, quiet())
	d.Load(sampleRun("run-1"))
	h := d.Handler()

	all := decode[[]models.Row](t, get(t, h, "/api/findings"))
	assert.Len(t, all, 3)

	apache := decode[[]models.Row](t, get(t, h, "/api/findings?category=apache"))
	assert.Len(t, apache, 2)

	verified := decode[[]models.Row](t, get(t, h, "/api/findings?status=Verified&category=Apache"))
	require.Len(t, verified, 1)
	assert.Equal(t, "10.0.0.1", verified[0].Finding.IP)

	host := decode[[]models.Row](t, get(t, h, "/api/findings/10.0.0.1"))
	assert.Len(t, host, 2)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/findings/10.9.9.9").Code)
}

func TestStatsAndRun(t *testing.T) {
	d := NewDashboard(DashboardConfig{}, quiet())
	d.Load(sampleRun("run-1"))
	h := d.Handler()

	stats := decode[Stats](t, get(t, h, "/api/stats"))
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.ByStatus["Verified"])
	assert.Equal(t, 2, stats.ByCategory["Apache"])

	run := decode[RunInfo](t, get(t, h, "/api/run"))
	assert.Equal(t, "run-1", run.RunID)
	assert.Equal(t, "2024-05-01 08:00:00", run.GeneratedAt)
}

func TestHistoryIsBounded(t *testing.T) {
	d := NewDashboard(DashboardConfig{ResultsHistory: 2}, quiet())
	for _, id := range []string{"a", "b", "c"} {
		d.Load(sampleRun(id))
	}
	history := decode[[]RunInfo](t, get(t, d.Handler(), "/api/history"))
	require.Len(t, history, 2)
	assert.Equal(t, "c", history[0].RunID)
	assert.Equal(t, "b", history[1].RunID)
}

func TestMetrics(t *testing.T) {
	d := NewDashboard(DashboardConfig{}, quiet())
	d.Load(sampleRun("run-1"))

	body := get(t, d.Handler(), "/metrics").Body.String()
	assert.Contains(t, body, `secops_findings{category="Apache",status="Verified"} 1`)
	assert.Contains(t, body, `secops_findings{category="Apache",status="Manual Check Required"} 1`)
	assert.Contains(t, body, "secops_results_loads_total 1")

	// reloading drops series that no longer exist
	d.Load(report.RunSummary{RunID: "empty"})
	body = get(t, d.Handler(), "/metrics").Body.String()
	assert.NotContains(t, body, `status="Verified"`)
}

func TestCORS(t *testing.T) {
	d := NewDashboard(DashboardConfig{EnableCORS: true}, quiet())
	w := httptest.NewRecorder()
	d.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/findings", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestExports(t *testing.T) {
	off := NewDashboard(DashboardConfig{}, quiet())
	assert.Equal(t, http.StatusNotFound, get(t, off.Handler(), "/api/export/csv").Code)

	d := NewDashboard(DashboardConfig{AllowExports: true}, quiet())
	d.Load(sampleRun("run-1"))

	w := get(t, d.Handler(), "/api/export/csv")
	assert.Equal(t, http.StatusOK, w.Code)
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, strings.Join(report.Headers, ","), lines[0])
	assert.Equal(t, "10.0.0.1,80,,finding 10.0.0.1,,Apache,Verified,output/x", lines[1])

	w = get(t, d.Handler(), "/api/export/json")
	assert.Equal(t, "run-1", decode[report.RunSummary](t, w).RunID)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	require.NoError(t, report.WriteResults(path, sampleRun("from-disk")))

	d := NewDashboard(DashboardConfig{}, quiet())
	require.NoError(t, d.LoadFile(path))
	assert.Equal(t, "from-disk", decode[RunInfo](t, get(t, d.Handler(), "/api/run")).RunID)
	assert.Error(t, d.LoadFile(filepath.Join(t.TempDir(), "missing.json")))
}

func TestLoadingCurrentRunAgainReplacesHistoryEntry(t *testing.T) {
	d := NewDashboard(DashboardConfig{}, quiet())
	d.Load(sampleRun("run-1"))
	d.Load(sampleRun("run-1"))
	d.Load(sampleRun("run-2"))

	history := decode[[]RunInfo](t, get(t, d.Handler(), "/api/history"))
	require.Len(t, history, 2)
	assert.Equal(t, "run-2", history[0].RunID)
	assert.Equal(t, "run-1", history[1].RunID)
}

func TestWatchReloadsChangedResults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	require.NoError(t, report.WriteResults(path, sampleRun("first")))

	d := NewDashboard(DashboardConfig{ResultsHistory: 5}, quiet())
	require.NoError(t, d.LoadFile(path))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Watch(ctx, path, 10*time.Millisecond)
		close(done)
	}()

	require.NoError(t, report.WriteResults(path, sampleRun("second")))
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))

	require.Eventually(t, func() bool {
		w := httptest.NewRecorder()
		d.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/history", nil))
		var history []RunInfo
		if err := json.Unmarshal(w.Body.Bytes(), &history); err != nil {
			return false
		}
		return len(history) == 2 && history[0].RunID == "second"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "second", decode[RunInfo](t, get(t, d.Handler(), "/api/run")).RunID)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatchDisabled(t *testing.T) {
	d := NewDashboard(DashboardConfig{}, quiet())
	// returns at once without a positive interval
	d.Watch(context.Background(), filepath.Join(t.TempDir(), "results.json"), 0)
	assert.Equal(t, http.StatusNotFound, get(t, d.Handler(), "/api/run").Code)
}
