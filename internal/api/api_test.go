package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulse-metrics/pulse/internal/app/ingest"
	"github.com/pulse-metrics/pulse/internal/app/report"
	"github.com/pulse-metrics/pulse/internal/app/snapcache"
	"github.com/pulse-metrics/pulse/internal/domain"
	"github.com/pulse-metrics/pulse/internal/health"
	"github.com/pulse-metrics/pulse/internal/infra/sqlite"
)

var challengeStart = time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// newTestServer wires a server over a temp-dir database, on day 10 of a
// 30-day challenge with a goal of 300 connections.
func newTestServer(t *testing.T) (*Server, *sqlite.DB) {
	t.Helper()
	dir := t.TempDir()
	db, err := sqlite.Open(dir)
	if err != nil {
		t.Fatalf("Open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cache := snapcache.New(16, time.Minute)
	reports := report.NewService(db, cache, fixedClock{challengeStart.AddDate(0, 0, 9)}, report.Challenge{
		StartDate:   challengeStart,
		WindowDays:  30,
		GoalTotal:   300,
		TargetField: domain.FieldConnectionsSent,
		DailyGoals:  map[domain.Field]int{domain.FieldConnectionsSent: 20},
	})
	importer, err := ingest.New(domain.DefaultFieldMapping(), db)
	if err != nil {
		t.Fatalf("ingest.New: %v", err)
	}
	importer.OnWrite = reports.Invalidate

	srv := NewServer(reports, importer)
	srv.SetImportLog(db)
	srv.SetVersion("1.2.3")
	return srv, db
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func tenDaysJSON() string {
	var b strings.Builder
	b.WriteString("[")
	for i := 0; i < 10; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		d := challengeStart.AddDate(0, 0, i).Format("2006-01-02")
		b.WriteString(`{"date":"` + d + `","connections_sent":10,"connections_accepted":4,"messages_sent":3}`)
	}
	b.WriteString("]")
	return b.String()
}

// ─── Basic Endpoints ────────────────────────────────────────────────────────

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv.Handler(), "GET", "/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok"`)
}

func TestVersionEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv.Handler(), "GET", "/api/version", "")

	var body map[string]string
	decode(t, w, &body)
	assert.Equal(t, "1.2.3", body["version"])
}

func TestCORS_Preflight(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv.Handler(), "OPTIONS", "/api/snapshot", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

// ─── Snapshot Endpoints ─────────────────────────────────────────────────────

func TestSnapshot_Empty(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv.Handler(), "GET", "/api/snapshot", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var snap domain.MetricsSnapshot
	decode(t, w, &snap)
	assert.Empty(t, snap.Achievements)
	assert.Zero(t, snap.Projection.Accumulated)
	assert.Equal(t, 10, snap.Projection.ElapsedDays)
	assert.Zero(t, snap.Funnel.OverallRate)
}

func TestImportThenSnapshot(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	// Prime the cache with the empty snapshot.
	do(t, h, "GET", "/api/snapshot", "")

	w := do(t, h, "POST", "/api/records/daily?source=test", tenDaysJSON())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var imp importResponse
	decode(t, w, &imp)
	assert.Equal(t, 10, imp.Batch.Rows)
	assert.Equal(t, "test", imp.Batch.Source)
	assert.Empty(t, imp.Errors)

	w = do(t, h, "GET", "/api/snapshot", "")
	require.Equal(t, http.StatusOK, w.Code)
	var snap domain.MetricsSnapshot
	decode(t, w, &snap)

	assert.Equal(t, 100, snap.Projection.Accumulated, "import must invalidate the cache")
	assert.Equal(t, 300.0, snap.Projection.ProjectedTotal)
	assert.Equal(t, 100.0, snap.Projection.SuccessProbability)
	assert.Equal(t, 40.0, snap.Funnel.Rates[0].Rate)
	assert.True(t, snap.Unlocked("sent_100"))
	require.Len(t, snap.GoalProgress, 1)
	assert.Equal(t, 50.0, snap.GoalProgress[0].Percent)
}

func TestSnapshot_QueryOverrides(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()
	do(t, h, "POST", "/api/records/daily", tenDaysJSON())

	w := do(t, h, "GET", "/api/projection?goal=600&window=20&elapsed=10&target=messages_sent", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var p domain.Projection
	decode(t, w, &p)
	assert.Equal(t, domain.FieldMessagesSent, p.TargetField)
	assert.Equal(t, 30, p.Accumulated)
	assert.Equal(t, 60.0, p.ProjectedTotal)
	assert.Equal(t, 10, p.RemainingDays)
}

func TestSnapshot_BadQuery(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	for _, target := range []string{
		"/api/snapshot?goal=abc",
		"/api/snapshot?window=0",
		"/api/snapshot?goal=-1",
		"/api/funnel?target=likes",
	} {
		w := do(t, h, "GET", target, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
		assert.Contains(t, w.Body.String(), `"error"`, target)
	}
}

func TestFunnelEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()
	do(t, h, "POST", "/api/records/daily", tenDaysJSON())

	w := do(t, h, "GET", "/api/funnel", "")
	var f domain.Funnel
	decode(t, w, &f)
	assert.Equal(t, 100, f.Stage(domain.StageSent))
	assert.Equal(t, 40, f.Stage(domain.StageAccepted))
}

func TestSummaryEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()
	do(t, h, "POST", "/api/records/daily", tenDaysJSON())

	w := do(t, h, "GET", "/api/summary", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Summary domain.DailySummary `json:"summary"`
	}
	decode(t, w, &body)
	assert.Equal(t, 10, body.Summary.DaysTracked)
	assert.Equal(t, 10.0, body.Summary.AvgConnections)
	assert.Equal(t, 130, body.Summary.TotalOutreach)
}

func TestAchievementsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()
	do(t, h, "POST", "/api/records/daily", tenDaysJSON())

	w := do(t, h, "GET", "/api/achievements", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Unlocked     []string `json:"unlocked"`
		Total        int      `json:"total"`
		Achievements []struct {
			ID       string `json:"id"`
			Unlocked bool   `json:"unlocked"`
		} `json:"achievements"`
	}
	decode(t, w, &body)
	assert.Contains(t, body.Unlocked, "first_connection")
	assert.Equal(t, body.Total, len(body.Achievements))

	unlocked := 0
	for _, a := range body.Achievements {
		if a.Unlocked {
			unlocked++
		}
	}
	assert.Equal(t, len(body.Unlocked), unlocked)
}

func TestCatalogEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv.Handler(), "GET", "/api/achievements/catalog", "")

	var body struct {
		Achievements []domain.AchievementDef `json:"achievements"`
	}
	decode(t, w, &body)
	assert.Len(t, body.Achievements, 16)
}

func TestChallengeEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv.Handler(), "GET", "/api/challenge", "")

	var body map[string]interface{}
	decode(t, w, &body)
	assert.Equal(t, 10.0, body["day"])
	assert.Equal(t, "2026-10-01", body["start_date"])
	assert.NotContains(t, body, "last_import")
}

func TestChallengeEndpoint_LastImport(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	w := do(t, h, "POST", "/api/records/daily?source=sheet.csv", `[{"date":"2026-10-01","connections_sent":5}]`)
	require.Equal(t, http.StatusCreated, w.Code)
	var imp importResponse
	decode(t, w, &imp)

	w = do(t, h, "GET", "/api/challenge", "")
	var body struct {
		Day        int                `json:"day"`
		LastImport domain.ImportBatch `json:"last_import"`
	}
	decode(t, w, &body)
	assert.Equal(t, imp.Batch.ID, body.LastImport.ID)
	assert.Equal(t, "sheet.csv", body.LastImport.Source)
	assert.Equal(t, 1, body.LastImport.Rows)
}

// ─── Ingestion Endpoints ────────────────────────────────────────────────────

func TestImportDaily_SkipsUndatedRows(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv.Handler(), "POST", "/api/records/daily",
		`[{"date":"2026-10-01","connections_sent":"many"},{"connections_sent":3}]`)
	require.Equal(t, http.StatusCreated, w.Code)

	var imp importResponse
	decode(t, w, &imp)
	assert.Equal(t, 1, imp.Batch.Rows)
	assert.Equal(t, 1, imp.Batch.Skipped)
	assert.Equal(t, 1, imp.Batch.Malformed)
	assert.Len(t, imp.Errors, 1)
}

func TestImportDaily_BadBody(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv.Handler(), "POST", "/api/records/daily", `{"not": "rows"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImportHabits_Streaks(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	w := do(t, h, "POST", "/api/records/habits?habits=post", `
- date: "2026-10-01"
  post: true
- date: "2026-10-02"
  post: true
- date: "2026-10-03"
  post: "x"
`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, h, "GET", "/api/streaks", "")
	var body struct {
		Streaks []domain.StreakStats `json:"streaks"`
	}
	decode(t, w, &body)
	require.Len(t, body.Streaks, 1)
	assert.Equal(t, "post", body.Streaks[0].Habit)
	// Marks stop on the 3rd; the clock is on the 10th.
	assert.Equal(t, 0, body.Streaks[0].CurrentStreak)
	assert.Equal(t, 3, body.Streaks[0].LongestStreak)
	assert.Equal(t, 9, body.Streaks[0].TotalDays)
}

func TestImportsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()
	do(t, h, "POST", "/api/records/daily?source=first", tenDaysJSON())
	do(t, h, "POST", "/api/records/daily?source=second", tenDaysJSON())

	w := do(t, h, "GET", "/api/imports?limit=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Imports []domain.ImportBatch `json:"imports"`
	}
	decode(t, w, &body)
	assert.Len(t, body.Imports, 1)

	w = do(t, h, "GET", "/api/imports?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// ─── Health & Metrics ───────────────────────────────────────────────────────

func TestHealthChecksEndpoint(t *testing.T) {
	srv, db := newTestServer(t)
	checker := health.NewChecker(db, db, t.TempDir())
	srv.SetHealth(checker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go checker.Run(ctx)
	require.Eventually(t, func() bool { return len(checker.Statuses()) == 3 }, time.Second, 5*time.Millisecond)

	w := do(t, srv.Handler(), "GET", "/api/health/checks", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Healthy bool            `json:"healthy"`
		Checks  []health.Status `json:"checks"`
	}
	decode(t, w, &body)
	assert.True(t, body.Healthy)
	assert.Len(t, body.Checks, 3)
}

func TestHealthChecksDisabledByDefault(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv.Handler(), "GET", "/api/health/checks", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.EnableMetrics()
	h := srv.Handler()

	do(t, h, "GET", "/api/snapshot", "")
	w := do(t, h, "GET", "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pulse_snapshots_computed_total")
	assert.Contains(t, w.Body.String(), "pulse_http_requests_total")
}
