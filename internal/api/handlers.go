package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/pulse-metrics/pulse/internal/app/engagement"
	"github.com/pulse-metrics/pulse/internal/app/ingest"
	"github.com/pulse-metrics/pulse/internal/app/report"
	"github.com/pulse-metrics/pulse/internal/domain"
)

// maxImportBody bounds POSTed row documents.
const maxImportBody = 8 << 20

// ─── Snapshot Views (/api/snapshot, /api/funnel, ...) ───────────────────────

// overridesFromQuery reads goal, window, elapsed and target overrides.
func overridesFromQuery(r *http.Request) (report.Overrides, error) {
	q := r.URL.Query()
	var o report.Overrides

	ints := []struct {
		name string
		dst  **int
	}{
		{"goal", &o.GoalTotal},
		{"window", &o.WindowDays},
		{"elapsed", &o.ElapsedDays},
	}
	for _, p := range ints {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return o, fmt.Errorf("%w: %s must be an integer, got %q", domain.ErrInvalidConfig, p.name, raw)
		}
		*p.dst = &v
	}
	o.TargetField = q.Get("target")
	return o, nil
}

// snapshot computes the snapshot for the request or writes the error.
func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) (domain.MetricsSnapshot, bool) {
	o, err := overridesFromQuery(r)
	if err != nil {
		writeDomainError(w, err)
		return domain.MetricsSnapshot{}, false
	}
	snap, err := s.reports.Snapshot(r.Context(), o)
	if err != nil {
		writeDomainError(w, err)
		return domain.MetricsSnapshot{}, false
	}
	return snap, true
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleFunnel(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snap.Funnel)
}

func (s *Server) handleStreaks(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	streaks := snap.Streaks
	if streaks == nil {
		streaks = []domain.StreakStats{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"streaks": streaks,
	})
}

func (s *Server) handleProjection(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snap.Projection)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"summary":       snap.Summary,
		"goal_progress": snap.GoalProgress,
		"latest_date":   snap.LatestDate,
	})
}

// achievementView is a catalog entry with its unlock state.
type achievementView struct {
	domain.AchievementDef
	Unlocked bool `json:"unlocked"`
}

func (s *Server) handleAchievements(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}

	defs := engagement.AllAchievements()
	views := make([]achievementView, len(defs))
	for i, d := range defs {
		views[i] = achievementView{AchievementDef: d, Unlocked: snap.Unlocked(d.ID)}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rule_set_version": snap.RuleSetVersion,
		"unlocked":         snap.Achievements,
		"total":            len(defs),
		"achievements":     views,
	})
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rule_set_version": engagement.RuleSetVersion,
		"achievements":     engagement.AllAchievements(),
	})
}

func (s *Server) handleChallenge(w http.ResponseWriter, r *http.Request) {
	day, err := s.reports.ChallengeDay(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	ch := s.reports.Challenge()
	out := map[string]interface{}{
		"day":          day,
		"window_days":  ch.WindowDays,
		"goal_total":   ch.GoalTotal,
		"target_field": ch.TargetField,
	}
	if !ch.StartDate.IsZero() {
		out["start_date"] = ch.StartDate.Format("2006-01-02")
	}
	if s.imports != nil {
		last, ok, err := s.imports.LastImport(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if ok {
			out["last_import"] = last
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// ─── Ingestion (/api/records/*) ─────────────────────────────────────────────

// importResponse is returned by both record endpoints.
type importResponse struct {
	Batch  domain.ImportBatch `json:"batch"`
	Errors []string           `json:"errors"`
}

func (s *Server) decodeRows(w http.ResponseWriter, r *http.Request) ([]map[string]any, bool) {
	rows, err := ingest.DecodeRows(http.MaxBytesReader(w, r.Body, maxImportBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return rows, true
}

func (s *Server) handleImportDaily(w http.ResponseWriter, r *http.Request) {
	rows, ok := s.decodeRows(w, r)
	if !ok {
		return
	}
	res, err := s.importer.ImportDaily(r.Context(), importSource(r), rows)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, importResponse{Batch: res.Batch, Errors: res.Messages()})
}

// handleImportHabits accepts an optional ?habits=a,b list restricting the
// columns read.
func (s *Server) handleImportHabits(w http.ResponseWriter, r *http.Request) {
	rows, ok := s.decodeRows(w, r)
	if !ok {
		return
	}

	var habits []string
	if raw := r.URL.Query().Get("habits"); raw != "" {
		for _, h := range strings.Split(raw, ",") {
			if h = strings.TrimSpace(h); h != "" {
				habits = append(habits, h)
			}
		}
	}

	res, err := s.importer.ImportHabits(r.Context(), importSource(r), rows, habits)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, importResponse{Batch: res.Batch, Errors: res.Messages()})
}

// importSource labels a batch with ?source= or the client address.
func importSource(r *http.Request) string {
	if src := r.URL.Query().Get("source"); src != "" {
		return src
	}
	return "api:" + r.RemoteAddr
}

func (s *Server) handleImports(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	list, err := s.imports.ListImports(r.Context(), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if list == nil {
		list = []domain.ImportBatch{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"imports": list,
	})
}

// ─── Health (/api/health/checks) ────────────────────────────────────────────

func (s *Server) handleHealthChecks(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	healthy := s.health.IsHealthy()
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]interface{}{
		"healthy": healthy,
		"checks":  s.health.Statuses(),
	})
}
