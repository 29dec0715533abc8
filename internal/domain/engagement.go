// Package domain — metrics snapshot types.
// Every type here is a value object produced fresh by the engine on each
// call; nothing is mutated in place after construction.
package domain

import "time"

// ─── Streak Types ───────────────────────────────────────────────────────────

// StreakStats summarizes one habit's completion series.
type StreakStats struct {
	Habit         string  `json:"habit"`
	CurrentStreak int     `json:"current_streak"`
	LongestStreak int     `json:"longest_streak"`
	CompletedDays int     `json:"completed_days"`
	TotalDays     int     `json:"total_days"`
	SuccessRate   float64 `json:"success_rate"` // 0-100
}

// ─── Funnel Types ───────────────────────────────────────────────────────────

// Stage names, in pipeline order.
const (
	StageSent       = "sent"
	StageAccepted   = "accepted"
	StageMessaged   = "messaged"
	StageInterested = "interested"
	StageConverted  = "converted"
)

// StageCount is one funnel stage and its total.
type StageCount struct {
	Name  string `json:"name"`
	Total int    `json:"total"`
}

// StageRate is the conversion from one stage to another, as a percentage.
// Rates above 100 are valid: stages are independent counters.
type StageRate struct {
	From string  `json:"from"`
	To   string  `json:"to"`
	Rate float64 `json:"rate"`
}

// Totals holds the sum of every counter across a record set.
type Totals struct {
	ConnectionsSent     int `json:"connections_sent"`
	ConnectionsAccepted int `json:"connections_accepted"`
	MessagesSent        int `json:"messages_sent"`
	InterestedResponses int `json:"interested_responses"`
	LinksSent           int `json:"links_sent"`
	FollowUps           int `json:"follow_ups"`
	Conversions         int `json:"conversions"`
}

// Add accumulates one record.
func (t *Totals) Add(r DailyRecord) {
	t.ConnectionsSent += r.ConnectionsSent
	t.ConnectionsAccepted += r.ConnectionsAccepted
	t.MessagesSent += r.MessagesSent
	t.InterestedResponses += r.InterestedResponses
	t.LinksSent += r.LinksSent
	t.FollowUps += r.TotalFollowUps()
	t.Conversions += r.Conversions
}

// Funnel is the outreach pipeline: stage totals, adjacent-stage rates, and
// the first-to-last rate.
type Funnel struct {
	Stages      []StageCount `json:"stages"`
	Rates       []StageRate  `json:"rates"`
	OverallRate float64      `json:"overall_rate"`
	Totals      Totals       `json:"totals"`
}

// Stage returns the total for a named stage, or 0.
func (f Funnel) Stage(name string) int {
	for _, s := range f.Stages {
		if s.Name == name {
			return s.Total
		}
	}
	return 0
}

// ─── Projection Types ───────────────────────────────────────────────────────

// Projection extrapolates the observed daily average of one field to the
// full challenge window.
type Projection struct {
	TargetField             Field   `json:"target_field"`
	Accumulated             int     `json:"accumulated"`
	ElapsedDays             int     `json:"elapsed_days"`
	RemainingDays           int     `json:"remaining_days"`
	AvgDaily                float64 `json:"avg_daily"`
	ProjectedTotal          float64 `json:"projected_total"`
	GapToGoal               float64 `json:"gap_to_goal"` // negative = goal exceeded
	RequiredDailyToCloseGap float64 `json:"required_daily_to_close_gap"`
	SuccessProbability      float64 `json:"success_probability"` // 0-100
}

// ─── Achievement Types ──────────────────────────────────────────────────────

// AchievementCategory groups achievements by theme.
type AchievementCategory string

const (
	CatOutreach   AchievementCategory = "outreach"
	CatConversion AchievementCategory = "conversion"
	CatHabits     AchievementCategory = "habits"
	CatPace       AchievementCategory = "pace"
)

// AchievementInput is the view of computed metrics fed to predicates.
type AchievementInput struct {
	Funnel     Funnel        `json:"funnel"`
	Streaks    []StreakStats `json:"streaks"`
	Totals     Totals        `json:"totals"`
	Projection Projection    `json:"projection"`
}

// AchievementDef defines a single achievement's requirements.
type AchievementDef struct {
	ID        string                      `json:"id"`
	Name      string                      `json:"name"`
	Category  AchievementCategory         `json:"category"`
	Icon      string                      `json:"icon"`
	Predicate func(AchievementInput) bool `json:"-"` // Check function (not serialized)
}

// ─── Summary Types ──────────────────────────────────────────────────────────

// DailySummary aggregates the tracked days the way the dashboard header
// presents them.
type DailySummary struct {
	DaysTracked            int     `json:"days_tracked"`
	Totals                 Totals  `json:"totals"`
	AvgConnections         float64 `json:"avg_connections"`
	AvgMessages            float64 `json:"avg_messages"`
	TotalOutreach          int     `json:"total_outreach"`
	ResponseRate           float64 `json:"response_rate"`
	OutreachConversionRate float64 `json:"outreach_conversion_rate"`
	Last7                  Totals  `json:"last_7"`
}

// GoalProgress is today's value of one field against its daily goal.
type GoalProgress struct {
	Field   Field   `json:"field"`
	Current int     `json:"current"`
	Goal    int     `json:"goal"`
	Percent float64 `json:"percent"` // capped at 100
}

// ─── Snapshot ───────────────────────────────────────────────────────────────

// MetricsSnapshot is the engine's sole output.
type MetricsSnapshot struct {
	RuleSetVersion string         `json:"rule_set_version"`
	Funnel         Funnel         `json:"funnel"`
	Streaks        []StreakStats  `json:"streaks"`
	Projection     Projection     `json:"projection"`
	Achievements   []string       `json:"achievements"`
	Summary        DailySummary   `json:"summary"`
	GoalProgress   []GoalProgress `json:"goal_progress,omitempty"`
	LatestDate     time.Time      `json:"latest_date,omitzero"`
}

// Clone returns a deep copy, so a cached snapshot can be handed to several
// callers without sharing slices.
func (s MetricsSnapshot) Clone() MetricsSnapshot {
	out := s
	out.Funnel.Stages = cloneSlice(s.Funnel.Stages)
	out.Funnel.Rates = cloneSlice(s.Funnel.Rates)
	out.Streaks = cloneSlice(s.Streaks)
	out.Achievements = cloneSlice(s.Achievements)
	out.GoalProgress = cloneSlice(s.GoalProgress)
	return out
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append(make([]T, 0, len(s)), s...)
}

// Unlocked reports whether the snapshot contains achievement id.
func (s MetricsSnapshot) Unlocked(id string) bool {
	for _, a := range s.Achievements {
		if a == id {
			return true
		}
	}
	return false
}
