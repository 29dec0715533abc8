package engagement

import (
	"fmt"
	"time"

	"github.com/pulse-metrics/pulse/internal/domain"
)

// ChallengeConfig holds the scalar inputs of a snapshot.
type ChallengeConfig struct {
	WindowLength int
	GoalTotal    int
	ElapsedDays  int
	TargetField  domain.Field

	// DailyGoals are optional per-field targets for a single day.
	DailyGoals map[domain.Field]int

	// Today selects the record compared against DailyGoals. Zero means the
	// most recent record.
	Today time.Time
}

// Params returns the projection parameters of the challenge.
func (c ChallengeConfig) Params() ProjectionParams {
	return ProjectionParams{
		ElapsedDays:  c.ElapsedDays,
		WindowLength: c.WindowLength,
		GoalTotal:    c.GoalTotal,
		TargetField:  c.TargetField,
	}
}

// Validate checks the configuration once, before any computation.
func (c ChallengeConfig) Validate() error {
	if err := c.Params().Validate(); err != nil {
		return err
	}
	for f, g := range c.DailyGoals {
		if _, err := domain.ParseField(string(f)); err != nil {
			return fmt.Errorf("daily goal: %w", err)
		}
		if g < 0 {
			return fmt.Errorf("%w: daily goal for %s must not be negative, got %d", domain.ErrInvalidConfig, f, g)
		}
	}
	return nil
}

// Compute derives a full snapshot from a record store. The only error it
// returns is a configuration error; any record data, including none at all,
// produces a snapshot.
func Compute(store domain.RecordStore, cfg ChallengeConfig) (domain.MetricsSnapshot, error) {
	if err := cfg.Validate(); err != nil {
		return domain.MetricsSnapshot{}, err
	}

	daily := store.Daily()
	funnel := ComputeFunnel(daily)
	streaks := ComputeStreaks(store.Habits())
	projection := project(accumulate(daily, cfg.TargetField), cfg.Params())

	snap := domain.MetricsSnapshot{
		RuleSetVersion: RuleSetVersion,
		Funnel:         funnel,
		Streaks:        streaks,
		Projection:     projection,
		Summary:        Summarize(daily),
	}
	snap.Achievements = Evaluate(domain.AchievementInput{
		Funnel:     funnel,
		Streaks:    streaks,
		Totals:     funnel.Totals,
		Projection: projection,
	})

	if len(daily) > 0 {
		snap.LatestDate = daily[len(daily)-1].Date
	}
	if len(cfg.DailyGoals) > 0 {
		today := cfg.Today
		if today.IsZero() {
			today = snap.LatestDate
		}
		snap.GoalProgress = ProgressToward(RecordOn(daily, today), cfg.DailyGoals)
	}
	return snap, nil
}

func accumulate(records []domain.DailyRecord, f domain.Field) int {
	n := 0
	for _, r := range records {
		n += r.Value(f)
	}
	return n
}
