// Package engagement implements the outreach and habit metrics engine:
// streaks, funnel rates, goal projection, and achievements.
// Every function is a pure computation over an immutable record snapshot.
// Nothing here reads a clock, touches storage, or keeps state between calls.
package engagement

import "github.com/pulse-metrics/pulse/internal/domain"

// ComputeStreak summarizes a dense, date-ordered completion series.
// The last element is the most recent day.
func ComputeStreak(series []bool) domain.StreakStats {
	var stats domain.StreakStats
	stats.TotalDays = len(series)

	run := 0
	for _, done := range series {
		if !done {
			run = 0
			continue
		}
		stats.CompletedDays++
		run++
		if run > stats.LongestStreak {
			stats.LongestStreak = run
		}
	}

	for i := len(series) - 1; i >= 0 && series[i]; i-- {
		stats.CurrentStreak++
	}

	stats.SuccessRate = percent(stats.CompletedDays, stats.TotalDays)
	return stats
}

// ComputeStreaks applies ComputeStreak to every habit column, in column
// order. Habits are independent of each other.
func ComputeStreaks(tbl domain.HabitTable) []domain.StreakStats {
	habits := tbl.Habits()
	out := make([]domain.StreakStats, 0, len(habits))
	for _, h := range habits {
		s := ComputeStreak(tbl.Series(h))
		s.Habit = h
		out = append(out, s)
	}
	return out
}

// percent returns num/den*100, or 0 when den is 0.
func percent(num, den int) float64 {
	if den <= 0 {
		return 0
	}
	return float64(num) / float64(den) * 100
}
