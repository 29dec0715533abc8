package engagement

import (
	"sort"

	"github.com/pulse-metrics/pulse/internal/domain"
)

// RuleSetVersion identifies the achievement table below. Bump it whenever a
// rule is added, removed, or has its threshold changed.
const RuleSetVersion = "2026.10"

// Evaluate checks every achievement against the computed metrics and returns
// the ids that hold, sorted. There is no unlock history: the same input
// always yields the same set, and an achievement whose condition stops
// holding is no longer reported.
func Evaluate(in domain.AchievementInput) []string {
	return evaluate(AllAchievements(), in)
}

func evaluate(defs []domain.AchievementDef, in domain.AchievementInput) []string {
	unlocked := make([]string, 0, len(defs))
	for _, def := range defs {
		if def.Predicate != nil && def.Predicate(in) {
			unlocked = append(unlocked, def.ID)
		}
	}
	sort.Strings(unlocked)
	return unlocked
}

// anyHabit reports whether pred holds for at least one habit.
func anyHabit(streaks []domain.StreakStats, pred func(domain.StreakStats) bool) bool {
	for _, s := range streaks {
		if pred(s) {
			return true
		}
	}
	return false
}

// allHabits reports whether pred holds for every habit; false when there
// are none.
func allHabits(streaks []domain.StreakStats, pred func(domain.StreakStats) bool) bool {
	if len(streaks) == 0 {
		return false
	}
	for _, s := range streaks {
		if !pred(s) {
			return false
		}
	}
	return true
}

// ─── Achievement Definitions ────────────────────────────────────────────────
// 16 achievements across 4 categories. Each has a predicate over the
// snapshot's numeric fields.

// AllAchievements returns the full achievement catalog.
func AllAchievements() []domain.AchievementDef {
	return []domain.AchievementDef{
		// ── Outreach (5) ───────────────────────────────────────────────
		{
			ID: "first_connection", Name: "First Hello", Category: domain.CatOutreach,
			Icon: "👋",
			Predicate: func(in domain.AchievementInput) bool { return in.Funnel.Stage(domain.StageSent) >= 1 },
		},
		{
			ID: "sent_100", Name: "Century Networker", Category: domain.CatOutreach,
			Icon: "🔗",
			Predicate: func(in domain.AchievementInput) bool { return in.Funnel.Stage(domain.StageSent) >= 100 },
		},
		{
			ID: "sent_500", Name: "Connector", Category: domain.CatOutreach,
			Icon: "🌐",
			Predicate: func(in domain.AchievementInput) bool { return in.Funnel.Stage(domain.StageSent) >= 500 },
		},
		{
			ID: "messages_100", Name: "Conversation Starter", Category: domain.CatOutreach,
			Icon: "💬",
			Predicate: func(in domain.AchievementInput) bool { return in.Funnel.Stage(domain.StageMessaged) >= 100 },
		},
		{
			ID: "follow_ups_50", Name: "Persistent", Category: domain.CatOutreach,
			Icon: "⬆️",
			Predicate: func(in domain.AchievementInput) bool { return in.Totals.FollowUps >= 50 },
		},

		// ── Conversion (4) ─────────────────────────────────────────────
		{
			ID: "first_interest", Name: "Someone's Listening", Category: domain.CatConversion,
			Icon: "📩",
			Predicate: func(in domain.AchievementInput) bool { return in.Funnel.Stage(domain.StageInterested) >= 1 },
		},
		{
			ID: "first_conversion", Name: "First Deal", Category: domain.CatConversion,
			Icon: "💰",
			Predicate: func(in domain.AchievementInput) bool { return in.Funnel.Stage(domain.StageConverted) >= 1 },
		},
		{
			ID: "conversions_10", Name: "Closer", Category: domain.CatConversion,
			Icon: "🏆",
			Predicate: func(in domain.AchievementInput) bool { return in.Funnel.Stage(domain.StageConverted) >= 10 },
		},
		{
			// Needs a meaningful sample before the rate counts.
			ID: "acceptance_30", Name: "Welcome Everywhere", Category: domain.CatConversion,
			Icon: "🤝",
			Predicate: func(in domain.AchievementInput) bool {
				return in.Funnel.Stage(domain.StageSent) >= 50 &&
					StageRate(in.Funnel, domain.StageSent, domain.StageAccepted) >= 30
			},
		},

		// ── Habits (5) ─────────────────────────────────────────────────
		{
			ID: "streak_7", Name: "Week Warrior", Category: domain.CatHabits,
			Icon: "🔥",
			Predicate: func(in domain.AchievementInput) bool {
				return anyHabit(in.Streaks, func(s domain.StreakStats) bool { return s.CurrentStreak >= 7 })
			},
		},
		{
			ID: "streak_30", Name: "Monthly Machine", Category: domain.CatHabits,
			Icon: "💪",
			Predicate: func(in domain.AchievementInput) bool {
				return anyHabit(in.Streaks, func(s domain.StreakStats) bool { return s.CurrentStreak >= 30 })
			},
		},
		{
			ID: "streak_longest_14", Name: "Fortnight Force", Category: domain.CatHabits,
			Icon: "📅",
			Predicate: func(in domain.AchievementInput) bool {
				return anyHabit(in.Streaks, func(s domain.StreakStats) bool { return s.LongestStreak >= 14 })
			},
		},
		{
			ID: "success_90", Name: "Consistency King", Category: domain.CatHabits,
			Icon: "👑",
			Predicate: func(in domain.AchievementInput) bool {
				return anyHabit(in.Streaks, func(s domain.StreakStats) bool { return s.SuccessRate >= 90 })
			},
		},
		{
			ID: "perfect_day", Name: "Perfect Day", Category: domain.CatHabits,
			Icon: "✅",
			Predicate: func(in domain.AchievementInput) bool {
				return allHabits(in.Streaks, func(s domain.StreakStats) bool { return s.CurrentStreak >= 1 })
			},
		},

		// ── Pace (2) ───────────────────────────────────────────────────
		{
			ID: "on_track", Name: "On Track", Category: domain.CatPace,
			Icon: "📈",
			Predicate: func(in domain.AchievementInput) bool { return in.Projection.SuccessProbability >= 100 },
		},
		{
			ID: "goal_reached", Name: "Goal Crusher", Category: domain.CatPace,
			Icon: "🎯",
			Predicate: func(in domain.AchievementInput) bool {
				return in.Projection.Accumulated > 0 && in.Projection.RequiredDailyToCloseGap == 0
			},
		},
	}
}
