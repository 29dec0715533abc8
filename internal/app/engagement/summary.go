package engagement

import (
	"time"

	"github.com/pulse-metrics/pulse/internal/domain"
)

// recentWindow is the trailing window reported in DailySummary.Last7.
const recentWindow = 7

// Summarize aggregates the tracked days. Outreach is connections plus
// messages plus follow-ups; response and conversion rates are taken against
// it. records must be in date order.
func Summarize(records []domain.DailyRecord) domain.DailySummary {
	s := domain.DailySummary{
		DaysTracked: len(records),
		Totals:      SumTotals(records),
	}
	if s.DaysTracked > 0 {
		s.AvgConnections = float64(s.Totals.ConnectionsSent) / float64(s.DaysTracked)
		s.AvgMessages = float64(s.Totals.MessagesSent) / float64(s.DaysTracked)
	}
	s.TotalOutreach = s.Totals.ConnectionsSent + s.Totals.MessagesSent + s.Totals.FollowUps
	s.ResponseRate = percent(s.Totals.InterestedResponses, s.TotalOutreach)
	s.OutreachConversionRate = percent(s.Totals.Conversions, s.TotalOutreach)

	recent := records
	if len(recent) > recentWindow {
		recent = recent[len(recent)-recentWindow:]
	}
	s.Last7 = SumTotals(recent)
	return s
}

// ProgressToward compares one day's counters against daily goals, in
// canonical field order. Fields without a goal are skipped; a goal of 0
// reports 0%.
func ProgressToward(rec domain.DailyRecord, goals map[domain.Field]int) []domain.GoalProgress {
	var out []domain.GoalProgress
	for _, f := range domain.CounterFields() {
		goal, ok := goals[f]
		if !ok {
			continue
		}
		cur := rec.Value(f)
		out = append(out, domain.GoalProgress{
			Field:   f,
			Current: cur,
			Goal:    goal,
			Percent: clamp(percent(cur, goal), 0, 100),
		})
	}
	return out
}

// RecordOn returns the record for day, or a zero record dated day.
func RecordOn(records []domain.DailyRecord, day time.Time) domain.DailyRecord {
	day = domain.DayOf(day)
	for _, r := range records {
		if r.Date.Equal(day) {
			return r
		}
	}
	return domain.DailyRecord{Date: day}
}

// ChallengeDay returns the 1-based day of a challenge that began on start,
// as of now, clamped to [1, window].
func ChallengeDay(start, now time.Time, window int) int {
	days := int(domain.DayOf(now).Sub(domain.DayOf(start)).Hours()/24) + 1
	return min(max(days, 1), max(window, 1))
}
