package engagement

import "github.com/pulse-metrics/pulse/internal/domain"

// funnelStages lists the pipeline in order, each with the counter it sums.
var funnelStages = []struct {
	name  string
	value func(domain.Totals) int
}{
	{domain.StageSent, func(t domain.Totals) int { return t.ConnectionsSent }},
	{domain.StageAccepted, func(t domain.Totals) int { return t.ConnectionsAccepted }},
	{domain.StageMessaged, func(t domain.Totals) int { return t.MessagesSent }},
	{domain.StageInterested, func(t domain.Totals) int { return t.InterestedResponses }},
	{domain.StageConverted, func(t domain.Totals) int { return t.Conversions }},
}

// SumTotals adds up every counter across records.
func SumTotals(records []domain.DailyRecord) domain.Totals {
	var t domain.Totals
	for _, r := range records {
		t.Add(r)
	}
	return t
}

// ComputeFunnel totals each stage and the rate between adjacent stages.
// Stages are independent counters, so a later stage may exceed an earlier
// one; the rate is then above 100 and that is not an error.
func ComputeFunnel(records []domain.DailyRecord) domain.Funnel {
	return funnelFromTotals(SumTotals(records))
}

func funnelFromTotals(totals domain.Totals) domain.Funnel {
	f := domain.Funnel{
		Stages: make([]domain.StageCount, len(funnelStages)),
		Rates:  make([]domain.StageRate, 0, len(funnelStages)-1),
		Totals: totals,
	}
	for i, st := range funnelStages {
		f.Stages[i] = domain.StageCount{Name: st.name, Total: st.value(totals)}
		if i == 0 {
			continue
		}
		prev := f.Stages[i-1]
		f.Rates = append(f.Rates, domain.StageRate{
			From: prev.Name,
			To:   st.name,
			Rate: percent(f.Stages[i].Total, prev.Total),
		})
	}

	first, last := f.Stages[0], f.Stages[len(f.Stages)-1]
	f.OverallRate = percent(last.Total, first.Total)
	return f
}

// StageRate returns the rate between two named stages, or 0 when either is
// unknown or the denominator is 0.
func StageRate(f domain.Funnel, from, to string) float64 {
	return percent(f.Stage(to), f.Stage(from))
}
