package engagement

import (
	"fmt"

	"github.com/pulse-metrics/pulse/internal/domain"
)

// ProjectionParams configures a projection. ElapsedDays comes from the
// caller; the engine never reads a clock.
type ProjectionParams struct {
	ElapsedDays  int
	WindowLength int
	GoalTotal    int
	TargetField  domain.Field
}

// Validate rejects parameters that indicate an upstream mistake.
func (p ProjectionParams) Validate() error {
	if p.WindowLength <= 0 {
		return fmt.Errorf("%w: window length must be positive, got %d", domain.ErrInvalidConfig, p.WindowLength)
	}
	if p.GoalTotal < 0 {
		return fmt.Errorf("%w: goal total must not be negative, got %d", domain.ErrInvalidConfig, p.GoalTotal)
	}
	if p.ElapsedDays < 0 {
		return fmt.Errorf("%w: elapsed days must not be negative, got %d", domain.ErrInvalidConfig, p.ElapsedDays)
	}
	if _, err := domain.ParseField(string(p.TargetField)); err != nil {
		return err
	}
	return nil
}

// Project extrapolates the daily average of the target field to the whole
// window and measures the distance to the goal.
func Project(records []domain.DailyRecord, p ProjectionParams) (domain.Projection, error) {
	if err := p.Validate(); err != nil {
		return domain.Projection{}, err
	}

	return project(accumulate(records, p.TargetField), p), nil
}

func project(accumulated int, p ProjectionParams) domain.Projection {
	out := domain.Projection{
		TargetField:   p.TargetField,
		Accumulated:   accumulated,
		ElapsedDays:   p.ElapsedDays,
		RemainingDays: p.WindowLength - p.ElapsedDays,
	}

	// A zero-day challenge has no meaningful average.
	if p.ElapsedDays > 0 {
		out.AvgDaily = float64(accumulated) / float64(p.ElapsedDays)
	}
	out.ProjectedTotal = out.AvgDaily * float64(p.WindowLength)
	out.GapToGoal = float64(p.GoalTotal) - out.ProjectedTotal

	shortfall := float64(max(p.GoalTotal-accumulated, 0))
	if out.RemainingDays > 0 {
		out.RequiredDailyToCloseGap = shortfall / float64(out.RemainingDays)
	} else {
		// Window is over: report what is still missing.
		out.RequiredDailyToCloseGap = shortfall
	}

	if p.GoalTotal > 0 {
		out.SuccessProbability = clamp(out.ProjectedTotal/float64(p.GoalTotal)*100, 0, 100)
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}
