// Package report loads stored records and turns them into metric snapshots.
//
// The engine is pure and never reads a clock or storage. This service is the
// impure shell around it: it loads a RecordStore from a RecordSource, derives
// the elapsed challenge days from a Clock, applies per-request overrides and
// serves the result through the snapshot cache.
package report

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/pulse-metrics/pulse/internal/app/engagement"
	"github.com/pulse-metrics/pulse/internal/app/snapcache"
	"github.com/pulse-metrics/pulse/internal/domain"
	"github.com/pulse-metrics/pulse/internal/infra/metrics"
)

// Challenge is the configured challenge a service reports on.
type Challenge struct {
	// StartDate is day 1. Zero means the date of the first stored record.
	StartDate   time.Time
	WindowDays  int
	GoalTotal   int
	TargetField domain.Field
	DailyGoals  map[domain.Field]int
}

// Overrides replace configured values for a single request. Nil fields keep
// the configured value.
type Overrides struct {
	GoalTotal   *int
	WindowDays  *int
	ElapsedDays *int
	TargetField string
}

// Service computes snapshots from stored records.
type Service struct {
	src       domain.RecordSource
	cache     *snapcache.Cache
	clock     domain.Clock
	challenge Challenge
}

// NewService creates a report service. A nil cache computes every request;
// a nil clock uses the system clock.
func NewService(src domain.RecordSource, cache *snapcache.Cache, clock domain.Clock, ch Challenge) *Service {
	if cache == nil {
		cache = snapcache.New(0, 0)
	}
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &Service{src: src, cache: cache, clock: clock, challenge: ch}
}

// Challenge returns the configured challenge.
func (s *Service) Challenge() Challenge { return s.challenge }

// Load reads every stored record into an immutable store.
func (s *Service) Load(ctx context.Context) (domain.RecordStore, error) {
	daily, err := s.src.DailyRecords(ctx)
	if err != nil {
		return domain.RecordStore{}, fmt.Errorf("load daily records: %w", err)
	}
	habits, err := s.src.HabitTable(ctx)
	if err != nil {
		return domain.RecordStore{}, fmt.Errorf("load habits: %w", err)
	}
	// Unmarked days up to yesterday count as misses. Today stays open until
	// it is marked.
	yesterday := domain.DayOf(s.clock.Now()).AddDate(0, 0, -1)
	return domain.NewRecordStore(daily, habits.Through(yesterday)), nil
}

// Snapshot loads the records and computes the snapshot for the configured
// challenge with the given overrides applied.
func (s *Service) Snapshot(ctx context.Context, o Overrides) (domain.MetricsSnapshot, error) {
	began := time.Now()

	store, err := s.Load(ctx)
	if err != nil {
		metrics.SnapshotsComputed.WithLabelValues("error").Inc()
		return domain.MetricsSnapshot{}, err
	}

	cfg, err := s.Config(store, o)
	if err != nil {
		metrics.SnapshotsComputed.WithLabelValues("invalid").Inc()
		return domain.MetricsSnapshot{}, err
	}

	snap, err := s.cache.Snapshot(store, cfg)
	if err != nil {
		metrics.SnapshotsComputed.WithLabelValues("invalid").Inc()
		return domain.MetricsSnapshot{}, err
	}

	metrics.SnapshotsComputed.WithLabelValues("ok").Inc()
	metrics.SnapshotLatency.Observe(time.Since(began).Seconds())
	metrics.AchievementsUnlocked.Set(float64(len(snap.Achievements)))
	metrics.SuccessProbability.Set(snap.Projection.SuccessProbability)

	log.WithFields(log.Fields{
		"records":      store.Len(),
		"elapsed_days": cfg.ElapsedDays,
		"achievements": len(snap.Achievements),
	}).Debug("snapshot computed")

	return snap, nil
}

// Config resolves the engine configuration for store. Elapsed days come from
// the clock unless overridden.
func (s *Service) Config(store domain.RecordStore, o Overrides) (engagement.ChallengeConfig, error) {
	ch := s.challenge
	if o.GoalTotal != nil {
		ch.GoalTotal = *o.GoalTotal
	}
	if o.WindowDays != nil {
		ch.WindowDays = *o.WindowDays
	}
	if o.TargetField != "" {
		f, err := domain.ParseField(o.TargetField)
		if err != nil {
			return engagement.ChallengeConfig{}, err
		}
		ch.TargetField = f
	}

	now := s.clock.Now()
	cfg := engagement.ChallengeConfig{
		WindowLength: ch.WindowDays,
		GoalTotal:    ch.GoalTotal,
		TargetField:  ch.TargetField,
		DailyGoals:   ch.DailyGoals,
		Today:        domain.DayOf(now),
	}

	if o.ElapsedDays != nil {
		cfg.ElapsedDays = *o.ElapsedDays
	} else {
		cfg.ElapsedDays = s.elapsed(store, now, ch.WindowDays)
	}

	if err := cfg.Validate(); err != nil {
		return engagement.ChallengeConfig{}, err
	}
	return cfg, nil
}

// elapsed counts challenge days up to and including today. Without a start
// date and without records nothing has elapsed yet.
func (s *Service) elapsed(store domain.RecordStore, now time.Time, window int) int {
	start := s.challenge.StartDate
	if start.IsZero() {
		daily := store.Daily()
		if len(daily) == 0 {
			return 0
		}
		start = daily[0].Date
	}
	if domain.DayOf(now).Before(domain.DayOf(start)) {
		return 0
	}
	return engagement.ChallengeDay(start, now, window)
}

// ChallengeDay returns today's 1-based day number in the challenge.
func (s *Service) ChallengeDay(ctx context.Context) (int, error) {
	store, err := s.Load(ctx)
	if err != nil {
		return 0, err
	}
	return s.elapsed(store, s.clock.Now(), s.challenge.WindowDays), nil
}

// Invalidate drops cached snapshots after the records changed.
func (s *Service) Invalidate() {
	s.cache.Purge()
}
