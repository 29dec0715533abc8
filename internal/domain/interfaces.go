package domain

import (
	"context"
	"time"
)

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// RecordSource supplies the raw material for a snapshot. The engine never
// calls it; the report service loads a RecordStore through it.
type RecordSource interface {
	// DailyRecords returns every stored record in date order.
	DailyRecords(ctx context.Context) ([]DailyRecord, error)

	// HabitTable returns the habit completion table.
	HabitTable(ctx context.Context) (HabitTable, error)
}

// RecordSink accepts normalized records from an import.
type RecordSink interface {
	// RegisterHabits appends unseen habit columns in the given order.
	RegisterHabits(ctx context.Context, habits []string) error
	UpsertDailyRecords(ctx context.Context, batchID string, recs []DailyRecord) error
	MarkHabits(ctx context.Context, batchID string, date time.Time, marks map[string]bool) error

	// RecordImport appends a batch to the import log.
	RecordImport(ctx context.Context, b ImportBatch) error
}

// Clock abstracts the wall clock for the services that need "today".
type Clock interface {
	Now() time.Time
}

// SystemClock is the real wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }
