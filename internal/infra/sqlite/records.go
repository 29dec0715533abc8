package sqlite

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pulse-metrics/pulse/internal/domain"
)

// Compile-time checks.
var (
	_ domain.RecordSource = (*DB)(nil)
	_ domain.RecordSink   = (*DB)(nil)
)

// ─── Daily Records ──────────────────────────────────────────────────────────

const dailyColumns = `date, connections_sent, connections_accepted, messages_sent,
	interested_responses, links_sent, follow_up_1, follow_up_2, follow_up_3,
	follow_up_4, conversions, notes`

// UpsertDailyRecords inserts or replaces records keyed by date, atomically.
// A date imported twice keeps the values of the later import.
func (d *DB) UpsertDailyRecords(ctx context.Context, batchID string, recs []domain.DailyRecord) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO daily_records (`+dailyColumns+`, batch_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			connections_sent     = excluded.connections_sent,
			connections_accepted = excluded.connections_accepted,
			messages_sent        = excluded.messages_sent,
			interested_responses = excluded.interested_responses,
			links_sent           = excluded.links_sent,
			follow_up_1          = excluded.follow_up_1,
			follow_up_2          = excluded.follow_up_2,
			follow_up_3          = excluded.follow_up_3,
			follow_up_4          = excluded.follow_up_4,
			conversions          = excluded.conversions,
			notes                = excluded.notes,
			batch_id             = excluded.batch_id,
			updated_at           = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, r := range recs {
		_, err := stmt.ExecContext(ctx,
			formatDate(r.Date), r.ConnectionsSent, r.ConnectionsAccepted, r.MessagesSent,
			r.InterestedResponses, r.LinksSent,
			r.FollowUps[0], r.FollowUps[1], r.FollowUps[2], r.FollowUps[3],
			r.Conversions, r.Notes, nullableString(batchID), now,
		)
		if err != nil {
			return fmt.Errorf("upsert %s: %w", formatDate(r.Date), err)
		}
	}
	return tx.Commit()
}

// DailyRecords returns every stored record in date order.
func (d *DB) DailyRecords(ctx context.Context) ([]domain.DailyRecord, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT `+dailyColumns+` FROM daily_records ORDER BY date ASC`)
	if err != nil {
		return nil, fmt.Errorf("query daily records: %w", err)
	}
	defer rows.Close()

	var out []domain.DailyRecord
	for rows.Next() {
		r, err := scanDailyRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanDailyRecord(s scanner) (domain.DailyRecord, error) {
	var (
		r    domain.DailyRecord
		date string
	)
	err := s.Scan(&date, &r.ConnectionsSent, &r.ConnectionsAccepted, &r.MessagesSent,
		&r.InterestedResponses, &r.LinksSent,
		&r.FollowUps[0], &r.FollowUps[1], &r.FollowUps[2], &r.FollowUps[3],
		&r.Conversions, &r.Notes)
	if err != nil {
		return r, fmt.Errorf("scan daily record: %w", err)
	}
	if r.Date, err = parseDate(date); err != nil {
		return r, fmt.Errorf("stored date %q: %w", date, err)
	}
	return r, nil
}

// ─── Habits ─────────────────────────────────────────────────────────────────

// MarkHabits records completion marks for one date. Habits seen for the
// first time are appended to the column list in name order; call
// RegisterHabits first to fix a different order.
func (d *DB) MarkHabits(ctx context.Context, batchID string, date time.Time, marks map[string]bool) error {
	if len(marks) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	names := make([]string, 0, len(marks))
	for h := range marks {
		names = append(names, h)
	}
	sort.Strings(names)

	day := formatDate(date)
	for _, habit := range names {
		done := marks[habit]
		_, err := tx.ExecContext(ctx, `
			INSERT INTO habits (name, position)
			VALUES (?, (SELECT COALESCE(MAX(position), -1) + 1 FROM habits))
			ON CONFLICT(name) DO NOTHING`, habit)
		if err != nil {
			return fmt.Errorf("register habit %q: %w", habit, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO habit_marks (date, habit, done, batch_id)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(date, habit) DO UPDATE SET
				done = excluded.done, batch_id = excluded.batch_id`,
			day, habit, done, nullableString(batchID))
		if err != nil {
			return fmt.Errorf("mark %q on %s: %w", habit, day, err)
		}
	}
	return tx.Commit()
}

// RegisterHabits declares habit columns in order without marking any day.
func (d *DB) RegisterHabits(ctx context.Context, habits []string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, h := range habits {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO habits (name, position)
			VALUES (?, (SELECT COALESCE(MAX(position), -1) + 1 FROM habits))
			ON CONFLICT(name) DO NOTHING`, h)
		if err != nil {
			return fmt.Errorf("register habit %q: %w", h, err)
		}
	}
	return tx.Commit()
}

// HabitTable rebuilds the completion table from stored marks.
func (d *DB) HabitTable(ctx context.Context) (domain.HabitTable, error) {
	names, err := d.habitNames(ctx)
	if err != nil {
		return domain.HabitTable{}, err
	}
	tbl := domain.NewHabitTable(names...)

	rows, err := d.db.QueryContext(ctx, `
		SELECT m.date, m.habit, m.done
		FROM habit_marks m JOIN habits h ON h.name = m.habit
		ORDER BY m.date ASC, h.position ASC`)
	if err != nil {
		return tbl, fmt.Errorf("query habit marks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			date, habit string
			done        bool
		)
		if err := rows.Scan(&date, &habit, &done); err != nil {
			return tbl, fmt.Errorf("scan habit mark: %w", err)
		}
		day, err := parseDate(date)
		if err != nil {
			return tbl, fmt.Errorf("stored date %q: %w", date, err)
		}
		tbl = tbl.Mark(day, habit, done)
	}
	return tbl, rows.Err()
}

func (d *DB) habitNames(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT name FROM habits ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("query habits: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// ─── Import Log ─────────────────────────────────────────────────────────────

// RecordImport appends a batch to the import log.
func (d *DB) RecordImport(ctx context.Context, b domain.ImportBatch) error {
	created := b.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO import_batches (id, kind, source, row_count, skipped, malformed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, string(b.Kind), b.Source, b.Rows, b.Skipped, b.Malformed, created.Unix(),
	)
	if err != nil {
		return fmt.Errorf("record import %s: %w", b.ID, err)
	}
	return nil
}

// ListImports returns the most recent batches, newest first.
func (d *DB) ListImports(ctx context.Context, limit int) ([]domain.ImportBatch, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, kind, source, row_count, skipped, malformed, created_at
		FROM import_batches ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query imports: %w", err)
	}
	defer rows.Close()

	var out []domain.ImportBatch
	for rows.Next() {
		var (
			b       domain.ImportBatch
			kind    string
			created int64
		)
		if err := rows.Scan(&b.ID, &kind, &b.Source, &b.Rows, &b.Skipped, &b.Malformed, &created); err != nil {
			return nil, fmt.Errorf("scan import: %w", err)
		}
		b.Kind = domain.ImportKind(kind)
		b.CreatedAt = time.Unix(created, 0)
		out = append(out, b)
	}
	return out, rows.Err()
}

// LastImport returns the newest batch, or false when nothing was imported.
func (d *DB) LastImport(ctx context.Context) (domain.ImportBatch, bool, error) {
	list, err := d.ListImports(ctx, 1)
	if err != nil {
		return domain.ImportBatch{}, false, err
	}
	if len(list) == 0 {
		return domain.ImportBatch{}, false, nil
	}
	return list[0], true, nil
}
