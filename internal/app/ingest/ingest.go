// Package ingest normalizes raw tracker rows and stores them.
//
// Rows arrive as loosely typed maps (decoded from JSON, YAML or an HTTP
// body). The configured FieldMapping turns them into typed records; rows that
// cannot be dated are skipped and reported, malformed counter cells read as
// zero and are counted.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/pulse-metrics/pulse/internal/domain"
	"github.com/pulse-metrics/pulse/internal/infra/metrics"
)

// RowError describes a row that was skipped.
type RowError struct {
	Row int   `json:"row"` // 0-based position in the input
	Err error `json:"-"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e RowError) Unwrap() error { return e.Err }

// Result is the outcome of one import.
type Result struct {
	Batch  domain.ImportBatch `json:"batch"`
	Errors []RowError         `json:"-"`
}

// Messages returns the row errors as strings, for JSON responses.
func (r Result) Messages() []string {
	out := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		out[i] = e.Error()
	}
	return out
}

// Importer writes normalized rows to a sink.
type Importer struct {
	mapping domain.FieldMapping
	sink    domain.RecordSink
	now     func() time.Time

	// OnWrite runs after every import that stored at least one row.
	OnWrite func()
}

// New validates the mapping once and returns an importer bound to sink.
func New(mapping domain.FieldMapping, sink domain.RecordSink) (*Importer, error) {
	if err := mapping.Validate(); err != nil {
		return nil, err
	}
	return &Importer{mapping: mapping, sink: sink, now: time.Now}, nil
}

// ImportDaily normalizes and upserts daily rows in a single batch.
func (im *Importer) ImportDaily(ctx context.Context, source string, rows []map[string]any) (Result, error) {
	res := im.newResult(domain.ImportDaily, source)

	recs := make([]domain.DailyRecord, 0, len(rows))
	for i, row := range rows {
		rec, malformed, err := im.mapping.ParseDailyRow(row)
		if err != nil {
			res.skip(i, err)
			continue
		}
		for _, f := range malformed {
			metrics.MalformedCells.WithLabelValues(string(f)).Inc()
			log.WithFields(log.Fields{
				"batch": res.Batch.ID,
				"row":   i,
				"field": f,
				"date":  rec.Date.Format("2006-01-02"),
			}).Debug("malformed cell treated as zero")
		}
		res.Batch.Malformed += len(malformed)
		recs = append(recs, rec)
	}

	if len(recs) > 0 {
		if err := im.sink.UpsertDailyRecords(ctx, res.Batch.ID, recs); err != nil {
			return res, fmt.Errorf("store daily records: %w", err)
		}
	}
	res.Batch.Rows = len(recs)
	return im.finish(ctx, res)
}

// ImportHabits stores completion marks. When habits is empty every column
// other than the date is a habit.
func (im *Importer) ImportHabits(ctx context.Context, source string, rows []map[string]any, habits []string) (Result, error) {
	res := im.newResult(domain.ImportHabits, source)

	for i, row := range rows {
		date, marks, err := im.mapping.ParseHabitRow(row, habits)
		if err != nil {
			res.skip(i, err)
			continue
		}
		if err := im.sink.RegisterHabits(ctx, habitOrder(habits, marks)); err != nil {
			return res, fmt.Errorf("register habits: %w", err)
		}
		if err := im.sink.MarkHabits(ctx, res.Batch.ID, date, marks); err != nil {
			return res, fmt.Errorf("store habit marks: %w", err)
		}
		res.Batch.Rows++
	}
	return im.finish(ctx, res)
}

// habitOrder is the column order for a row: the caller's list, or the
// inferred columns by name.
func habitOrder(habits []string, marks map[string]bool) []string {
	if len(habits) > 0 {
		return habits
	}
	cols := make([]string, 0, len(marks))
	for h := range marks {
		cols = append(cols, h)
	}
	sort.Strings(cols)
	return cols
}

func (im *Importer) newResult(kind domain.ImportKind, source string) Result {
	return Result{Batch: domain.ImportBatch{
		ID:        uuid.New().String(),
		Kind:      kind,
		Source:    source,
		CreatedAt: im.now(),
	}}
}

func (r *Result) skip(row int, err error) {
	r.Batch.Skipped++
	r.Errors = append(r.Errors, RowError{Row: row, Err: err})
	log.WithFields(log.Fields{
		"batch": r.Batch.ID,
		"row":   row,
	}).WithError(err).Warn("row skipped")
}

func (im *Importer) finish(ctx context.Context, res Result) (Result, error) {
	b := res.Batch
	if err := im.sink.RecordImport(ctx, b); err != nil {
		return res, err
	}

	metrics.RecordsImported.WithLabelValues(string(b.Kind)).Add(float64(b.Rows))
	metrics.RowsSkipped.WithLabelValues(string(b.Kind)).Add(float64(b.Skipped))

	log.WithFields(log.Fields{
		"batch":     b.ID,
		"kind":      b.Kind,
		"source":    b.Source,
		"rows":      b.Rows,
		"skipped":   b.Skipped,
		"malformed": b.Malformed,
	}).Info("import complete")

	if b.Rows > 0 && im.OnWrite != nil {
		im.OnWrite()
	}
	return res, nil
}

// ─── Decoding ───────────────────────────────────────────────────────────────

// ErrNotRows is returned when a document is not a list of mappings.
var ErrNotRows = errors.New("document is not a list of rows")

// DecodeRows reads a YAML or JSON document holding a list of rows. A mapping
// with a "rows" key holding the list is accepted too.
func DecodeRows(r io.Reader) ([]map[string]any, error) {
	var doc any
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode rows: %w", err)
	}

	if m, ok := doc.(map[string]any); ok {
		doc = m["rows"]
	}
	list, ok := doc.([]any)
	if !ok {
		return nil, ErrNotRows
	}

	rows := make([]map[string]any, 0, len(list))
	for i, item := range list {
		row, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: item %d is %T", ErrNotRows, i, item)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ReadFile decodes the rows stored in path.
func ReadFile(path string) ([]map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeRows(f)
}
