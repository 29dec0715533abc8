// Package domain holds the typed schema shared by the metrics engine, the
// record store adapters, and the API layer. Domain types are pure: no
// infrastructure dependency.
package domain

import (
	"fmt"
	"sort"
	"time"
)

// ─── Fields ─────────────────────────────────────────────────────────────────

// Field names one counter of a DailyRecord. The string value is the canonical
// snake_case column name.
type Field string

const (
	FieldConnectionsSent     Field = "connections_sent"
	FieldConnectionsAccepted Field = "connections_accepted"
	FieldMessagesSent        Field = "messages_sent"
	FieldInterestedResponses Field = "interested_responses"
	FieldLinksSent           Field = "links_sent"
	FieldFollowUp1           Field = "follow_up_1"
	FieldFollowUp2           Field = "follow_up_2"
	FieldFollowUp3           Field = "follow_up_3"
	FieldFollowUp4           Field = "follow_up_4"
	FieldConversions         Field = "conversions"
)

// CounterFields lists every numeric field in canonical order.
func CounterFields() []Field {
	return []Field{
		FieldConnectionsSent,
		FieldConnectionsAccepted,
		FieldMessagesSent,
		FieldInterestedResponses,
		FieldLinksSent,
		FieldFollowUp1,
		FieldFollowUp2,
		FieldFollowUp3,
		FieldFollowUp4,
		FieldConversions,
	}
}

// ParseField resolves a canonical field name.
func ParseField(s string) (Field, error) {
	for _, f := range CounterFields() {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: unknown field %q", ErrInvalidConfig, s)
}

// ─── Daily Records ──────────────────────────────────────────────────────────

// DailyRecord is one day of outreach activity. Counters are never negative.
type DailyRecord struct {
	Date                time.Time `json:"date"`
	ConnectionsSent     int       `json:"connections_sent"`
	ConnectionsAccepted int       `json:"connections_accepted"`
	MessagesSent        int       `json:"messages_sent"`
	InterestedResponses int       `json:"interested_responses"`
	LinksSent           int       `json:"links_sent"`
	FollowUps           [4]int    `json:"follow_ups"`
	Conversions         int       `json:"conversions"`
	Notes               string    `json:"notes,omitempty"`
}

// Value returns the counter for f, or 0 for an unknown field.
func (r DailyRecord) Value(f Field) int {
	switch f {
	case FieldConnectionsSent:
		return r.ConnectionsSent
	case FieldConnectionsAccepted:
		return r.ConnectionsAccepted
	case FieldMessagesSent:
		return r.MessagesSent
	case FieldInterestedResponses:
		return r.InterestedResponses
	case FieldLinksSent:
		return r.LinksSent
	case FieldFollowUp1:
		return r.FollowUps[0]
	case FieldFollowUp2:
		return r.FollowUps[1]
	case FieldFollowUp3:
		return r.FollowUps[2]
	case FieldFollowUp4:
		return r.FollowUps[3]
	case FieldConversions:
		return r.Conversions
	}
	return 0
}

// set assigns a counter, clamping negatives to 0.
func (r *DailyRecord) set(f Field, v int) {
	if v < 0 {
		v = 0
	}
	switch f {
	case FieldConnectionsSent:
		r.ConnectionsSent = v
	case FieldConnectionsAccepted:
		r.ConnectionsAccepted = v
	case FieldMessagesSent:
		r.MessagesSent = v
	case FieldInterestedResponses:
		r.InterestedResponses = v
	case FieldLinksSent:
		r.LinksSent = v
	case FieldFollowUp1:
		r.FollowUps[0] = v
	case FieldFollowUp2:
		r.FollowUps[1] = v
	case FieldFollowUp3:
		r.FollowUps[2] = v
	case FieldFollowUp4:
		r.FollowUps[3] = v
	case FieldConversions:
		r.Conversions = v
	}
}

// TotalFollowUps sums the four follow-up counters.
func (r DailyRecord) TotalFollowUps() int {
	return r.FollowUps[0] + r.FollowUps[1] + r.FollowUps[2] + r.FollowUps[3]
}

// DayOf truncates t to its calendar date in UTC.
func DayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ─── Habit Table ────────────────────────────────────────────────────────────

// HabitTable is a date-indexed boolean table. Columns are habit names in a
// stable order; a cell that was never marked reads as not completed.
type HabitTable struct {
	habits []string
	cells  map[string]map[time.Time]bool
	first  time.Time
	last   time.Time
}

// NewHabitTable creates an empty table with the given habit columns.
// Duplicate names collapse to their first occurrence.
func NewHabitTable(habits ...string) HabitTable {
	t := HabitTable{cells: make(map[string]map[time.Time]bool)}
	for _, h := range habits {
		t.addHabit(h)
	}
	return t
}

func (t *HabitTable) addHabit(h string) {
	if t.cells == nil {
		t.cells = make(map[string]map[time.Time]bool)
	}
	if _, ok := t.cells[h]; ok {
		return
	}
	t.habits = append(t.habits, h)
	t.cells[h] = make(map[time.Time]bool)
}

// Mark records whether habit was completed on date. Unknown habits are
// appended as new columns. Returns the updated table; the receiver's column
// list is not shared with the result.
func (t HabitTable) Mark(date time.Time, habit string, done bool) HabitTable {
	out := t.clone()
	out.addHabit(habit)
	day := DayOf(date)
	out.cells[habit][day] = done
	if out.first.IsZero() || day.Before(out.first) {
		out.first = day
	}
	if out.last.IsZero() || day.After(out.last) {
		out.last = day
	}
	return out
}

func (t HabitTable) clone() HabitTable {
	out := HabitTable{
		habits: append([]string(nil), t.habits...),
		cells:  make(map[string]map[time.Time]bool, len(t.cells)),
		first:  t.first,
		last:   t.last,
	}
	for h, days := range t.cells {
		c := make(map[time.Time]bool, len(days))
		for d, v := range days {
			c[d] = v
		}
		out.cells[h] = c
	}
	return out
}

// Habits returns the habit columns in order.
func (t HabitTable) Habits() []string {
	return append([]string(nil), t.habits...)
}

// Dates returns every calendar day from the first to the last marked date.
func (t HabitTable) Dates() []time.Time {
	if t.first.IsZero() {
		return nil
	}
	var out []time.Time
	for d := t.first; !d.After(t.last); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// Through extends the date axis to day, so days after the last mark read as
// not completed. A table without marks, or one already reaching day, is
// returned unchanged.
func (t HabitTable) Through(day time.Time) HabitTable {
	day = DayOf(day)
	if t.first.IsZero() || !day.After(t.last) {
		return t
	}
	out := t.clone()
	out.last = day
	return out
}

// Series returns the dense completion series for habit over Dates().
func (t HabitTable) Series(habit string) []bool {
	dates := t.Dates()
	out := make([]bool, len(dates))
	days := t.cells[habit]
	for i, d := range dates {
		out[i] = days[d]
	}
	return out
}

// ─── Record Store ───────────────────────────────────────────────────────────

// RecordStore is an immutable, date-ordered snapshot of daily records and
// habit completions.
type RecordStore struct {
	daily  []DailyRecord
	habits HabitTable
}

// NewRecordStore sorts records by date. Records that share a date collapse
// to the last one supplied, mirroring an upsert keyed on date.
func NewRecordStore(daily []DailyRecord, habits HabitTable) RecordStore {
	byDay := make(map[time.Time]int, len(daily))
	var out []DailyRecord
	for _, r := range daily {
		r.Date = DayOf(r.Date)
		if i, ok := byDay[r.Date]; ok {
			out[i] = r
			continue
		}
		byDay[r.Date] = len(out)
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return RecordStore{daily: out, habits: habits.clone()}
}

// Daily returns a copy of the records in date order.
func (s RecordStore) Daily() []DailyRecord {
	return append([]DailyRecord(nil), s.daily...)
}

// Habits returns the habit table.
func (s RecordStore) Habits() HabitTable {
	return s.habits
}

// Len returns the number of daily records.
func (s RecordStore) Len() int {
	return len(s.daily)
}
