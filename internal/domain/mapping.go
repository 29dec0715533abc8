package domain

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// FieldMapping maps the canonical DailyRecord fields onto source column
// names. Tracker sheets name the same metric differently across revisions
// (Messages_Sent, messages_sent, Initial_Messages_Sent); the mapping is
// chosen once at the boundary so the engine only sees the typed schema.
// An empty counter column means the source does not track that field.
type FieldMapping struct {
	Date                string `toml:"date" json:"date"`
	ConnectionsSent     string `toml:"connections_sent" json:"connections_sent"`
	ConnectionsAccepted string `toml:"connections_accepted" json:"connections_accepted"`
	MessagesSent        string `toml:"messages_sent" json:"messages_sent"`
	InterestedResponses string `toml:"interested_responses" json:"interested_responses"`
	LinksSent           string `toml:"links_sent" json:"links_sent"`
	FollowUp1           string `toml:"follow_up_1" json:"follow_up_1"`
	FollowUp2           string `toml:"follow_up_2" json:"follow_up_2"`
	FollowUp3           string `toml:"follow_up_3" json:"follow_up_3"`
	FollowUp4           string `toml:"follow_up_4" json:"follow_up_4"`
	Conversions         string `toml:"conversions" json:"conversions"`
	Notes               string `toml:"notes" json:"notes"`
}

// DefaultFieldMapping uses the canonical names as column names.
func DefaultFieldMapping() FieldMapping {
	return FieldMapping{
		Date:                "date",
		ConnectionsSent:     string(FieldConnectionsSent),
		ConnectionsAccepted: string(FieldConnectionsAccepted),
		MessagesSent:        string(FieldMessagesSent),
		InterestedResponses: string(FieldInterestedResponses),
		LinksSent:           string(FieldLinksSent),
		FollowUp1:           string(FieldFollowUp1),
		FollowUp2:           string(FieldFollowUp2),
		FollowUp3:           string(FieldFollowUp3),
		FollowUp4:           string(FieldFollowUp4),
		Conversions:         string(FieldConversions),
		Notes:               "notes",
	}
}

// Column returns the source column for f.
func (m FieldMapping) Column(f Field) string {
	switch f {
	case FieldConnectionsSent:
		return m.ConnectionsSent
	case FieldConnectionsAccepted:
		return m.ConnectionsAccepted
	case FieldMessagesSent:
		return m.MessagesSent
	case FieldInterestedResponses:
		return m.InterestedResponses
	case FieldLinksSent:
		return m.LinksSent
	case FieldFollowUp1:
		return m.FollowUp1
	case FieldFollowUp2:
		return m.FollowUp2
	case FieldFollowUp3:
		return m.FollowUp3
	case FieldFollowUp4:
		return m.FollowUp4
	case FieldConversions:
		return m.Conversions
	}
	return ""
}

// Validate checks that a date column is set and that no two fields read
// the same column.
func (m FieldMapping) Validate() error {
	if strings.TrimSpace(m.Date) == "" {
		return fmt.Errorf("%w: date column is required", ErrInvalidMapping)
	}
	seen := map[string]string{strings.ToLower(m.Date): "date"}
	for _, f := range CounterFields() {
		col := strings.ToLower(strings.TrimSpace(m.Column(f)))
		if col == "" {
			continue
		}
		if prev, ok := seen[col]; ok {
			return fmt.Errorf("%w: column %q mapped to both %s and %s", ErrInvalidMapping, m.Column(f), prev, f)
		}
		seen[col] = string(f)
	}
	return nil
}

// ParseDailyRow converts a raw row into a DailyRecord. Missing counters read
// as 0; counters that are present but unparseable also read as 0 and are
// reported in the malformed slice. A row without a usable date cannot be
// keyed and fails with ErrInvalidDate.
func (m FieldMapping) ParseDailyRow(row map[string]any) (rec DailyRecord, malformed []Field, err error) {
	raw, ok := lookup(row, m.Date)
	if !ok {
		return rec, nil, fmt.Errorf("%w: column %q missing", ErrInvalidDate, m.Date)
	}
	rec.Date, err = ParseDate(raw)
	if err != nil {
		return rec, nil, err
	}

	for _, f := range CounterFields() {
		col := m.Column(f)
		if col == "" {
			continue
		}
		v, ok := lookup(row, col)
		if !ok {
			continue
		}
		n, valid := toCount(v)
		if !valid {
			malformed = append(malformed, f)
		}
		rec.set(f, n)
	}

	if m.Notes != "" {
		if v, ok := lookup(row, m.Notes); ok && v != nil {
			rec.Notes = fmt.Sprint(v)
		}
	}
	return rec, malformed, nil
}

// ParseHabitRow reads one date row of a habit sheet. Every column other than
// the date column is a habit; when habits is non-empty only those columns are
// read, and absent ones read as not completed.
func (m FieldMapping) ParseHabitRow(row map[string]any, habits []string) (time.Time, map[string]bool, error) {
	raw, ok := lookup(row, m.Date)
	if !ok {
		return time.Time{}, nil, fmt.Errorf("%w: column %q missing", ErrInvalidDate, m.Date)
	}
	date, err := ParseDate(raw)
	if err != nil {
		return time.Time{}, nil, err
	}

	out := make(map[string]bool)
	if len(habits) > 0 {
		for _, h := range habits {
			v, _ := lookup(row, h)
			out[h] = truthy(v)
		}
		return date, out, nil
	}

	cols := make([]string, 0, len(row))
	for k := range row {
		if strings.EqualFold(k, m.Date) || (m.Notes != "" && strings.EqualFold(k, m.Notes)) {
			continue
		}
		cols = append(cols, k)
	}
	sort.Strings(cols)
	for _, k := range cols {
		out[k] = truthy(row[k])
	}
	return date, out, nil
}

// dateLayouts are the formats tracker sheets have used for the date column.
var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"01/02/2006 15:04:05",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// ParseDate accepts a time.Time or a string in one of the known layouts and
// returns the calendar day in UTC.
func ParseDate(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			break
		}
		return DayOf(t), nil
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range dateLayouts {
			if d, err := time.Parse(layout, s); err == nil {
				return DayOf(d), nil
			}
		}
	}
	return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidDate, v)
}

// lookup finds col in row by exact name, then case-insensitively.
func lookup(row map[string]any, col string) (any, bool) {
	if v, ok := row[col]; ok {
		return v, true
	}
	for k, v := range row {
		if strings.EqualFold(k, col) {
			return v, true
		}
	}
	return nil, false
}

// maxCount is the largest counter a cell may hold. Anything above it is a
// typo or a pasted id, not a daily count.
const maxCount = math.MaxInt32

// toCount coerces a cell to a non-negative integer. valid is false when the
// cell held something that is not a number.
func toCount(v any) (n int, valid bool) {
	var f float64
	switch x := v.(type) {
	case nil:
		return 0, true
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint64:
		f = float64(x)
	case float64:
		f = x
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, true
		}
		p, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = p
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f > maxCount {
		return 0, false
	}
	if f < 0 {
		return 0, true
	}
	return int(f), true
}

func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case int:
		return x != 0
	case int64:
		return x != 0
	case float64:
		return x != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "yes", "y", "1", "x", "done", "✓", "✅":
			return true
		}
	}
	return false
}
