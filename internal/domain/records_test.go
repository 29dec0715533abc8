package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(n int) time.Time {
	return time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

// ─── Record Store Tests ─────────────────────────────────────────────────────

func TestRecordStore_SortsByDate(t *testing.T) {
	store := NewRecordStore([]DailyRecord{
		{Date: day(2), ConnectionsSent: 3},
		{Date: day(0), ConnectionsSent: 1},
		{Date: day(1), ConnectionsSent: 2},
	}, HabitTable{})

	daily := store.Daily()
	require.Len(t, daily, 3)
	for i, r := range daily {
		assert.Equal(t, day(i), r.Date)
		assert.Equal(t, i+1, r.ConnectionsSent)
	}
}

func TestRecordStore_DuplicateDateLastWins(t *testing.T) {
	store := NewRecordStore([]DailyRecord{
		{Date: day(0), ConnectionsSent: 1},
		{Date: day(0).Add(15 * time.Hour), ConnectionsSent: 9},
	}, HabitTable{})

	require.Equal(t, 1, store.Len())
	assert.Equal(t, 9, store.Daily()[0].ConnectionsSent)
}

func TestRecordStore_DailyIsCopy(t *testing.T) {
	store := NewRecordStore([]DailyRecord{{Date: day(0), ConnectionsSent: 1}}, HabitTable{})
	d := store.Daily()
	d[0].ConnectionsSent = 100
	assert.Equal(t, 1, store.Daily()[0].ConnectionsSent)
}

func TestDailyRecord_Value(t *testing.T) {
	r := DailyRecord{
		ConnectionsSent: 1, ConnectionsAccepted: 2, MessagesSent: 3,
		InterestedResponses: 4, LinksSent: 5, FollowUps: [4]int{6, 7, 8, 9},
		Conversions: 10,
	}
	for i, f := range CounterFields() {
		if got := r.Value(f); got != i+1 {
			t.Errorf("Value(%s) = %d, want %d", f, got, i+1)
		}
	}
	assert.Equal(t, 30, r.TotalFollowUps())
	assert.Equal(t, 0, r.Value(Field("bogus")))
}

func TestParseField(t *testing.T) {
	f, err := ParseField("messages_sent")
	require.NoError(t, err)
	assert.Equal(t, FieldMessagesSent, f)

	_, err = ParseField("Messages_Sent")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

// ─── Habit Table Tests ──────────────────────────────────────────────────────

func TestHabitTable_DenseSeriesFillsGaps(t *testing.T) {
	tbl := NewHabitTable("gym").
		Mark(day(0), "gym", true).
		Mark(day(3), "gym", true)

	assert.Equal(t, []bool{true, false, false, true}, tbl.Series("gym"))
	assert.Len(t, tbl.Dates(), 4)
}

func TestHabitTable_ThroughExtendsAxis(t *testing.T) {
	tbl := NewHabitTable("gym").Mark(day(0), "gym", true).Mark(day(1), "gym", true)

	ext := tbl.Through(day(3).Add(20 * time.Hour))
	assert.Equal(t, []bool{true, true, false, false}, ext.Series("gym"))
	assert.Len(t, tbl.Dates(), 2, "receiver is not modified")

	assert.Equal(t, []bool{true, true}, tbl.Through(day(1)).Series("gym"))
	assert.Equal(t, []bool{true, true}, tbl.Through(day(-5)).Series("gym"))
	assert.Nil(t, NewHabitTable("gym").Through(day(3)).Dates())
}

func TestHabitTable_ColumnsKeepOrder(t *testing.T) {
	tbl := NewHabitTable("read", "gym", "read").
		Mark(day(0), "meditate", false)

	assert.Equal(t, []string{"read", "gym", "meditate"}, tbl.Habits())
	// Every column spans the same date axis.
	assert.Equal(t, []bool{false}, tbl.Series("read"))
}

func TestHabitTable_MarkDoesNotMutateReceiver(t *testing.T) {
	base := NewHabitTable("gym").Mark(day(0), "gym", true)
	_ = base.Mark(day(1), "gym", true)

	assert.Equal(t, []bool{true}, base.Series("gym"))
}

func TestHabitTable_Empty(t *testing.T) {
	var tbl HabitTable
	assert.Nil(t, tbl.Dates())
	assert.Empty(t, tbl.Series("anything"))
	assert.Empty(t, tbl.Habits())
}
