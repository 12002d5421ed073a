package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildGridShape(t *testing.T) {
	grid, err := BuildGrid(testConstraints())
	require.NoError(t, err)

	assert.Equal(t, 5, grid.WorkingDays)
	assert.Equal(t, 6, grid.ClassesPerDay)

	day := grid.DaySlots(1)
	// 6 classes + short break after 2nd + lunch after 4th
	require.Len(t, day, 8)
	assert.Equal(t, "09:00", day[0].Start)
	assert.Equal(t, "10:00", day[0].End)
	assert.True(t, day[2].IsBreak)
	assert.Equal(t, "BREAK", day[2].BreakLabel)
	assert.True(t, day[5].IsBreak)
	assert.Equal(t, "LUNCH", day[5].BreakLabel)

	// class indexes stay 1..6 with breaks unnumbered
	var classes int
	for _, slot := range day {
		if !slot.IsBreak {
			classes++
			assert.Equal(t, classes, slot.Index)
		}
	}
	assert.Equal(t, 6, classes)
}

func TestBuildGridDeterministic(t *testing.T) {
	first, err := BuildGrid(testConstraints())
	require.NoError(t, err)
	second, err := BuildGrid(testConstraints())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBuildGridOverflow(t *testing.T) {
	cs := testConstraints()
	cs.EndTime = "11:00"
	_, err := BuildGrid(cs)
	require.Error(t, err)
}

func TestBuildGridSixDayWeek(t *testing.T) {
	cs := testConstraints()
	cs.WorkingDays = 6
	grid, err := BuildGrid(cs)
	require.NoError(t, err)
	assert.Len(t, grid.ClassRefs(), 36)
	assert.NotEmpty(t, grid.DaySlots(6))
}

func TestGridAtRejectsBreaksAndBounds(t *testing.T) {
	grid := mustGrid(testConstraints())

	_, ok := grid.At(SlotRef{Day: 1, Index: 3})
	assert.True(t, ok)
	_, ok = grid.At(SlotRef{Day: 0, Index: 1})
	assert.False(t, ok)
	_, ok = grid.At(SlotRef{Day: 1, Index: 7})
	assert.False(t, ok)
	_, ok = grid.At(SlotRef{Day: 6, Index: 1})
	assert.False(t, ok)
}

func TestParseClock(t *testing.T) {
	cases := []struct {
		raw     string
		minutes int
		ok      bool
	}{
		{"09:00", 540, true},
		{"13:45", 825, true},
		{"24:00", 0, false},
		{"bogus", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := parseClock(tc.raw)
		if tc.ok {
			require.NoError(t, err, tc.raw)
			assert.Equal(t, tc.minutes, got, tc.raw)
		} else {
			assert.Error(t, err, tc.raw)
		}
	}
}
