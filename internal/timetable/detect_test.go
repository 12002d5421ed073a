package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDetector() *Detector {
	return NewDetector(testSubjects(), testStaff(), testConstraints())
}

func TestDetectCleanSchedule(t *testing.T) {
	d := newTestDetector()
	schedule := NewSchedule(mustGrid(testConstraints()))
	schedule.Place(Assignment{
		ID: "a1", SubjectID: "sub-algo", StaffIDs: []string{"st-anand"},
		RoomID: "r-101", Slot: SlotRef{Day: 1, Index: 1},
	})
	assert.Empty(t, d.Detect(schedule))
}

func TestDetectRoomAndStaffDoubleBooking(t *testing.T) {
	d := newTestDetector()
	schedule := NewSchedule(mustGrid(testConstraints()))
	// same room and same staff at the same slot, placed out of band
	schedule.Place(Assignment{
		ID: "a1", SubjectID: "sub-algo", StaffIDs: []string{"st-anand"},
		RoomID: "r-101", Slot: SlotRef{Day: 1, Index: 1},
	})
	schedule.Place(Assignment{
		ID: "a2", SubjectID: "sub-os", StaffIDs: []string{"st-anand"},
		RoomID: "r-101", Slot: SlotRef{Day: 1, Index: 1},
	})

	conflicts := d.Detect(schedule)
	require.Len(t, conflicts, 2)

	kinds := map[ConflictKind]Conflict{}
	for _, c := range conflicts {
		kinds[c.Kind] = c
		assert.Equal(t, SeverityHigh, c.Severity)
		assert.ElementsMatch(t, []string{"a1", "a2"}, c.AssignmentIDs)
	}
	assert.Contains(t, kinds, ConflictRoom)
	assert.Contains(t, kinds, ConflictStaff)
}

func TestDetectWorkloadExceeded(t *testing.T) {
	staff := testStaff()
	staff[0].MaxHoursPerWeek = 1
	d := NewDetector(testSubjects(), staff, testConstraints())

	schedule := NewSchedule(mustGrid(testConstraints()))
	schedule.Place(Assignment{
		ID: "a1", SubjectID: "sub-algo", StaffIDs: []string{"st-anand"},
		RoomID: "r-101", Slot: SlotRef{Day: 1, Index: 1},
	})
	schedule.Place(Assignment{
		ID: "a2", SubjectID: "sub-algo", StaffIDs: []string{"st-anand"},
		RoomID: "r-101", Slot: SlotRef{Day: 2, Index: 1},
	})

	conflicts := d.Detect(schedule)
	require.Len(t, conflicts, 1)
	assert.Equal(t, ConflictWorkload, conflicts[0].Kind)
	assert.ElementsMatch(t, []string{"a1", "a2"}, conflicts[0].AssignmentIDs)
}

func TestDetectBreakSlotOccupied(t *testing.T) {
	d := newTestDetector()
	schedule := NewSchedule(mustGrid(testConstraints()))
	schedule.Place(Assignment{
		ID: "a1", SubjectID: "sub-algo", StaffIDs: []string{"st-anand"},
		RoomID: "r-101", Slot: SlotRef{Day: 1, Index: 99},
	})

	conflicts := d.Detect(schedule)
	require.Len(t, conflicts, 1)
	assert.Equal(t, ConflictConstraint, conflicts[0].Kind)
}

func TestDetectDualStaffMissing(t *testing.T) {
	d := newTestDetector()
	schedule := NewSchedule(mustGrid(testConstraints()))
	schedule.Place(Assignment{
		ID: "a1", SubjectID: "sub-phys-lab", StaffIDs: []string{"st-beena"},
		RoomID: "r-lab1", Slot: SlotRef{Day: 1, Index: 2},
	})

	conflicts := d.Detect(schedule)
	require.Len(t, conflicts, 1)
	assert.Equal(t, ConflictConstraint, conflicts[0].Kind)
}

func TestDetectIdempotent(t *testing.T) {
	d := newTestDetector()
	schedule := NewSchedule(mustGrid(testConstraints()))
	schedule.Place(Assignment{
		ID: "a1", SubjectID: "sub-algo", StaffIDs: []string{"st-anand"},
		RoomID: "r-101", Slot: SlotRef{Day: 1, Index: 1},
	})
	schedule.Place(Assignment{
		ID: "a2", SubjectID: "sub-os", StaffIDs: []string{"st-anand"},
		RoomID: "r-102", Slot: SlotRef{Day: 1, Index: 1},
	})

	first := d.Detect(schedule)
	second := d.Detect(schedule)
	assert.Equal(t, first, second)
}

func TestDetectHardTypeCaps(t *testing.T) {
	cs := testConstraints()
	cs.MaxCorePerDay = 1
	cs.TypeCapsAreHard = true
	d := NewDetector(testSubjects(), testStaff(), cs)

	schedule := NewSchedule(mustGrid(cs))
	schedule.Place(Assignment{
		ID: "a1", SubjectID: "sub-algo", StaffIDs: []string{"st-anand"},
		RoomID: "r-101", Slot: SlotRef{Day: 1, Index: 1},
	})
	schedule.Place(Assignment{
		ID: "a2", SubjectID: "sub-os", StaffIDs: []string{"st-anand"},
		RoomID: "r-102", Slot: SlotRef{Day: 1, Index: 2},
	})

	conflicts := d.Detect(schedule)
	require.Len(t, conflicts, 1)
	assert.Equal(t, ConflictConstraint, conflicts[0].Kind)
	assert.Equal(t, 1, conflicts[0].Day)
}
