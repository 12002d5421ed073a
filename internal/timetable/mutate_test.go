package timetable

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMutator() *Mutator {
	return NewMutator(testSubjects(), testStaff(), testRooms(), testConstraints(), nil)
}

func generatedSchedule(t *testing.T) *Schedule {
	t.Helper()
	schedule, conflicts, err := Generate(context.Background(), testSubjects(), testStaff(), testRooms(), testConstraints())
	require.NoError(t, err)
	require.Empty(t, conflicts)
	return schedule
}

func TestMoveToFreeSlot(t *testing.T) {
	m := newTestMutator()
	schedule := generatedSchedule(t)
	target := schedule.Assignments()[0]

	moved, violations := m.Move(schedule, target.ID, SlotRef{Day: 5, Index: 6}, "", schedule.Version, false)
	require.Empty(t, violations)
	require.NotSame(t, schedule, moved)
	assert.Equal(t, schedule.Version+1, moved.Version)

	relocated, ok := moved.Find(target.ID)
	require.True(t, ok)
	assert.Equal(t, SlotRef{Day: 5, Index: 6}, relocated.Slot)

	// original untouched
	untouched, ok := schedule.Find(target.ID)
	require.True(t, ok)
	assert.Equal(t, target.Slot, untouched.Slot)
}

func TestMoveIntoOccupiedRoomBlocked(t *testing.T) {
	// Scenario: moving into a slot whose room is already taken must return
	// the original schedule unchanged plus a room-conflict violation.
	m := newTestMutator()
	schedule := NewSchedule(mustGrid(testConstraints()))
	schedule.Place(Assignment{
		ID: "a1", SubjectID: "sub-algo", StaffIDs: []string{"st-anand"},
		RoomID: "r-101", Slot: SlotRef{Day: 1, Index: 1},
	})
	schedule.Place(Assignment{
		ID: "a2", SubjectID: "sub-os", StaffIDs: []string{"st-anand"},
		RoomID: "r-101", Slot: SlotRef{Day: 1, Index: 2},
	})

	result, violations := m.Move(schedule, "a2", SlotRef{Day: 1, Index: 1}, "", schedule.Version, false)
	require.NotEmpty(t, violations)
	assert.Contains(t, rulesOf(violations), RuleRoomOccupied)
	assert.Same(t, schedule, result)
	still, _ := result.Find("a2")
	assert.Equal(t, SlotRef{Day: 1, Index: 2}, still.Slot)
}

func TestMoveIntoBreakSlotBlocked(t *testing.T) {
	m := newTestMutator()
	schedule := generatedSchedule(t)
	target := schedule.Assignments()[0]

	result, violations := m.Move(schedule, target.ID, SlotRef{Day: 1, Index: 12}, "", schedule.Version, false)
	require.NotEmpty(t, violations)
	assert.Contains(t, rulesOf(violations), RuleBreakSlot)
	assert.Same(t, schedule, result)
}

func TestMoveStaleVersionRejected(t *testing.T) {
	m := newTestMutator()
	schedule := generatedSchedule(t)
	target := schedule.Assignments()[0]

	result, violations := m.Move(schedule, target.ID, SlotRef{Day: 5, Index: 6}, "", schedule.Version-1, false)
	require.Len(t, violations, 1)
	assert.Equal(t, RuleStaleVersion, violations[0].Rule)
	assert.Same(t, schedule, result)
}

func TestMoveWithSoftWarningNeedsForce(t *testing.T) {
	cs := testConstraints()
	cs.AvoidEarlyLabs = true
	m := NewMutator(testSubjects(), testStaff(), testRooms(), cs, nil)

	schedule := NewSchedule(mustGrid(cs))
	schedule.Place(Assignment{
		ID: "lab1", SubjectID: "sub-phys-lab", StaffIDs: []string{"st-beena", "st-chand"},
		RoomID: "r-lab1", Slot: SlotRef{Day: 1, Index: 3},
	})

	// moving the lab into the first slot trips the early-lab warning
	blocked, violations := m.Move(schedule, "lab1", SlotRef{Day: 1, Index: 1}, "", schedule.Version, false)
	require.NotEmpty(t, violations)
	assert.False(t, HasHard(violations))
	assert.Same(t, schedule, blocked)

	forced, violations := m.Move(schedule, "lab1", SlotRef{Day: 1, Index: 1}, "", schedule.Version, true)
	assert.False(t, HasHard(violations))
	moved, ok := forced.Find("lab1")
	require.True(t, ok)
	assert.Equal(t, SlotRef{Day: 1, Index: 1}, moved.Slot)
}

func TestMoveChangesRoom(t *testing.T) {
	m := newTestMutator()
	schedule := NewSchedule(mustGrid(testConstraints()))
	schedule.Place(Assignment{
		ID: "a1", SubjectID: "sub-algo", StaffIDs: []string{"st-anand"},
		RoomID: "r-101", Slot: SlotRef{Day: 1, Index: 1},
	})

	moved, violations := m.Move(schedule, "a1", SlotRef{Day: 1, Index: 1}, "r-102", schedule.Version, false)
	require.Empty(t, violations)
	got, _ := moved.Find("a1")
	assert.Equal(t, "r-102", got.RoomID)
}

func TestSwapAssignments(t *testing.T) {
	m := newTestMutator()
	schedule := NewSchedule(mustGrid(testConstraints()))
	schedule.Place(Assignment{
		ID: "a1", SubjectID: "sub-algo", StaffIDs: []string{"st-anand"},
		RoomID: "r-101", Slot: SlotRef{Day: 1, Index: 1},
	})
	schedule.Place(Assignment{
		ID: "a2", SubjectID: "sub-elec", StaffIDs: []string{"st-chand"},
		RoomID: "r-102", Slot: SlotRef{Day: 2, Index: 4},
	})

	swapped, violations := m.Swap(schedule, "a1", "a2", schedule.Version)
	require.Empty(t, violations)

	first, _ := swapped.Find("a1")
	second, _ := swapped.Find("a2")
	assert.Equal(t, SlotRef{Day: 2, Index: 4}, first.Slot)
	assert.Equal(t, "r-102", first.RoomID)
	assert.Equal(t, SlotRef{Day: 1, Index: 1}, second.Slot)
	assert.Equal(t, "r-101", second.RoomID)
}

func TestDeleteRemovesWholeLabBlock(t *testing.T) {
	m := newTestMutator()
	schedule := NewSchedule(mustGrid(testConstraints()))
	for i := 1; i <= 2; i++ {
		schedule.Place(Assignment{
			ID: sprintID("lab", i), SubjectID: "sub-phys-lab", StaffIDs: []string{"st-beena", "st-chand"},
			RoomID: "r-lab1", Slot: SlotRef{Day: 1, Index: i}, BlockID: "sub-phys-lab-b1",
		})
	}

	result, violations := m.Delete(schedule, "lab-1", schedule.Version)
	require.Empty(t, violations)
	assert.Empty(t, result.Assignments())
	assert.Len(t, schedule.Assignments(), 2, "original schedule untouched")
}

func TestDeleteUnknownAssignment(t *testing.T) {
	m := newTestMutator()
	schedule := NewSchedule(mustGrid(testConstraints()))

	result, violations := m.Delete(schedule, "missing", schedule.Version)
	require.Len(t, violations, 1)
	assert.True(t, violations[0].Hard)
	assert.Same(t, schedule, result)
}

func sprintID(prefix string, n int) string {
	return prefix + "-" + string(rune('0'+n))
}
