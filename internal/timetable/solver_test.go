package timetable

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateFullRosterInvariants(t *testing.T) {
	schedule, conflicts, err := Generate(context.Background(), testSubjects(), testStaff(), testRooms(), testConstraints())
	require.NoError(t, err)
	assert.Empty(t, conflicts)

	// every required hour is placed: 4+3+2+2 = 11 one-hour sessions
	assignments := schedule.Assignments()
	assert.Len(t, assignments, 11)

	// no room or staff double-booking, no break slots
	for ref, placed := range schedule.Slots {
		_, ok := schedule.Grid.At(ref)
		require.True(t, ok, "assignment on break or invalid slot %s", ref)

		rooms := map[string]bool{}
		staff := map[string]bool{}
		for _, a := range placed {
			assert.False(t, rooms[a.RoomID], "room %s double-booked at %s", a.RoomID, ref)
			rooms[a.RoomID] = true
			for _, id := range a.StaffIDs {
				assert.False(t, staff[id], "staff %s double-booked at %s", id, ref)
				staff[id] = true
			}
		}
	}

	// workload caps hold
	minutes := schedule.StaffMinutes(testConstraints().ClassDurationMinutes)
	for _, member := range testStaff() {
		assert.LessOrEqual(t, minutes[member.ID], member.MaxHoursPerWeek*60, member.ID)
	}
}

func TestGenerateDeterministic(t *testing.T) {
	first, _, err := Generate(context.Background(), testSubjects(), testStaff(), testRooms(), testConstraints())
	require.NoError(t, err)
	second, _, err := Generate(context.Background(), testSubjects(), testStaff(), testRooms(), testConstraints())
	require.NoError(t, err)

	firstJSON, err := json.Marshal(first.Assignments())
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second.Assignments())
	require.NoError(t, err)
	assert.Equal(t, firstJSON, secondJSON)
}

func TestGenerateDualStaffLabBlock(t *testing.T) {
	// Scenario: one 4h dual-staff lab, two qualified staff, one lab room.
	subjects := []Subject{{
		ID: "sub-chem-lab", Code: "CH210L", Name: "Chemistry Lab", Type: SubjectLab,
		RequiredHoursPerWeek: 4, Credits: 2, RequiresDualStaff: true,
		AllowedRoomTypes: []RoomType{RoomLab},
	}}
	staff := []Staff{
		{ID: "st-a", Name: "A", MaxHoursPerWeek: 10, Qualifications: []string{"sub-chem-lab"}},
		{ID: "st-b", Name: "B", MaxHoursPerWeek: 10, Qualifications: []string{"sub-chem-lab"}},
	}
	rooms := []Room{{ID: "r-lab", Name: "Lab", Type: RoomLab, Capacity: 30}}

	schedule, conflicts, err := Generate(context.Background(), subjects, staff, rooms, testConstraints())
	require.NoError(t, err)
	assert.Empty(t, conflicts)

	assignments := schedule.Assignments()
	require.Len(t, assignments, 4)

	day := assignments[0].Slot.Day
	for i, a := range assignments {
		assert.Equal(t, day, a.Slot.Day, "lab block must be contiguous on one day")
		assert.Equal(t, assignments[0].Slot.Index+i, a.Slot.Index)
		assert.ElementsMatch(t, []string{"st-a", "st-b"}, a.StaffIDs)
		assert.Equal(t, "r-lab", a.RoomID)
		assert.NotEmpty(t, a.BlockID)
	}
}

func TestGenerateWorkloadCapLeavesSubjectUnplaced(t *testing.T) {
	// Scenario: staff capped at 2h, two subjects each needing 2h from them.
	subjects := []Subject{
		{ID: "sub-one", Code: "S1", Name: "One", Type: SubjectCore, RequiredHoursPerWeek: 2, Credits: 2},
		{ID: "sub-two", Code: "S2", Name: "Two", Type: SubjectCore, RequiredHoursPerWeek: 2, Credits: 2},
	}
	staff := []Staff{{ID: "st-solo", Name: "Solo", MaxHoursPerWeek: 2, Qualifications: []string{"sub-one", "sub-two"}}}
	rooms := []Room{{ID: "r-1", Name: "R1", Type: RoomClassroom, Capacity: 40}}

	schedule, conflicts, err := Generate(context.Background(), subjects, staff, rooms, testConstraints())
	require.NoError(t, err)

	// exactly one subject fits, the other surfaces as high-severity conflicts
	assert.Len(t, schedule.Assignments(), 2)
	require.NotEmpty(t, conflicts)
	for _, c := range conflicts {
		assert.Equal(t, SeverityHigh, c.Severity)
	}

	minutes := schedule.StaffMinutes(testConstraints().ClassDurationMinutes)
	assert.LessOrEqual(t, minutes["st-solo"], 120)
}

func TestGenerateSharedStaffAcrossSections(t *testing.T) {
	// Scenario: two sections share one staff member; generations are
	// serialized, the second sees the first's bookings via the snapshot.
	subjects := []Subject{{ID: "sub-shared", Code: "SH1", Name: "Shared", Type: SubjectCore, RequiredHoursPerWeek: 1, Credits: 1}}
	staff := []Staff{{ID: "st-shared", Name: "Shared", MaxHoursPerWeek: 10, Qualifications: []string{"sub-shared"}}}
	rooms := []Room{{ID: "r-x", Name: "X", Type: RoomClassroom, Capacity: 40}}

	first, _, err := Generate(context.Background(), subjects, staff, rooms, testConstraints())
	require.NoError(t, err)
	require.Len(t, first.Assignments(), 1)
	firstSlot := first.Assignments()[0].Slot

	snapshot := AvailabilitySnapshot{}
	for _, a := range first.Assignments() {
		for _, id := range a.StaffIDs {
			snapshot.Reserve(id, a.Slot)
		}
	}

	second, conflicts, err := Generate(context.Background(), subjects, staff, rooms, testConstraints(),
		WithSharedAvailability(snapshot))
	require.NoError(t, err)
	assert.Empty(t, conflicts)
	require.Len(t, second.Assignments(), 1)
	assert.NotEqual(t, firstSlot, second.Assignments()[0].Slot,
		"second section must not book the staff member's taken slot")
}

func TestGenerateHonoursPreAssignedStaff(t *testing.T) {
	subjects := []Subject{{
		ID: "sub-fixed", Code: "FX1", Name: "Fixed", Type: SubjectCore,
		RequiredHoursPerWeek: 2, Credits: 2, AssignedStaffID: "st-beena",
	}}
	staff := []Staff{
		{ID: "st-anand", Name: "Anand", MaxHoursPerWeek: 10, Qualifications: []string{"sub-fixed"}},
		{ID: "st-beena", Name: "Beena", MaxHoursPerWeek: 10, Qualifications: []string{"sub-fixed"}},
	}
	rooms := []Room{{ID: "r-1", Name: "R1", Type: RoomClassroom, Capacity: 40}}

	schedule, _, err := Generate(context.Background(), subjects, staff, rooms, testConstraints())
	require.NoError(t, err)
	for _, a := range schedule.Assignments() {
		assert.Equal(t, []string{"st-beena"}, a.StaffIDs)
	}
}

func TestGenerateRejectsMalformedInput(t *testing.T) {
	subjects := testSubjects()
	subjects[0].RequiredHoursPerWeek = -1

	_, _, err := Generate(context.Background(), subjects, testStaff(), testRooms(), testConstraints())
	require.Error(t, err)
	var inputErr *InputError
	require.ErrorAs(t, err, &inputErr)
	assert.NotEmpty(t, inputErr.Violations)
}

func TestGenerateCancellationReturnsBestSoFar(t *testing.T) {
	// unsatisfiable workload keeps the repair loop busy; a cancelled context
	// must still yield the best partial schedule, flagged incomplete
	subjects := []Subject{
		{ID: "sub-one", Code: "S1", Name: "One", Type: SubjectCore, RequiredHoursPerWeek: 2, Credits: 2},
		{ID: "sub-two", Code: "S2", Name: "Two", Type: SubjectCore, RequiredHoursPerWeek: 2, Credits: 2},
	}
	staff := []Staff{{ID: "st-solo", Name: "Solo", MaxHoursPerWeek: 2, Qualifications: []string{"sub-one", "sub-two"}}}
	rooms := []Room{{ID: "r-1", Name: "R1", Type: RoomClassroom, Capacity: 40}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	schedule, conflicts, err := Generate(ctx, subjects, staff, rooms, testConstraints())
	require.NoError(t, err)
	assert.True(t, schedule.Incomplete)
	assert.NotEmpty(t, schedule.Assignments())
	assert.NotEmpty(t, conflicts)
}

func TestGenerateAvoidEarlyLabs(t *testing.T) {
	cs := testConstraints()
	cs.AvoidEarlyLabs = true

	subjects := []Subject{
		{ID: "sub-lab", Code: "L1", Name: "Lab", Type: SubjectLab, RequiredHoursPerWeek: 2, Credits: 1,
			AllowedRoomTypes: []RoomType{RoomLab}},
	}
	staff := []Staff{{ID: "st-a", Name: "A", MaxHoursPerWeek: 10, Qualifications: []string{"sub-lab"}}}
	rooms := []Room{{ID: "r-lab", Name: "Lab", Type: RoomLab, Capacity: 30}}

	schedule, conflicts, err := Generate(context.Background(), subjects, staff, rooms, cs)
	require.NoError(t, err)
	assert.Empty(t, conflicts)
	for _, a := range schedule.Assignments() {
		assert.Greater(t, a.Slot.Index, 1, "lab should avoid the first slot of the day")
	}
}

func TestQualityScore(t *testing.T) {
	schedule := NewSchedule(mustGrid(testConstraints()))
	assert.Equal(t, 100.0, QualityScore(schedule, testConstraints()))

	schedule.Conflicts = []Conflict{{Kind: ConflictRoom, Severity: SeverityHigh}}
	assert.Equal(t, 75.0, QualityScore(schedule, testConstraints()))
}
