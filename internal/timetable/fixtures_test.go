package timetable

// Shared roster fixtures for the engine tests.

func testConstraints() ConstraintSet {
	return ConstraintSet{
		WorkingDays:          5,
		StartTime:            "09:00",
		ClassDurationMinutes: 60,
		BreakDurationMinutes: 15,
		ClassesPerDay:        6,
		AutoResolveConflicts: true,
		Iterations:           5,
	}
}

func testRooms() []Room {
	return []Room{
		{ID: "r-101", Name: "Room 101", Type: RoomClassroom, Capacity: 60},
		{ID: "r-102", Name: "Room 102", Type: RoomClassroom, Capacity: 60},
		{ID: "r-lab1", Name: "Physics Lab", Type: RoomLab, Capacity: 30},
	}
}

func testStaff() []Staff {
	return []Staff{
		{ID: "st-anand", Name: "Dr. Anand", MaxHoursPerWeek: 16, Qualifications: []string{"sub-algo", "sub-os"}},
		{ID: "st-beena", Name: "Prof. Beena", MaxHoursPerWeek: 16, Qualifications: []string{"sub-algo", "sub-phys-lab"}},
		{ID: "st-chand", Name: "Dr. Chand", MaxHoursPerWeek: 12, Qualifications: []string{"sub-phys-lab", "sub-elec"}},
	}
}

func testSubjects() []Subject {
	return []Subject{
		{ID: "sub-algo", Code: "CS301", Name: "Algorithms", Type: SubjectCore, RequiredHoursPerWeek: 4, Credits: 4},
		{ID: "sub-os", Code: "CS302", Name: "Operating Systems", Type: SubjectCore, RequiredHoursPerWeek: 3, Credits: 3},
		{ID: "sub-elec", Code: "CS351", Name: "Compilers", Type: SubjectElective, RequiredHoursPerWeek: 2, Credits: 2},
		{
			ID: "sub-phys-lab", Code: "PH331L", Name: "Physics Lab", Type: SubjectLab,
			RequiredHoursPerWeek: 2, Credits: 1, RequiresDualStaff: true,
			AllowedRoomTypes: []RoomType{RoomLab},
		},
	}
}

func mustGrid(cs ConstraintSet) *SlotGrid {
	grid, err := BuildGrid(cs)
	if err != nil {
		panic(err)
	}
	return grid
}
