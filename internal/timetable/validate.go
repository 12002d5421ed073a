package timetable

import "fmt"

// Validator checks candidate assignments against a schedule before placement.
// It is pure: no method mutates the schedule or the roster.
type Validator struct {
	cs       ConstraintSet
	subjects map[string]Subject
	staff    map[string]Staff
	rooms    map[string]Room
	shared   AvailabilitySnapshot
}

// NewValidator indexes the roster for constant-time lookups.
func NewValidator(subjects []Subject, staff []Staff, rooms []Room, cs ConstraintSet, shared AvailabilitySnapshot) *Validator {
	v := &Validator{
		cs:       cs.Normalize(),
		subjects: make(map[string]Subject, len(subjects)),
		staff:    make(map[string]Staff, len(staff)),
		rooms:    make(map[string]Room, len(rooms)),
		shared:   shared,
	}
	for _, s := range subjects {
		v.subjects[s.ID] = s
	}
	for _, s := range staff {
		v.staff[s.ID] = s
	}
	for _, r := range rooms {
		v.rooms[r.ID] = r
	}
	return v
}

// Validate runs every constraint check against the candidate and returns all
// violations found. Hard violations make the candidate unplaceable; soft ones
// feed the solver's scoring.
func (v *Validator) Validate(schedule *Schedule, cand Assignment) []Violation {
	var violations []Violation

	subject, ok := v.subjects[cand.SubjectID]
	if !ok {
		return []Violation{{
			Rule: RuleUnknownSubject, Severity: SeverityHigh, Hard: true,
			Message: fmt.Sprintf("subject %s is not part of the roster", cand.SubjectID),
		}}
	}

	// break-slot rule and grid bounds
	if _, ok := schedule.Grid.At(cand.Slot); !ok {
		violations = append(violations, Violation{
			Rule: RuleBreakSlot, Severity: SeverityHigh, Hard: true,
			Message: fmt.Sprintf("slot %s is a break or outside the grid", cand.Slot),
		})
		return violations
	}

	violations = append(violations, v.checkRoom(schedule, subject, cand)...)
	violations = append(violations, v.checkStaffFree(schedule, cand)...)
	violations = append(violations, v.checkQualification(subject, cand)...)
	violations = append(violations, v.checkWorkload(schedule, cand)...)
	violations = append(violations, v.checkTypeCap(schedule, subject, cand)...)
	violations = append(violations, v.checkDualStaff(subject, cand)...)
	violations = append(violations, v.checkSoftRules(subject, cand)...)
	return violations
}

func (v *Validator) checkRoom(schedule *Schedule, subject Subject, cand Assignment) []Violation {
	room, ok := v.rooms[cand.RoomID]
	if !ok {
		return []Violation{{
			Rule: RuleInvalidInput, Severity: SeverityHigh, Hard: true,
			Message: fmt.Sprintf("room %s is not part of the roster", cand.RoomID),
		}}
	}
	var violations []Violation
	if !subject.AllowsRoom(room.Type) {
		violations = append(violations, Violation{
			Rule: RuleRoomType, Severity: SeverityHigh, Hard: true,
			Message: fmt.Sprintf("subject %s cannot be hosted in a %s", subject.Code, room.Type),
		})
	}
	for _, placed := range schedule.Slots[cand.Slot] {
		if placed.ID == cand.ID {
			continue
		}
		if placed.RoomID == cand.RoomID {
			violations = append(violations, Violation{
				Rule: RuleRoomOccupied, Severity: SeverityHigh, Hard: true,
				Message:       fmt.Sprintf("room %s already hosts %s at %s", room.Name, placed.SubjectID, cand.Slot),
				AssignmentIDs: []string{placed.ID},
			})
		}
	}
	return violations
}

func (v *Validator) checkStaffFree(schedule *Schedule, cand Assignment) []Violation {
	var violations []Violation
	for _, staffID := range cand.StaffIDs {
		member, ok := v.staff[staffID]
		if !ok {
			violations = append(violations, Violation{
				Rule: RuleInvalidInput, Severity: SeverityHigh, Hard: true,
				Message: fmt.Sprintf("staff %s is not part of the roster", staffID),
			})
			continue
		}
		for _, blocked := range member.Unavailable {
			if blocked == cand.Slot {
				violations = append(violations, Violation{
					Rule: RuleStaffOccupied, Severity: SeverityHigh, Hard: true,
					Message: fmt.Sprintf("%s is unavailable at %s", member.Name, cand.Slot),
				})
			}
		}
		if v.shared.Busy(staffID, cand.Slot) {
			violations = append(violations, Violation{
				Rule: RuleStaffOccupied, Severity: SeverityHigh, Hard: true,
				Message: fmt.Sprintf("%s teaches another section at %s", member.Name, cand.Slot),
			})
		}
		for _, placed := range schedule.Slots[cand.Slot] {
			if placed.ID == cand.ID {
				continue
			}
			if placed.HasStaff(staffID) {
				violations = append(violations, Violation{
					Rule: RuleStaffOccupied, Severity: SeverityHigh, Hard: true,
					Message:       fmt.Sprintf("%s is already booked at %s", member.Name, cand.Slot),
					AssignmentIDs: []string{placed.ID},
				})
			}
		}
	}
	return violations
}

func (v *Validator) checkQualification(subject Subject, cand Assignment) []Violation {
	var violations []Violation
	for _, staffID := range cand.StaffIDs {
		member, ok := v.staff[staffID]
		if !ok {
			continue
		}
		if !member.QualifiedFor(subject.ID) {
			violations = append(violations, Violation{
				Rule: RuleQualification, Severity: SeverityHigh, Hard: true,
				Message: fmt.Sprintf("%s is not qualified to teach %s", member.Name, subject.Code),
			})
		}
	}
	return violations
}

func (v *Validator) checkWorkload(schedule *Schedule, cand Assignment) []Violation {
	var violations []Violation
	minutes := schedule.StaffMinutes(v.cs.ClassDurationMinutes)
	for _, staffID := range cand.StaffIDs {
		member, ok := v.staff[staffID]
		if !ok || member.MaxHoursPerWeek <= 0 {
			continue
		}
		if minutes[staffID]+v.cs.ClassDurationMinutes > member.MaxHoursPerWeek*60 {
			violations = append(violations, Violation{
				Rule: RuleWorkload, Severity: SeverityHigh, Hard: true,
				Message: fmt.Sprintf("placing this session pushes %s over %dh/week", member.Name, member.MaxHoursPerWeek),
			})
		}
	}
	return violations
}

func (v *Validator) checkTypeCap(schedule *Schedule, subject Subject, cand Assignment) []Violation {
	limit := v.typeCap(subject.Type)
	if limit <= 0 {
		return nil
	}
	count := 1
	for ref, assignments := range schedule.Slots {
		if ref.Day != cand.Slot.Day {
			continue
		}
		for _, placed := range assignments {
			if placed.ID == cand.ID {
				continue
			}
			if other, ok := v.subjects[placed.SubjectID]; ok && other.Type == subject.Type {
				count++
			}
		}
	}
	if count <= limit {
		return nil
	}
	severity := SeverityMedium
	if v.cs.TypeCapsAreHard {
		severity = SeverityHigh
	}
	return []Violation{{
		Rule: RuleTypeCap, Severity: severity, Hard: v.cs.TypeCapsAreHard,
		Message: fmt.Sprintf("day %d would hold %d %s sessions (cap %d)", cand.Slot.Day, count, subject.Type, limit),
	}}
}

func (v *Validator) typeCap(t SubjectType) int {
	switch t {
	case SubjectLab:
		return v.cs.MaxLabsPerDay
	case SubjectCore:
		return v.cs.MaxCorePerDay
	case SubjectElective:
		return v.cs.MaxElectivesPerDay
	default:
		return 0
	}
}

func (v *Validator) checkDualStaff(subject Subject, cand Assignment) []Violation {
	required := 1
	if subject.Type == SubjectLab && (subject.RequiresDualStaff || v.cs.DualStaffLabs) {
		required = 2
	}
	distinct := make(map[string]bool, len(cand.StaffIDs))
	for _, id := range cand.StaffIDs {
		distinct[id] = true
	}
	if len(distinct) == required {
		return nil
	}
	return []Violation{{
		Rule: RuleDualStaff, Severity: SeverityHigh, Hard: true,
		Message: fmt.Sprintf("%s requires exactly %d distinct staff, got %d", subject.Code, required, len(distinct)),
	}}
}

func (v *Validator) checkSoftRules(subject Subject, cand Assignment) []Violation {
	var violations []Violation
	if v.cs.AvoidEarlyLabs && subject.Type == SubjectLab && cand.Slot.Index == 1 {
		violations = append(violations, Violation{
			Rule: RuleEarlyLab, Severity: SeverityLow, Hard: false,
			Message: fmt.Sprintf("lab %s placed in the first slot of day %d", subject.Code, cand.Slot.Day),
		})
	}
	return violations
}

// ValidateInputs rejects malformed rosters before any scheduling happens.
// Returned violations map to a VALIDATION_ERROR at the service boundary.
func ValidateInputs(subjects []Subject, staff []Staff, rooms []Room, cs ConstraintSet) []Violation {
	var violations []Violation
	invalid := func(format string, args ...interface{}) {
		violations = append(violations, Violation{
			Rule: RuleInvalidInput, Severity: SeverityHigh, Hard: true,
			Message: fmt.Sprintf(format, args...),
		})
	}

	if len(subjects) == 0 {
		invalid("at least one subject is required")
	}
	if len(staff) == 0 {
		invalid("at least one staff member is required")
	}
	if len(rooms) == 0 {
		invalid("at least one room is required")
	}

	seenSubjects := make(map[string]bool, len(subjects))
	for _, s := range subjects {
		if s.ID == "" {
			invalid("subject with empty id")
			continue
		}
		if seenSubjects[s.ID] {
			invalid("duplicate subject id %s", s.ID)
		}
		seenSubjects[s.ID] = true
		if s.RequiredHoursPerWeek <= 0 {
			invalid("subject %s requires positive weekly hours", s.ID)
		}
		if s.RequiresDualStaff && s.Type != SubjectLab {
			invalid("subject %s is not a lab but requires dual staff", s.ID)
		}
	}

	seenStaff := make(map[string]bool, len(staff))
	for _, m := range staff {
		if m.ID == "" {
			invalid("staff member with empty id")
			continue
		}
		if seenStaff[m.ID] {
			invalid("duplicate staff id %s", m.ID)
		}
		seenStaff[m.ID] = true
		if m.MaxHoursPerWeek <= 0 {
			invalid("staff %s needs a positive weekly hour limit", m.ID)
		}
	}

	seenRooms := make(map[string]bool, len(rooms))
	for _, r := range rooms {
		if r.ID == "" {
			invalid("room with empty id")
			continue
		}
		if seenRooms[r.ID] {
			invalid("duplicate room id %s", r.ID)
		}
		seenRooms[r.ID] = true
	}

	if _, err := BuildGrid(cs); err != nil {
		invalid("constraint set produces no valid grid: %v", err)
	}
	return violations
}
