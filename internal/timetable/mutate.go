package timetable

import "fmt"

// Mutator applies manual edits to a schedule transactionally: the input
// schedule is never touched, and an edit that violates a hard constraint
// returns the original untouched together with the violation list.
type Mutator struct {
	cs        ConstraintSet
	validator *Validator
	detector  *Detector
}

// NewMutator builds a mutator over the roster the schedule was generated from.
func NewMutator(subjects []Subject, staff []Staff, rooms []Room, cs ConstraintSet, shared AvailabilitySnapshot) *Mutator {
	cs = cs.Normalize()
	return &Mutator{
		cs:        cs,
		validator: NewValidator(subjects, staff, rooms, cs, shared),
		detector:  NewDetector(subjects, staff, cs),
	}
}

// Move relocates an assignment to a new slot and optionally a new room.
// Hard violations always block. Soft violations block too unless force is
// set, letting the caller override warnings from a drag-and-drop UI.
// A version mismatch rejects the edit as stale.
func (m *Mutator) Move(schedule *Schedule, assignmentID string, to SlotRef, newRoomID string, version int, force bool) (*Schedule, []Violation) {
	if version != schedule.Version {
		return schedule, []Violation{staleVersion(schedule.Version, version)}
	}

	if _, ok := schedule.Find(assignmentID); !ok {
		return schedule, []Violation{notFound(assignmentID)}
	}

	working := schedule.Clone()
	moved, _ := working.Remove(assignmentID)
	moved.Slot = to
	if newRoomID != "" {
		moved.RoomID = newRoomID
	}
	moved.BlockID = "" // a moved session leaves its contiguous block

	violations := m.validator.Validate(working, moved)
	if HasHard(violations) || (len(violations) > 0 && !force) {
		return schedule, violations
	}

	working.Place(moved)
	working.Version++
	working.Conflicts = m.detector.Detect(working)
	return working, violations
}

// Swap exchanges the slots and rooms of two assignments, validating both new
// placements before committing either.
func (m *Mutator) Swap(schedule *Schedule, firstID, secondID string, version int) (*Schedule, []Violation) {
	if version != schedule.Version {
		return schedule, []Violation{staleVersion(schedule.Version, version)}
	}
	first, ok := schedule.Find(firstID)
	if !ok {
		return schedule, []Violation{notFound(firstID)}
	}
	second, ok := schedule.Find(secondID)
	if !ok {
		return schedule, []Violation{notFound(secondID)}
	}

	working := schedule.Clone()
	working.Remove(firstID)
	working.Remove(secondID)

	first.Slot, second.Slot = second.Slot, first.Slot
	first.RoomID, second.RoomID = second.RoomID, first.RoomID
	first.BlockID, second.BlockID = "", ""

	var violations []Violation
	violations = append(violations, m.validator.Validate(working, first)...)
	working.Place(first)
	violations = append(violations, m.validator.Validate(working, second)...)
	if HasHard(violations) {
		return schedule, violations
	}
	working.Place(second)
	working.Version++
	working.Conflicts = m.detector.Detect(working)
	return working, violations
}

// Delete removes a session unit from the schedule. When the assignment is
// part of a contiguous lab block the whole block goes, since a partial block
// is not a schedulable unit. The freed hours surface on the next generation.
func (m *Mutator) Delete(schedule *Schedule, assignmentID string, version int) (*Schedule, []Violation) {
	if version != schedule.Version {
		return schedule, []Violation{staleVersion(schedule.Version, version)}
	}
	target, ok := schedule.Find(assignmentID)
	if !ok {
		return schedule, []Violation{notFound(assignmentID)}
	}

	working := schedule.Clone()
	working.Remove(assignmentID)
	if target.BlockID != "" {
		for _, a := range working.Assignments() {
			if a.BlockID == target.BlockID {
				working.Remove(a.ID)
			}
		}
	}
	working.Version++
	working.Conflicts = m.detector.Detect(working)
	return working, nil
}

func staleVersion(current, supplied int) Violation {
	return Violation{
		Rule: RuleStaleVersion, Severity: SeverityHigh, Hard: true,
		Message: fmt.Sprintf("schedule version %d is stale, current is %d", supplied, current),
	}
}

func notFound(assignmentID string) Violation {
	return Violation{
		Rule: RuleInvalidInput, Severity: SeverityHigh, Hard: true,
		Message: fmt.Sprintf("assignment %s not found", assignmentID),
	}
}
