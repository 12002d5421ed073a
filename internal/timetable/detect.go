package timetable

import (
	"fmt"
	"sort"
)

// Detector re-derives hard-constraint violations from placed assignments.
// Unlike the Validator it runs after placement, so it remains authoritative
// even when assignments were edited out of band.
type Detector struct {
	cs       ConstraintSet
	subjects map[string]Subject
	staff    map[string]Staff
}

// NewDetector builds a detector over the roster.
func NewDetector(subjects []Subject, staff []Staff, cs ConstraintSet) *Detector {
	d := &Detector{
		cs:       cs.Normalize(),
		subjects: make(map[string]Subject, len(subjects)),
		staff:    make(map[string]Staff, len(staff)),
	}
	for _, s := range subjects {
		d.subjects[s.ID] = s
	}
	for _, s := range staff {
		d.staff[s.ID] = s
	}
	return d
}

// Detect scans the schedule and returns every conflict present, in canonical
// day/slot order. Calling it twice on an unchanged schedule yields the same
// list. Complexity is linear in slots times assignments per slot.
func (d *Detector) Detect(schedule *Schedule) []Conflict {
	var conflicts []Conflict

	for _, ref := range schedule.sortedRefs() {
		assignments := schedule.Slots[ref]

		if _, ok := schedule.Grid.At(ref); !ok {
			for _, a := range assignments {
				conflicts = append(conflicts, Conflict{
					Day: ref.Day, Slot: ref.Index, Kind: ConflictConstraint, Severity: SeverityHigh,
					Message:       fmt.Sprintf("assignment %s occupies a break or invalid slot", a.ID),
					AssignmentIDs: []string{a.ID},
				})
			}
			continue
		}

		conflicts = append(conflicts, d.slotResourceConflicts(ref, assignments)...)
		conflicts = append(conflicts, d.dualStaffConflicts(ref, assignments)...)
	}

	conflicts = append(conflicts, d.workloadConflicts(schedule)...)
	conflicts = append(conflicts, d.typeCapConflicts(schedule)...)
	return conflicts
}

func (d *Detector) slotResourceConflicts(ref SlotRef, assignments []Assignment) []Conflict {
	var conflicts []Conflict
	roomUse := make(map[string][]string)
	staffUse := make(map[string][]string)
	for _, a := range assignments {
		roomUse[a.RoomID] = append(roomUse[a.RoomID], a.ID)
		for _, staffID := range a.StaffIDs {
			staffUse[staffID] = append(staffUse[staffID], a.ID)
		}
	}
	for _, roomID := range sortedKeys(roomUse) {
		if ids := roomUse[roomID]; len(ids) > 1 {
			conflicts = append(conflicts, Conflict{
				Day: ref.Day, Slot: ref.Index, Kind: ConflictRoom, Severity: SeverityHigh,
				Message:       fmt.Sprintf("room %s is double-booked at %s", roomID, ref),
				AssignmentIDs: ids,
			})
		}
	}
	for _, staffID := range sortedKeys(staffUse) {
		if ids := staffUse[staffID]; len(ids) > 1 {
			conflicts = append(conflicts, Conflict{
				Day: ref.Day, Slot: ref.Index, Kind: ConflictStaff, Severity: SeverityHigh,
				Message:       fmt.Sprintf("staff %s is double-booked at %s", staffID, ref),
				AssignmentIDs: ids,
			})
		}
	}
	return conflicts
}

func (d *Detector) dualStaffConflicts(ref SlotRef, assignments []Assignment) []Conflict {
	var conflicts []Conflict
	for _, a := range assignments {
		subject, ok := d.subjects[a.SubjectID]
		if !ok {
			continue
		}
		if subject.Type == SubjectLab && (subject.RequiresDualStaff || d.cs.DualStaffLabs) && len(a.StaffIDs) != 2 {
			conflicts = append(conflicts, Conflict{
				Day: ref.Day, Slot: ref.Index, Kind: ConflictConstraint, Severity: SeverityHigh,
				Message:       fmt.Sprintf("lab %s needs two staff, has %d", subject.Code, len(a.StaffIDs)),
				AssignmentIDs: []string{a.ID},
			})
		}
	}
	return conflicts
}

func (d *Detector) workloadConflicts(schedule *Schedule) []Conflict {
	minutes := schedule.StaffMinutes(d.cs.ClassDurationMinutes)
	var conflicts []Conflict
	for _, staffID := range sortedKeys(minutes) {
		member, ok := d.staff[staffID]
		if !ok || member.MaxHoursPerWeek <= 0 {
			continue
		}
		if minutes[staffID] > member.MaxHoursPerWeek*60 {
			conflicts = append(conflicts, Conflict{
				Kind: ConflictWorkload, Severity: SeverityHigh,
				Message: fmt.Sprintf("staff %s is scheduled %dm, above the %dh/week limit",
					staffID, minutes[staffID], member.MaxHoursPerWeek),
				AssignmentIDs: d.assignmentsForStaff(schedule, staffID),
			})
		}
	}
	return conflicts
}

func (d *Detector) typeCapConflicts(schedule *Schedule) []Conflict {
	if !d.cs.TypeCapsAreHard {
		return nil
	}
	// contiguous blocks count once: a multi-slot lab is one session
	counts := make(map[int]map[SubjectType]int)
	seenBlocks := make(map[string]bool)
	for ref, assignments := range schedule.Slots {
		for _, a := range assignments {
			subject, ok := d.subjects[a.SubjectID]
			if !ok {
				continue
			}
			if a.BlockID != "" {
				key := fmt.Sprintf("%d:%s", ref.Day, a.BlockID)
				if seenBlocks[key] {
					continue
				}
				seenBlocks[key] = true
			}
			if counts[ref.Day] == nil {
				counts[ref.Day] = make(map[SubjectType]int)
			}
			counts[ref.Day][subject.Type]++
		}
	}
	var conflicts []Conflict
	for day := 1; day <= schedule.Grid.WorkingDays; day++ {
		for _, entry := range []struct {
			t   SubjectType
			cap int
		}{
			{SubjectLab, d.cs.MaxLabsPerDay},
			{SubjectCore, d.cs.MaxCorePerDay},
			{SubjectElective, d.cs.MaxElectivesPerDay},
		} {
			if entry.cap <= 0 {
				continue
			}
			if count := counts[day][entry.t]; count > entry.cap {
				conflicts = append(conflicts, Conflict{
					Day: day, Kind: ConflictConstraint, Severity: SeverityMedium,
					Message: fmt.Sprintf("day %d holds %d %s sessions (cap %d)", day, count, entry.t, entry.cap),
				})
			}
		}
	}
	return conflicts
}

func (d *Detector) assignmentsForStaff(schedule *Schedule, staffID string) []string {
	var ids []string
	for _, a := range schedule.Assignments() {
		if a.HasStaff(staffID) {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
