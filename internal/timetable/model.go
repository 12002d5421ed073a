package timetable

import (
	"fmt"
	"sort"
	"time"
)

// SubjectType categorises a subject for per-day caps and ordering.
type SubjectType string

const (
	SubjectCore     SubjectType = "CORE"
	SubjectElective SubjectType = "ELECTIVE"
	SubjectLab      SubjectType = "LAB"
	SubjectTutorial SubjectType = "TUTORIAL"
)

// RoomType restricts which rooms may host a subject.
type RoomType string

const (
	RoomClassroom RoomType = "CLASSROOM"
	RoomLab       RoomType = "LAB"
)

// Severity grades violations and conflicts.
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// ConflictKind identifies the resource dimension of a conflict.
type ConflictKind string

const (
	ConflictRoom       ConflictKind = "ROOM"
	ConflictStaff      ConflictKind = "STAFF"
	ConflictWorkload   ConflictKind = "WORKLOAD"
	ConflictConstraint ConflictKind = "CONSTRAINT"
)

// Rule names used by the validator and detector.
const (
	RuleRoomOccupied   = "ROOM_OCCUPIED"
	RuleStaffOccupied  = "STAFF_OCCUPIED"
	RuleQualification  = "STAFF_NOT_QUALIFIED"
	RuleWorkload       = "WORKLOAD_EXCEEDED"
	RuleTypeCap        = "TYPE_CAP_EXCEEDED"
	RuleDualStaff      = "DUAL_STAFF_REQUIRED"
	RuleBreakSlot      = "BREAK_SLOT"
	RuleRoomType       = "ROOM_TYPE_MISMATCH"
	RuleEarlyLab       = "EARLY_LAB"
	RuleGap            = "SCHEDULE_GAP"
	RuleMinCore        = "MIN_CORE_NOT_MET"
	RuleMaxElectives   = "MAX_ELECTIVES_EXCEEDED"
	RuleMaxCredits     = "MAX_CREDITS_EXCEEDED"
	RuleMaxLabs        = "MAX_LABS_EXCEEDED"
	RuleUnplaced       = "UNPLACED_SESSION"
	RuleInvalidInput   = "INVALID_INPUT"
	RuleStaleVersion   = "STALE_VERSION"
	RuleUnknownSubject = "UNKNOWN_SUBJECT"
)

// Subject describes one weekly teaching requirement.
type Subject struct {
	ID                   string      `json:"id"`
	Code                 string      `json:"code"`
	Name                 string      `json:"name"`
	Type                 SubjectType `json:"type"`
	RequiredHoursPerWeek int         `json:"requiredHoursPerWeek"`
	Credits              int         `json:"credits"`
	AssignedStaffID      string      `json:"assignedStaffId,omitempty"`
	RequiresDualStaff    bool        `json:"requiresDualStaff"`
	AllowedRoomTypes     []RoomType  `json:"allowedRoomTypes"`
}

// AllowsRoom reports whether the subject may be hosted in the given room type.
// An empty allow-list defaults to classrooms for non-labs and labs for labs.
func (s Subject) AllowsRoom(rt RoomType) bool {
	if len(s.AllowedRoomTypes) == 0 {
		if s.Type == SubjectLab {
			return rt == RoomLab
		}
		return rt == RoomClassroom
	}
	for _, allowed := range s.AllowedRoomTypes {
		if allowed == rt {
			return true
		}
	}
	return false
}

// SlotRef addresses one assignable class slot on the weekly grid.
type SlotRef struct {
	Day   int `json:"day"`
	Index int `json:"index"`
}

// Before imposes the canonical day-then-index ordering.
func (r SlotRef) Before(other SlotRef) bool {
	if r.Day != other.Day {
		return r.Day < other.Day
	}
	return r.Index < other.Index
}

func (r SlotRef) String() string {
	return fmt.Sprintf("d%d/s%d", r.Day, r.Index)
}

// Staff describes an instructor available to the scheduler.
type Staff struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	MaxHoursPerWeek int       `json:"maxHoursPerWeek"`
	Unavailable     []SlotRef `json:"unavailable,omitempty"`
	PreferredSlots  []SlotRef `json:"preferredSlots,omitempty"`
	Qualifications  []string  `json:"qualifications"`
}

// QualifiedFor reports whether the staff member may teach the subject.
func (st Staff) QualifiedFor(subjectID string) bool {
	for _, id := range st.Qualifications {
		if id == subjectID {
			return true
		}
	}
	return false
}

// Room describes a teaching venue.
type Room struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Type     RoomType `json:"type"`
	Capacity int      `json:"capacity"`
}

// TimeSlot is one cell of the derived weekly grid.
type TimeSlot struct {
	Day        int    `json:"day"`
	Index      int    `json:"index"` // 1-based assignable position, 0 for breaks
	Start      string `json:"start"` // HH:MM
	End        string `json:"end"`   // HH:MM
	IsBreak    bool   `json:"isBreak"`
	BreakLabel string `json:"breakLabel,omitempty"`
}

// Ref returns the grid address of an assignable slot.
func (t TimeSlot) Ref() SlotRef {
	return SlotRef{Day: t.Day, Index: t.Index}
}

// Assignment places a subject session into one class slot.
type Assignment struct {
	ID        string   `json:"id"`
	SubjectID string   `json:"subjectId"`
	StaffIDs  []string `json:"staffIds"`
	RoomID    string   `json:"roomId"`
	Slot      SlotRef  `json:"slot"`
	BlockID   string   `json:"blockId,omitempty"` // shared by slots of one contiguous lab block
}

// HasStaff reports whether the assignment involves the given staff member.
func (a Assignment) HasStaff(staffID string) bool {
	for _, id := range a.StaffIDs {
		if id == staffID {
			return true
		}
	}
	return false
}

// ConstraintSet is the full scheduling configuration.
type ConstraintSet struct {
	WorkingDays          int   `json:"workingDays"`
	StartTime            string `json:"startTime"`
	EndTime              string `json:"endTime"`
	ClassDurationMinutes int   `json:"classDurationMinutes"`
	BreakDurationMinutes int   `json:"breakDurationMinutes"`
	ClassesPerDay        int   `json:"classesPerDay"`
	BreakAfter           []int `json:"breakAfter,omitempty"` // class indexes followed by a break

	MaxLabsPerDay      int `json:"maxLabsPerDay"`
	MaxCorePerDay      int `json:"maxCorePerDay"`
	MaxElectivesPerDay int `json:"maxElectivesPerDay"`

	DualStaffLabs            bool `json:"dualStaffLabs"`
	AvoidEarlyLabs           bool `json:"avoidEarlyLabs"`
	ConsecutiveClasses       bool `json:"consecutiveClasses"`
	AutoResolveConflicts     bool `json:"autoResolveConflicts"`
	OptimizeFacultyPrefs     bool `json:"optimizeFacultyPreferences"`
	BalanceWorkload          bool `json:"balanceWorkload"`
	TypeCapsAreHard          bool `json:"typeCapsAreHard"`
	Iterations               int  `json:"iterations"`
}

// Normalize fills unset configuration with portal defaults.
func (cs ConstraintSet) Normalize() ConstraintSet {
	if cs.WorkingDays != 5 && cs.WorkingDays != 6 {
		cs.WorkingDays = 5
	}
	if cs.StartTime == "" {
		cs.StartTime = "09:00"
	}
	if cs.ClassDurationMinutes <= 0 {
		cs.ClassDurationMinutes = 60
	}
	if cs.BreakDurationMinutes <= 0 {
		cs.BreakDurationMinutes = 15
	}
	if cs.ClassesPerDay <= 0 {
		cs.ClassesPerDay = 6
	}
	if len(cs.BreakAfter) == 0 {
		cs.BreakAfter = defaultBreakAfter(cs.ClassesPerDay)
	}
	if cs.Iterations <= 0 {
		cs.Iterations = 10
	}
	return cs
}

func defaultBreakAfter(classesPerDay int) []int {
	// short break mid-morning, lunch after the fourth class
	switch {
	case classesPerDay >= 5:
		return []int{2, 4}
	case classesPerDay >= 3:
		return []int{2}
	default:
		return nil
	}
}

// Violation reports one failed rule for a candidate placement.
type Violation struct {
	Rule          string   `json:"rule"`
	Severity      Severity `json:"severity"`
	Hard          bool     `json:"hard"`
	Message       string   `json:"message"`
	AssignmentIDs []string `json:"assignmentIds,omitempty"`
}

// HasHard reports whether any violation in the list blocks placement.
func HasHard(violations []Violation) bool {
	for _, v := range violations {
		if v.Hard {
			return true
		}
	}
	return false
}

// Conflict is a detected hard-constraint violation in a placed schedule.
type Conflict struct {
	Day           int          `json:"day"`
	Slot          int          `json:"slot"`
	Kind          ConflictKind `json:"kind"`
	Severity      Severity     `json:"severity"`
	Message       string       `json:"message"`
	AssignmentIDs []string     `json:"assignmentIds,omitempty"`
}

// AvailabilitySnapshot captures cross-section staff occupancy taken at
// generation start. Staff shared between sections are read-only here; callers
// serialise generations against overlapping staff pools externally.
type AvailabilitySnapshot map[string]map[SlotRef]bool

// Busy reports whether the staff member is occupied elsewhere at the slot.
func (s AvailabilitySnapshot) Busy(staffID string, ref SlotRef) bool {
	if s == nil {
		return false
	}
	return s[staffID][ref]
}

// Reserve marks a slot occupied for the staff member.
func (s AvailabilitySnapshot) Reserve(staffID string, ref SlotRef) {
	if s == nil {
		return
	}
	if s[staffID] == nil {
		s[staffID] = make(map[SlotRef]bool)
	}
	s[staffID][ref] = true
}

// Schedule is the weekly mapping of slots to assignments for one section.
type Schedule struct {
	Grid        *SlotGrid                `json:"grid"`
	Slots       map[SlotRef][]Assignment `json:"-"`
	Version     int                      `json:"version"`
	GeneratedAt time.Time                `json:"generatedAt"`
	Incomplete  bool                     `json:"incomplete"`
	Conflicts   []Conflict               `json:"conflicts"`
}

// NewSchedule returns an empty schedule over the grid.
func NewSchedule(grid *SlotGrid) *Schedule {
	return &Schedule{
		Grid:    grid,
		Slots:   make(map[SlotRef][]Assignment),
		Version: 1,
	}
}

// Clone deep-copies the schedule so mutators can stay transactional.
func (s *Schedule) Clone() *Schedule {
	clone := &Schedule{
		Grid:        s.Grid,
		Slots:       make(map[SlotRef][]Assignment, len(s.Slots)),
		Version:     s.Version,
		GeneratedAt: s.GeneratedAt,
		Incomplete:  s.Incomplete,
	}
	for ref, assignments := range s.Slots {
		copied := make([]Assignment, len(assignments))
		for i, a := range assignments {
			copied[i] = a
			copied[i].StaffIDs = append([]string(nil), a.StaffIDs...)
		}
		clone.Slots[ref] = copied
	}
	clone.Conflicts = append([]Conflict(nil), s.Conflicts...)
	return clone
}

// Place appends an assignment to its slot.
func (s *Schedule) Place(a Assignment) {
	s.Slots[a.Slot] = append(s.Slots[a.Slot], a)
}

// Remove deletes the assignment with the given id, reporting success.
func (s *Schedule) Remove(assignmentID string) (Assignment, bool) {
	for ref, assignments := range s.Slots {
		for i, a := range assignments {
			if a.ID == assignmentID {
				s.Slots[ref] = append(assignments[:i:i], assignments[i+1:]...)
				if len(s.Slots[ref]) == 0 {
					delete(s.Slots, ref)
				}
				return a, true
			}
		}
	}
	return Assignment{}, false
}

// Find returns the assignment with the given id.
func (s *Schedule) Find(assignmentID string) (Assignment, bool) {
	for _, assignments := range s.Slots {
		for _, a := range assignments {
			if a.ID == assignmentID {
				return a, true
			}
		}
	}
	return Assignment{}, false
}

// Assignments returns every placed assignment in canonical order.
func (s *Schedule) Assignments() []Assignment {
	refs := s.sortedRefs()
	var out []Assignment
	for _, ref := range refs {
		out = append(out, s.Slots[ref]...)
	}
	return out
}

// StaffMinutes sums scheduled minutes per staff member.
func (s *Schedule) StaffMinutes(classDurationMinutes int) map[string]int {
	totals := make(map[string]int)
	for _, assignments := range s.Slots {
		for _, a := range assignments {
			for _, staffID := range a.StaffIDs {
				totals[staffID] += classDurationMinutes
			}
		}
	}
	return totals
}

func (s *Schedule) sortedRefs() []SlotRef {
	refs := make([]SlotRef, 0, len(s.Slots))
	for ref := range s.Slots {
		refs = append(refs, ref)
	}
	sortSlotRefs(refs)
	return refs
}

func sortSlotRefs(refs []SlotRef) {
	sort.Slice(refs, func(i, j int) bool { return refs[i].Before(refs[j]) })
}
