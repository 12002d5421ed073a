package timetable

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Option tunes a Generate run.
type Option func(*solver)

// WithSharedAvailability supplies the cross-section staff occupancy snapshot
// taken at generation start. The solver treats it as read-only.
func WithSharedAvailability(snapshot AvailabilitySnapshot) Option {
	return func(s *solver) { s.shared = snapshot }
}

// WithLogger attaches a logger to the run.
func WithLogger(logger *zap.Logger) Option {
	return func(s *solver) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// sessionUnit is one indivisible occurrence of a subject, sized to one or
// more contiguous class slots.
type sessionUnit struct {
	Subject   Subject
	Seq       int
	BlockSize int
}

func (u sessionUnit) id() string {
	return fmt.Sprintf("%s-%d", u.Subject.ID, u.Seq)
}

type solver struct {
	cs        ConstraintSet
	subjects  []Subject
	staff     []Staff
	rooms     []Room
	shared    AvailabilitySnapshot
	logger    *zap.Logger
	validator *Validator
	detector  *Detector
	scorer    *scorer
}

// Generate assigns every required subject-hour to a slot/room/staff
// combination that satisfies the hard constraints, iterating to improve the
// soft-constraint score. It never fails on an unsatisfiable instance: the
// best achievable schedule is returned together with an explicit conflict
// list. The only error condition is malformed input. Identical inputs always
// produce identical schedules.
func Generate(ctx context.Context, subjects []Subject, staff []Staff, rooms []Room, cs ConstraintSet, opts ...Option) (*Schedule, []Conflict, error) {
	if violations := ValidateInputs(subjects, staff, rooms, cs); len(violations) > 0 {
		return nil, nil, &InputError{Violations: violations}
	}
	cs = cs.Normalize()

	s := &solver{
		cs:       cs,
		subjects: sortedSubjects(subjects),
		staff:    sortedStaff(staff),
		rooms:    sortedRooms(rooms),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.validator = NewValidator(s.subjects, s.staff, s.rooms, cs, s.shared)
	s.detector = NewDetector(s.subjects, s.staff, cs)
	s.scorer = newScorer(cs, s.staff)

	grid, err := BuildGrid(cs)
	if err != nil {
		return nil, nil, &InputError{Violations: []Violation{{
			Rule: RuleInvalidInput, Severity: SeverityHigh, Hard: true, Message: err.Error(),
		}}}
	}

	schedule := NewSchedule(grid)
	units := s.expandUnits()
	unplaced := s.placeAll(schedule, units)

	best := schedule.Clone()
	bestUnplaced := append([]sessionUnit(nil), unplaced...)

	if cs.AutoResolveConflicts && len(unplaced) > 0 {
		for iter := 0; iter < cs.Iterations; iter++ {
			if ctx.Err() != nil {
				best.Incomplete = true
				s.logger.Warn("generation cancelled mid-repair",
					zap.Int("iteration", iter),
					zap.Int("unplaced", len(bestUnplaced)))
				break
			}
			unplaced = s.repairPass(schedule, unplaced)
			if len(unplaced) < len(bestUnplaced) {
				best = schedule.Clone()
				bestUnplaced = append([]sessionUnit(nil), unplaced...)
			}
			if len(unplaced) == 0 {
				break
			}
		}
	}

	conflicts := s.detector.Detect(best)
	conflicts = append(conflicts, unplacedConflicts(bestUnplaced, cs)...)
	best.Conflicts = conflicts
	best.GeneratedAt = time.Now().UTC()

	s.logger.Info("timetable generated",
		zap.Int("assignments", len(best.Assignments())),
		zap.Int("unplaced", len(bestUnplaced)),
		zap.Int("conflicts", len(conflicts)))
	return best, conflicts, nil
}

// expandUnits converts weekly hour demand into discrete session units and
// orders them most-constrained-first to reduce backtracking: dual-staff labs,
// labs, core, electives, tutorials.
func (s *solver) expandUnits() []sessionUnit {
	var units []sessionUnit
	for _, subject := range s.subjects {
		count := (subject.RequiredHoursPerWeek*60 + s.cs.ClassDurationMinutes - 1) / s.cs.ClassDurationMinutes
		if subject.Type == SubjectLab {
			// labs run as one contiguous multi-slot block per week
			block := count
			if block > s.cs.ClassesPerDay {
				block = s.cs.ClassesPerDay
			}
			seq := 1
			for count > 0 {
				size := block
				if count < size {
					size = count
				}
				units = append(units, sessionUnit{Subject: subject, Seq: seq, BlockSize: size})
				count -= size
				seq++
			}
			continue
		}
		for seq := 1; seq <= count; seq++ {
			units = append(units, sessionUnit{Subject: subject, Seq: seq, BlockSize: 1})
		}
	}

	sort.SliceStable(units, func(i, j int) bool {
		pi, pj := s.unitPriority(units[i]), s.unitPriority(units[j])
		if pi != pj {
			return pi < pj
		}
		if units[i].BlockSize != units[j].BlockSize {
			return units[i].BlockSize > units[j].BlockSize
		}
		qi, qj := s.qualifiedCount(units[i].Subject), s.qualifiedCount(units[j].Subject)
		if qi != qj {
			return qi < qj
		}
		if units[i].Subject.ID != units[j].Subject.ID {
			return units[i].Subject.ID < units[j].Subject.ID
		}
		return units[i].Seq < units[j].Seq
	})
	return units
}

func (s *solver) unitPriority(u sessionUnit) int {
	switch {
	case u.Subject.Type == SubjectLab && (u.Subject.RequiresDualStaff || s.cs.DualStaffLabs):
		return 0
	case u.Subject.Type == SubjectLab:
		return 1
	case u.Subject.Type == SubjectCore:
		return 2
	case u.Subject.Type == SubjectElective:
		return 3
	default:
		return 4
	}
}

func (s *solver) qualifiedCount(subject Subject) int {
	count := 0
	for _, m := range s.staff {
		if m.QualifiedFor(subject.ID) {
			count++
		}
	}
	return count
}

// placeAll runs one full best-fit pass and returns the units it could not place.
func (s *solver) placeAll(schedule *Schedule, units []sessionUnit) []sessionUnit {
	var unplaced []sessionUnit
	for _, unit := range units {
		if !s.placeUnit(schedule, unit) {
			unplaced = append(unplaced, unit)
		}
	}
	return unplaced
}

type candidate struct {
	refs     []SlotRef
	roomID   string
	staffIDs []string
	score    float64
}

// placeUnit tries every legal (slot-block, room, staff) triple and commits
// the highest-scoring one. Ties resolve to the earliest day/time, then the
// lowest room and staff ids, keeping runs deterministic.
func (s *solver) placeUnit(schedule *Schedule, unit sessionUnit) bool {
	var best *candidate
	for _, start := range schedule.Grid.ClassRefs() {
		refs, ok := s.blockRefs(start, unit.BlockSize)
		if !ok {
			continue
		}
		for _, room := range s.rooms {
			if !unit.Subject.AllowsRoom(room.Type) {
				continue
			}
			for _, staffIDs := range s.staffCombos(unit.Subject) {
				if !s.blockIsLegal(schedule, unit, refs, room.ID, staffIDs) {
					continue
				}
				score := s.scorer.score(schedule, unit.Subject, staffIDs, refs)
				cand := candidate{refs: refs, roomID: room.ID, staffIDs: staffIDs, score: score}
				if best == nil || betterCandidate(cand, *best) {
					chosen := cand
					best = &chosen
				}
			}
		}
	}
	if best == nil {
		return false
	}
	s.commit(schedule, unit, *best)
	return true
}

func (s *solver) blockRefs(start SlotRef, size int) ([]SlotRef, bool) {
	if start.Index+size-1 > s.cs.ClassesPerDay {
		return nil, false
	}
	refs := make([]SlotRef, size)
	for i := 0; i < size; i++ {
		refs[i] = SlotRef{Day: start.Day, Index: start.Index + i}
	}
	return refs, true
}

// staffCombos enumerates candidate staffing in deterministic order. When the
// subject has a pre-assigned staff member that member anchors every combo.
func (s *solver) staffCombos(subject Subject) [][]string {
	var qualified []string
	for _, m := range s.staff {
		if m.QualifiedFor(subject.ID) {
			qualified = append(qualified, m.ID)
		}
	}

	dual := subject.Type == SubjectLab && (subject.RequiresDualStaff || s.cs.DualStaffLabs)
	var combos [][]string
	if dual {
		for i := 0; i < len(qualified); i++ {
			for j := i + 1; j < len(qualified); j++ {
				first, second := qualified[i], qualified[j]
				if subject.AssignedStaffID != "" && first != subject.AssignedStaffID && second != subject.AssignedStaffID {
					continue
				}
				combos = append(combos, []string{first, second})
			}
		}
		return combos
	}

	for _, id := range qualified {
		if subject.AssignedStaffID != "" && id != subject.AssignedStaffID {
			continue
		}
		combos = append(combos, []string{id})
	}
	return combos
}

func (s *solver) blockIsLegal(schedule *Schedule, unit sessionUnit, refs []SlotRef, roomID string, staffIDs []string) bool {
	for i, ref := range refs {
		cand := Assignment{
			ID:        fmt.Sprintf("%s-p%d", unit.id(), i+1),
			SubjectID: unit.Subject.ID,
			StaffIDs:  staffIDs,
			RoomID:    roomID,
			Slot:      ref,
		}
		if HasHard(s.validator.Validate(schedule, cand)) {
			return false
		}
	}
	// the per-slot workload check sees only committed slots; account for the
	// whole block before accepting it
	return !s.blockWouldExceedWorkload(schedule, staffIDs, len(refs))
}

func (s *solver) blockWouldExceedWorkload(schedule *Schedule, staffIDs []string, blockSize int) bool {
	if blockSize < 2 {
		return false
	}
	minutes := schedule.StaffMinutes(s.cs.ClassDurationMinutes)
	for _, id := range staffIDs {
		member, ok := s.validator.staff[id]
		if !ok || member.MaxHoursPerWeek <= 0 {
			continue
		}
		if minutes[id]+blockSize*s.cs.ClassDurationMinutes > member.MaxHoursPerWeek*60 {
			return true
		}
	}
	return false
}

func (s *solver) commit(schedule *Schedule, unit sessionUnit, cand candidate) {
	blockID := ""
	if len(cand.refs) > 1 {
		blockID = fmt.Sprintf("%s-b%d", unit.Subject.ID, unit.Seq)
	}
	for i, ref := range cand.refs {
		schedule.Place(Assignment{
			ID:        fmt.Sprintf("%s-p%d", unit.id(), i+1),
			SubjectID: unit.Subject.ID,
			StaffIDs:  append([]string(nil), cand.staffIDs...),
			RoomID:    cand.roomID,
			Slot:      ref,
			BlockID:   blockID,
		})
	}
}

func betterCandidate(a, b candidate) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	if a.refs[0] != b.refs[0] {
		return a.refs[0].Before(b.refs[0])
	}
	if a.roomID != b.roomID {
		return a.roomID < b.roomID
	}
	for i := range a.staffIDs {
		if i >= len(b.staffIDs) {
			break
		}
		if a.staffIDs[i] != b.staffIDs[i] {
			return a.staffIDs[i] < b.staffIDs[i]
		}
	}
	return false
}

// repairPass tries to make room for unplaced units by relocating the most
// movable placed sessions (electives and tutorials first), then retries the
// unplaced units.
func (s *solver) repairPass(schedule *Schedule, unplaced []sessionUnit) []sessionUnit {
	var remaining []sessionUnit
	for _, unit := range unplaced {
		if s.placeUnit(schedule, unit) {
			continue
		}
		if s.relocateOneFor(schedule) && s.placeUnit(schedule, unit) {
			continue
		}
		remaining = append(remaining, unit)
	}
	return remaining
}

// relocateOneFor removes one movable assignment and re-places it elsewhere,
// freeing its original slot. Returns false when nothing could be moved.
func (s *solver) relocateOneFor(schedule *Schedule) bool {
	for _, a := range schedule.Assignments() {
		subject, ok := s.validator.subjects[a.SubjectID]
		if !ok || a.BlockID != "" {
			continue
		}
		if subject.Type != SubjectElective && subject.Type != SubjectTutorial {
			continue
		}
		removed, _ := schedule.Remove(a.ID)
		moved := false
		for _, ref := range schedule.Grid.ClassRefs() {
			if ref == removed.Slot {
				continue
			}
			cand := removed
			cand.Slot = ref
			if !HasHard(s.validator.Validate(schedule, cand)) {
				schedule.Place(cand)
				moved = true
				break
			}
		}
		if moved {
			return true
		}
		schedule.Place(removed)
	}
	return false
}

func unplacedConflicts(units []sessionUnit, cs ConstraintSet) []Conflict {
	var conflicts []Conflict
	for _, unit := range units {
		hours := float64(unit.BlockSize*cs.ClassDurationMinutes) / 60
		conflicts = append(conflicts, Conflict{
			Kind:     ConflictConstraint,
			Severity: SeverityHigh,
			Message:  fmt.Sprintf("%.1fh of %s unscheduled: no legal slot/room/staff combination", hours, unit.Subject.Code),
		})
	}
	return conflicts
}

func sortedSubjects(subjects []Subject) []Subject {
	out := append([]Subject(nil), subjects...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortedStaff(staff []Staff) []Staff {
	out := append([]Staff(nil), staff...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortedRooms(rooms []Room) []Room {
	out := append([]Room(nil), rooms...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// InputError reports malformed roster or constraint input rejected before
// scheduling begins.
type InputError struct {
	Violations []Violation
}

func (e *InputError) Error() string {
	if len(e.Violations) == 0 {
		return "invalid scheduling input"
	}
	return fmt.Sprintf("invalid scheduling input: %s", e.Violations[0].Message)
}
