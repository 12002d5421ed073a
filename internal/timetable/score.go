package timetable

// Soft-constraint weights. The hard-constraint ordering is fixed by the
// validator; these only arbitrate between already-legal candidates.
const (
	weightWorkloadBalance = 3.0
	weightConsecutive     = 2.0
	weightEarlyLab        = 4.0
	weightFacultyPref     = 2.0
)

// scorer ranks legal candidate placements by soft-constraint quality.
type scorer struct {
	cs    ConstraintSet
	staff map[string]Staff
}

func newScorer(cs ConstraintSet, staff []Staff) *scorer {
	sc := &scorer{cs: cs.Normalize(), staff: make(map[string]Staff, len(staff))}
	for _, m := range staff {
		sc.staff[m.ID] = m
	}
	return sc
}

// score evaluates placing the subject into the given block of slots.
// Higher is better. The result is deterministic for identical inputs.
func (sc *scorer) score(schedule *Schedule, subject Subject, staffIDs []string, refs []SlotRef) float64 {
	var total float64
	for _, ref := range refs {
		if sc.cs.BalanceWorkload {
			total += weightWorkloadBalance * sc.workloadHeadroom(schedule, staffIDs)
		}
		if sc.cs.ConsecutiveClasses {
			total += weightConsecutive * sc.adjacencyBonus(schedule, ref)
		}
		if sc.cs.AvoidEarlyLabs && subject.Type == SubjectLab {
			if ref.Index == 1 {
				total -= weightEarlyLab
			} else {
				total += weightEarlyLab * 0.25
			}
		}
		if sc.cs.OptimizeFacultyPrefs {
			total += weightFacultyPref * sc.preferenceBonus(staffIDs, ref)
		}
	}
	return total
}

// workloadHeadroom rewards staff with spare weekly capacity so load spreads
// evenly instead of saturating one instructor first.
func (sc *scorer) workloadHeadroom(schedule *Schedule, staffIDs []string) float64 {
	minutes := schedule.StaffMinutes(sc.cs.ClassDurationMinutes)
	var headroom float64
	var counted int
	for _, id := range staffIDs {
		member, ok := sc.staff[id]
		if !ok || member.MaxHoursPerWeek <= 0 {
			continue
		}
		limit := float64(member.MaxHoursPerWeek * 60)
		headroom += 1 - float64(minutes[id])/limit
		counted++
	}
	if counted == 0 {
		return 0
	}
	return headroom / float64(counted)
}

// adjacencyBonus rewards slots touching an already-filled slot on the same
// day, which compacts the section's timetable.
func (sc *scorer) adjacencyBonus(schedule *Schedule, ref SlotRef) float64 {
	var bonus float64
	if len(schedule.Slots[SlotRef{Day: ref.Day, Index: ref.Index - 1}]) > 0 {
		bonus += 0.5
	}
	if len(schedule.Slots[SlotRef{Day: ref.Day, Index: ref.Index + 1}]) > 0 {
		bonus += 0.5
	}
	return bonus
}

func (sc *scorer) preferenceBonus(staffIDs []string, ref SlotRef) float64 {
	var bonus float64
	for _, id := range staffIDs {
		member, ok := sc.staff[id]
		if !ok {
			continue
		}
		for _, preferred := range member.PreferredSlots {
			if preferred == ref {
				bonus++
				break
			}
		}
	}
	return bonus
}

// QualityScore condenses a finished schedule into a 0-100 figure for the UI:
// hard conflicts dominate, then gaps and preference misses chip away.
func QualityScore(schedule *Schedule, cs ConstraintSet) float64 {
	cs = cs.Normalize()
	score := 100.0
	score -= float64(len(schedule.Conflicts)) * 25
	score -= gapPenalty(schedule) * 2
	if score < 0 {
		return 0
	}
	return score
}

func gapPenalty(schedule *Schedule) float64 {
	var penalty float64
	for day := 1; day <= schedule.Grid.WorkingDays; day++ {
		var used []int
		for ref := range schedule.Slots {
			if ref.Day == day && len(schedule.Slots[ref]) > 0 {
				used = append(used, ref.Index)
			}
		}
		if len(used) < 2 {
			continue
		}
		min, max := used[0], used[0]
		for _, idx := range used[1:] {
			if idx < min {
				min = idx
			}
			if idx > max {
				max = idx
			}
		}
		penalty += float64(max - min + 1 - len(used))
	}
	return penalty
}
