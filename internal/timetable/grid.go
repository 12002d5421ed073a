package timetable

import (
	"fmt"
	"strconv"
	"strings"
)

// SlotGrid is the deterministic weekly grid derived from a ConstraintSet.
type SlotGrid struct {
	WorkingDays          int        `json:"workingDays"`
	ClassesPerDay        int        `json:"classesPerDay"`
	ClassDurationMinutes int        `json:"classDurationMinutes"`
	Slots                []TimeSlot `json:"slots"` // ordered day asc, time asc, breaks included
}

// BuildGrid expands the constraint set into the ordered weekly slot sequence.
// Every day carries the same pattern: classesPerDay class slots with breaks
// inserted after the configured class indexes.
func BuildGrid(cs ConstraintSet) (*SlotGrid, error) {
	cs = cs.Normalize()

	start, err := parseClock(cs.StartTime)
	if err != nil {
		return nil, fmt.Errorf("parse start time: %w", err)
	}
	var endLimit int
	if cs.EndTime != "" {
		endLimit, err = parseClock(cs.EndTime)
		if err != nil {
			return nil, fmt.Errorf("parse end time: %w", err)
		}
	}

	breakAfter := make(map[int]bool, len(cs.BreakAfter))
	for _, idx := range cs.BreakAfter {
		breakAfter[idx] = true
	}

	grid := &SlotGrid{
		WorkingDays:          cs.WorkingDays,
		ClassesPerDay:        cs.ClassesPerDay,
		ClassDurationMinutes: cs.ClassDurationMinutes,
	}

	for day := 1; day <= cs.WorkingDays; day++ {
		cursor := start
		for class := 1; class <= cs.ClassesPerDay; class++ {
			slotEnd := cursor + cs.ClassDurationMinutes
			if endLimit > 0 && slotEnd > endLimit {
				return nil, fmt.Errorf("grid overflow: %d classes of %dm do not fit between %s and %s",
					cs.ClassesPerDay, cs.ClassDurationMinutes, cs.StartTime, cs.EndTime)
			}
			grid.Slots = append(grid.Slots, TimeSlot{
				Day:   day,
				Index: class,
				Start: formatClock(cursor),
				End:   formatClock(slotEnd),
			})
			cursor = slotEnd
			if breakAfter[class] && class < cs.ClassesPerDay {
				label := "BREAK"
				if class >= 4 {
					label = "LUNCH"
				}
				grid.Slots = append(grid.Slots, TimeSlot{
					Day:        day,
					Start:      formatClock(cursor),
					End:        formatClock(cursor + cs.BreakDurationMinutes),
					IsBreak:    true,
					BreakLabel: label,
				})
				cursor += cs.BreakDurationMinutes
			}
		}
	}
	return grid, nil
}

// At returns the class slot at the given reference.
func (g *SlotGrid) At(ref SlotRef) (TimeSlot, bool) {
	if ref.Day < 1 || ref.Day > g.WorkingDays || ref.Index < 1 || ref.Index > g.ClassesPerDay {
		return TimeSlot{}, false
	}
	for _, slot := range g.Slots {
		if slot.Day == ref.Day && slot.Index == ref.Index && !slot.IsBreak {
			return slot, true
		}
	}
	return TimeSlot{}, false
}

// ClassRefs returns every assignable slot reference in canonical order.
func (g *SlotGrid) ClassRefs() []SlotRef {
	refs := make([]SlotRef, 0, g.WorkingDays*g.ClassesPerDay)
	for day := 1; day <= g.WorkingDays; day++ {
		for class := 1; class <= g.ClassesPerDay; class++ {
			refs = append(refs, SlotRef{Day: day, Index: class})
		}
	}
	return refs
}

// DaySlots returns the ordered slots of one day, breaks included.
func (g *SlotGrid) DaySlots(day int) []TimeSlot {
	var out []TimeSlot
	for _, slot := range g.Slots {
		if slot.Day == day {
			out = append(out, slot)
		}
	}
	return out
}

func parseClock(raw string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(raw), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock value %q", raw)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid clock value %q", raw)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid clock value %q", raw)
	}
	if hours < 0 || hours > 23 || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("clock value %q out of range", raw)
	}
	return hours*60 + minutes, nil
}

func formatClock(totalMinutes int) string {
	return fmt.Sprintf("%02d:%02d", totalMinutes/60, totalMinutes%60)
}
