package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// TimetableStatus represents lifecycle phases for stored timetables.
type TimetableStatus string

const (
	TimetableStatusDraft     TimetableStatus = "DRAFT"
	TimetableStatusPublished TimetableStatus = "PUBLISHED"
	TimetableStatusArchived  TimetableStatus = "ARCHIVED"
)

// Timetable captures a versioned timetable for a department section.
type Timetable struct {
	ID           string          `db:"id" json:"id"`
	DepartmentID string          `db:"department_id" json:"department_id"`
	Section      string          `db:"section" json:"section"`
	Version      int             `db:"version" json:"version"`
	Status       TimetableStatus `db:"status" json:"status"`
	Score        float64         `db:"score" json:"score"`
	Incomplete   bool            `db:"incomplete" json:"incomplete"`
	Meta         types.JSONText  `db:"meta" json:"meta"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// TimetableEntry is a single placed session inside a stored timetable.
// StaffIDs holds a JSON array so dual-staff labs keep both members on one row.
type TimetableEntry struct {
	ID            string         `db:"id" json:"id"`
	TimetableID   string         `db:"timetable_id" json:"timetable_id"`
	AssignmentKey string         `db:"assignment_key" json:"assignment_key"`
	DayOfWeek     int            `db:"day_of_week" json:"day_of_week"`
	SlotIndex     int            `db:"slot_index" json:"slot_index"`
	SubjectID     string         `db:"subject_id" json:"subject_id"`
	RoomID        string         `db:"room_id" json:"room_id"`
	StaffIDs      types.JSONText `db:"staff_ids" json:"staff_ids"`
	BlockID       *string        `db:"block_id" json:"block_id,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
}

// TimetableMeta represents lightweight metadata for list views.
type TimetableMeta struct {
	ID        string          `json:"id"`
	Version   int             `json:"version"`
	Status    TimetableStatus `json:"status"`
	Score     float64         `json:"score"`
	CreatedAt time.Time       `json:"created_at"`
}
