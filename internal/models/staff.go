package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// StaffMember represents a faculty member available for scheduling.
type StaffMember struct {
	ID              string         `db:"id" json:"id"`
	Email           string         `db:"email" json:"email"`
	FullName        string         `db:"full_name" json:"full_name"`
	DepartmentID    string         `db:"department_id" json:"department_id"`
	MaxHoursPerWeek int            `db:"max_hours_per_week" json:"max_hours_per_week"`
	Qualifications  types.JSONText `db:"qualifications" json:"qualifications"`
	Unavailable     types.JSONText `db:"unavailable" json:"unavailable"`
	PreferredSlots  types.JSONText `db:"preferred_slots" json:"preferred_slots"`
	Active          bool           `db:"active" json:"active"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// UnavailableSlot is a single blocked slot stored in the unavailable JSON column.
type UnavailableSlot struct {
	Day  int `json:"day"`
	Slot int `json:"slot"`
}

// StaffFilter captures filtering options for listing staff.
type StaffFilter struct {
	DepartmentID string
	Search       string
	Active       *bool
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
