package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Subject represents a course offered by the department.
type Subject struct {
	ID                string         `db:"id" json:"id"`
	Code              string         `db:"code" json:"code"`
	Name              string         `db:"name" json:"name"`
	Type              string         `db:"type" json:"type"`
	DepartmentID      string         `db:"department_id" json:"department_id"`
	Credits           int            `db:"credits" json:"credits"`
	WeeklyHours       int            `db:"weekly_hours" json:"weekly_hours"`
	RequiresDualStaff bool           `db:"requires_dual_staff" json:"requires_dual_staff"`
	AssignedStaffID   *string        `db:"assigned_staff_id" json:"assigned_staff_id,omitempty"`
	AllowedRoomTypes  types.JSONText `db:"allowed_room_types" json:"allowed_room_types"`
	Active            bool           `db:"active" json:"active"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updated_at"`
}

// SubjectFilter captures filtering options for listing subjects.
type SubjectFilter struct {
	DepartmentID string
	Type         string
	Search       string
	Active       *bool
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
