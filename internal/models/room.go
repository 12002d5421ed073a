package models

import "time"

// Room represents a teaching space managed by the department.
type Room struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Type         string    `db:"type" json:"type"`
	DepartmentID string    `db:"department_id" json:"department_id"`
	Capacity     int       `db:"capacity" json:"capacity"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
