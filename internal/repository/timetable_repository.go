package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/campushq/dept-portal-api/internal/models"
)

// TimetableRepository persists versioned timetables and their entries.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository constructs repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

func (r *TimetableRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// CreateVersioned inserts a timetable assigning the next version for the
// department-section tuple.
func (r *TimetableRepository) CreateVersioned(ctx context.Context, exec sqlx.ExtContext, timetable *models.Timetable) error {
	if timetable == nil {
		return fmt.Errorf("timetable payload is nil")
	}
	if timetable.DepartmentID == "" || timetable.Section == "" {
		return fmt.Errorf("department_id and section are required")
	}
	if timetable.ID == "" {
		timetable.ID = uuid.NewString()
	}
	if timetable.Status == "" {
		timetable.Status = models.TimetableStatusDraft
	}
	if len(timetable.Meta) == 0 {
		timetable.Meta = types.JSONText(`{}`)
	}
	now := time.Now().UTC()
	if timetable.CreatedAt.IsZero() {
		timetable.CreatedAt = now
	}
	timetable.UpdatedAt = now

	target := r.exec(exec)

	const nextVersionQuery = `SELECT COALESCE(MAX(version), 0) + 1 FROM timetables WHERE department_id = $1 AND section = $2`
	if err := sqlx.GetContext(ctx, target, &timetable.Version, nextVersionQuery, timetable.DepartmentID, timetable.Section); err != nil {
		return fmt.Errorf("compute next timetable version: %w", err)
	}

	const insertQuery = `
INSERT INTO timetables (id, department_id, section, version, status, score, incomplete, meta, created_at, updated_at)
VALUES (:id, :department_id, :section, :version, :status, :score, :incomplete, :meta, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, target, insertQuery, timetable); err != nil {
		return fmt.Errorf("insert timetable: %w", err)
	}
	return nil
}

// UpsertEntries stores the entry rows for a timetable.
func (r *TimetableRepository) UpsertEntries(ctx context.Context, exec sqlx.ExtContext, entries []models.TimetableEntry) error {
	if len(entries) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()

	const query = `
INSERT INTO timetable_entries (id, timetable_id, assignment_key, day_of_week, slot_index, subject_id, room_id, staff_ids, block_id, created_at)
VALUES (:id, :timetable_id, :assignment_key, :day_of_week, :slot_index, :subject_id, :room_id, :staff_ids, :block_id, :created_at)
ON CONFLICT (timetable_id, assignment_key) DO UPDATE
SET day_of_week = EXCLUDED.day_of_week, slot_index = EXCLUDED.slot_index, room_id = EXCLUDED.room_id, staff_ids = EXCLUDED.staff_ids, block_id = EXCLUDED.block_id`
	for i := range entries {
		if entries[i].ID == "" {
			entries[i].ID = uuid.NewString()
		}
		if entries[i].CreatedAt.IsZero() {
			entries[i].CreatedAt = now
		}
		if _, err := sqlx.NamedExecContext(ctx, target, query, entries[i]); err != nil {
			return fmt.Errorf("upsert timetable entry: %w", err)
		}
	}
	return nil
}

// ReplaceEntries swaps the full entry set of a timetable in one shot.
func (r *TimetableRepository) ReplaceEntries(ctx context.Context, exec sqlx.ExtContext, timetableID string, entries []models.TimetableEntry) error {
	target := r.exec(exec)
	const deleteQuery = `DELETE FROM timetable_entries WHERE timetable_id = $1`
	if _, err := target.ExecContext(ctx, deleteQuery, timetableID); err != nil {
		return fmt.Errorf("clear timetable entries: %w", err)
	}
	return r.UpsertEntries(ctx, exec, entries)
}

// BumpVersion increments the stored version only when the caller holds the
// current one. A zero-row update signals a concurrent edit.
func (r *TimetableRepository) BumpVersion(ctx context.Context, exec sqlx.ExtContext, id string, expectedVersion int) (int, error) {
	target := r.exec(exec)
	const query = `UPDATE timetables SET version = version + 1, updated_at = $1 WHERE id = $2 AND version = $3`
	result, err := target.ExecContext(ctx, query, time.Now().UTC(), id, expectedVersion)
	if err != nil {
		return 0, fmt.Errorf("bump timetable version: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("timetable version rows affected: %w", err)
	}
	if affected == 0 {
		return 0, sql.ErrNoRows
	}
	return expectedVersion + 1, nil
}

// ListByDepartmentSection returns all versions for the tuple, newest first.
func (r *TimetableRepository) ListByDepartmentSection(ctx context.Context, departmentID, section string) ([]models.Timetable, error) {
	const query = `SELECT id, department_id, section, version, status, score, incomplete, meta, created_at, updated_at
FROM timetables WHERE department_id = $1 AND section = $2 ORDER BY version DESC`
	var timetables []models.Timetable
	if err := r.db.SelectContext(ctx, &timetables, query, departmentID, section); err != nil {
		return nil, fmt.Errorf("list timetables: %w", err)
	}
	return timetables, nil
}

// FindByID loads a timetable by its identifier.
func (r *TimetableRepository) FindByID(ctx context.Context, id string) (*models.Timetable, error) {
	const query = `SELECT id, department_id, section, version, status, score, incomplete, meta, created_at, updated_at FROM timetables WHERE id = $1`
	var timetable models.Timetable
	if err := r.db.GetContext(ctx, &timetable, query, id); err != nil {
		return nil, err
	}
	return &timetable, nil
}

// EntriesByTimetable returns entry rows in canonical day/slot order.
func (r *TimetableRepository) EntriesByTimetable(ctx context.Context, timetableID string) ([]models.TimetableEntry, error) {
	const query = `SELECT id, timetable_id, assignment_key, day_of_week, slot_index, subject_id, room_id, staff_ids, block_id, created_at
FROM timetable_entries WHERE timetable_id = $1 ORDER BY day_of_week ASC, slot_index ASC, assignment_key ASC`
	var entries []models.TimetableEntry
	if err := r.db.SelectContext(ctx, &entries, query, timetableID); err != nil {
		return nil, fmt.Errorf("list timetable entries: %w", err)
	}
	return entries, nil
}

// PublishedEntriesForOtherSections returns entries of published timetables in
// the department outside the given section. Feeds the shared-staff snapshot.
func (r *TimetableRepository) PublishedEntriesForOtherSections(ctx context.Context, departmentID, section string) ([]models.TimetableEntry, error) {
	const query = `SELECT e.id, e.timetable_id, e.assignment_key, e.day_of_week, e.slot_index, e.subject_id, e.room_id, e.staff_ids, e.block_id, e.created_at
FROM timetable_entries e
JOIN timetables t ON t.id = e.timetable_id
WHERE t.department_id = $1 AND t.section <> $2 AND t.status = $3
ORDER BY e.day_of_week ASC, e.slot_index ASC`
	var entries []models.TimetableEntry
	if err := r.db.SelectContext(ctx, &entries, query, departmentID, section, models.TimetableStatusPublished); err != nil {
		return nil, fmt.Errorf("list published entries: %w", err)
	}
	return entries, nil
}

// UpdateStatus updates the status (and optionally meta) of a timetable.
func (r *TimetableRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.TimetableStatus, meta types.JSONText) error {
	target := r.exec(exec)
	now := time.Now().UTC()

	var (
		query string
		args  []interface{}
	)
	if len(meta) > 0 {
		query = `UPDATE timetables SET status = $1, meta = $2, updated_at = $3 WHERE id = $4`
		args = []interface{}{status, meta, now, id}
	} else {
		query = `UPDATE timetables SET status = $1, updated_at = $2 WHERE id = $3`
		args = []interface{}{status, now, id}
	}
	result, err := target.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update timetable status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("timetable status rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a stored timetable version.
func (r *TimetableRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM timetables WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete timetable: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("timetable rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
