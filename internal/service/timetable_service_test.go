package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campushq/dept-portal-api/internal/dto"
	"github.com/campushq/dept-portal-api/internal/models"
	"github.com/campushq/dept-portal-api/internal/timetable"
	appErrors "github.com/campushq/dept-portal-api/pkg/errors"
)

type rosterStub struct {
	subjects []models.Subject
}

func (r *rosterStub) ListByDepartment(ctx context.Context, departmentID string) ([]models.Subject, error) {
	return r.subjects, nil
}

type staffStub struct{ staff []models.StaffMember }

func (s *staffStub) ListByDepartment(ctx context.Context, departmentID string) ([]models.StaffMember, error) {
	return s.staff, nil
}

type roomStub struct{ rooms []models.Room }

func (r *roomStub) ListByDepartment(ctx context.Context, departmentID string) ([]models.Room, error) {
	return r.rooms, nil
}

type timetableStoreStub struct {
	record  *models.Timetable
	entries []models.TimetableEntry

	created        *models.Timetable
	upserted       []models.TimetableEntry
	replaced       []models.TimetableEntry
	bumpedTo       int
	statusSet      models.TimetableStatus
	bumpStale      bool
	otherSections  []models.TimetableEntry
	deletedID      string
	deleteNotFound bool
}

func (s *timetableStoreStub) CreateVersioned(ctx context.Context, exec sqlx.ExtContext, record *models.Timetable) error {
	record.ID = "tt-1"
	record.Version = 1
	s.created = record
	return nil
}

func (s *timetableStoreStub) UpsertEntries(ctx context.Context, exec sqlx.ExtContext, entries []models.TimetableEntry) error {
	s.upserted = entries
	return nil
}

func (s *timetableStoreStub) ReplaceEntries(ctx context.Context, exec sqlx.ExtContext, timetableID string, entries []models.TimetableEntry) error {
	s.replaced = entries
	return nil
}

func (s *timetableStoreStub) BumpVersion(ctx context.Context, exec sqlx.ExtContext, id string, expectedVersion int) (int, error) {
	if s.bumpStale {
		return 0, sql.ErrNoRows
	}
	s.bumpedTo = expectedVersion + 1
	return s.bumpedTo, nil
}

func (s *timetableStoreStub) ListByDepartmentSection(ctx context.Context, departmentID, section string) ([]models.Timetable, error) {
	if s.record == nil {
		return nil, nil
	}
	return []models.Timetable{*s.record}, nil
}

func (s *timetableStoreStub) FindByID(ctx context.Context, id string) (*models.Timetable, error) {
	if s.record == nil {
		return nil, sql.ErrNoRows
	}
	return s.record, nil
}

func (s *timetableStoreStub) EntriesByTimetable(ctx context.Context, timetableID string) ([]models.TimetableEntry, error) {
	return s.entries, nil
}

func (s *timetableStoreStub) PublishedEntriesForOtherSections(ctx context.Context, departmentID, section string) ([]models.TimetableEntry, error) {
	return s.otherSections, nil
}

func (s *timetableStoreStub) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.TimetableStatus, meta types.JSONText) error {
	s.statusSet = status
	return nil
}

func (s *timetableStoreStub) Delete(ctx context.Context, id string) error {
	if s.deleteNotFound {
		return sql.ErrNoRows
	}
	s.deletedID = id
	return nil
}

type txProviderStub struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderStub(t *testing.T) *txProviderStub {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &txProviderStub{db: sqlx.NewDb(db, "sqlmock"), mock: mock}
}

func (p *txProviderStub) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return p.db.BeginTxx(ctx, opts)
}

func testRoster() (*rosterStub, *staffStub, *roomStub) {
	subjects := &rosterStub{subjects: []models.Subject{
		{
			ID: "sub-algo", Code: "CS301", Name: "Algorithms", Type: "CORE",
			Credits: 4, WeeklyHours: 3, AllowedRoomTypes: types.JSONText(`["CLASSROOM"]`),
		},
		{
			ID: "sub-elec", Code: "CS351", Name: "Graphics", Type: "ELECTIVE",
			Credits: 3, WeeklyHours: 2, AllowedRoomTypes: types.JSONText(`["CLASSROOM"]`),
		},
	}}
	staff := &staffStub{staff: []models.StaffMember{
		{
			ID: "st-rao", FullName: "Prof. Rao", MaxHoursPerWeek: 18,
			Qualifications: types.JSONText(`["sub-algo","sub-elec"]`),
		},
		{
			ID: "st-iyer", FullName: "Dr. Iyer", MaxHoursPerWeek: 18,
			Qualifications: types.JSONText(`["sub-algo","sub-elec"]`),
		},
	}}
	rooms := &roomStub{rooms: []models.Room{
		{ID: "r-101", Name: "Room 101", Type: "CLASSROOM", Capacity: 60},
	}}
	return subjects, staff, rooms
}

func newTestTimetableService(t *testing.T, store *timetableStoreStub) (*TimetableService, *txProviderStub) {
	t.Helper()
	subjects, staff, rooms := testRoster()
	tx := newTxProviderStub(t)
	svc := NewTimetableService(
		subjects, staff, rooms, store, tx,
		NewCacheService(nil, nil, time.Minute, zap.NewNop(), false),
		NewMetricsService(),
		nil, zap.NewNop(),
		TimetableConfig{
			ProposalTTL:       time.Minute,
			GenerationTimeout: 10 * time.Second,
			RepairIterations:  10,
		},
	)
	return svc, tx
}

func TestTimetableServiceGenerate(t *testing.T) {
	svc, _ := newTestTimetableService(t, &timetableStoreStub{})

	resp, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{
		DepartmentID: "dept-cs",
		Section:      "A",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.ProposalID)

	// 3 core hours + 2 elective hours
	assert.Len(t, resp.Assignments, 5)
	assert.Empty(t, resp.Conflicts)
	assert.False(t, resp.Incomplete)
	assert.Equal(t, float64(100), resp.Score)
}

func TestTimetableServiceGenerateRequiresDepartment(t *testing.T) {
	svc, _ := newTestTimetableService(t, &timetableStoreStub{})

	_, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{Section: "A"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceSavePersistsProposal(t *testing.T) {
	store := &timetableStoreStub{}
	svc, tx := newTestTimetableService(t, store)

	resp, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{
		DepartmentID: "dept-cs",
		Section:      "A",
	})
	require.NoError(t, err)

	tx.mock.ExpectBegin()
	tx.mock.ExpectCommit()

	id, err := svc.Save(context.Background(), dto.SaveTimetableRequest{ProposalID: resp.ProposalID})
	require.NoError(t, err)
	assert.Equal(t, "tt-1", id)

	require.NotNil(t, store.created)
	assert.Equal(t, models.TimetableStatusDraft, store.created.Status)
	assert.Len(t, store.upserted, len(resp.Assignments))
	require.NoError(t, tx.mock.ExpectationsWereMet())

	// saved proposals are consumed
	_, err = svc.Save(context.Background(), dto.SaveTimetableRequest{ProposalID: resp.ProposalID})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceSaveUnknownProposal(t *testing.T) {
	svc, _ := newTestTimetableService(t, &timetableStoreStub{})

	_, err := svc.Save(context.Background(), dto.SaveTimetableRequest{ProposalID: "missing"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func storedDraft() *timetableStoreStub {
	return &timetableStoreStub{
		record: &models.Timetable{
			ID: "tt-1", DepartmentID: "dept-cs", Section: "A",
			Version: 2, Status: models.TimetableStatusDraft,
		},
		entries: []models.TimetableEntry{
			{
				TimetableID: "tt-1", AssignmentKey: "sub-algo-1-p1",
				DayOfWeek: 1, SlotIndex: 1, SubjectID: "sub-algo",
				RoomID: "r-101", StaffIDs: types.JSONText(`["st-rao"]`),
			},
			{
				TimetableID: "tt-1", AssignmentKey: "sub-elec-1-p1",
				DayOfWeek: 2, SlotIndex: 1, SubjectID: "sub-elec",
				RoomID: "r-101", StaffIDs: types.JSONText(`["st-iyer"]`),
			},
		},
	}
}

func TestTimetableServiceMove(t *testing.T) {
	store := storedDraft()
	svc, tx := newTestTimetableService(t, store)

	tx.mock.ExpectBegin()
	tx.mock.ExpectCommit()

	resp, err := svc.Move(context.Background(), "tt-1", dto.MoveAssignmentRequest{
		AssignmentID: "sub-algo-1-p1",
		DayOfWeek:    3,
		SlotIndex:    2,
		Version:      2,
	})
	require.NoError(t, err)
	assert.True(t, resp.Applied)
	assert.Equal(t, 3, resp.Version)
	assert.Equal(t, 3, store.bumpedTo)
	require.Len(t, store.replaced, 2)
	require.NoError(t, tx.mock.ExpectationsWereMet())

	var moved bool
	for _, a := range resp.Assignments {
		if a.ID == "sub-algo-1-p1" {
			moved = true
			assert.Equal(t, 3, a.DayOfWeek)
			assert.Equal(t, 2, a.SlotIndex)
		}
	}
	assert.True(t, moved)
}

func TestTimetableServiceMoveStaleVersion(t *testing.T) {
	store := storedDraft()
	svc, _ := newTestTimetableService(t, store)

	resp, err := svc.Move(context.Background(), "tt-1", dto.MoveAssignmentRequest{
		AssignmentID: "sub-algo-1-p1",
		DayOfWeek:    3,
		SlotIndex:    2,
		Version:      1,
	})
	require.NoError(t, err)
	assert.False(t, resp.Applied)
	assert.Equal(t, 2, resp.Version)
	require.Len(t, resp.Violations, 1)
	assert.Equal(t, timetable.RuleStaleVersion, resp.Violations[0].Rule)
	assert.Empty(t, store.replaced)
}

func TestTimetableServiceMoveRejectsOccupiedSlot(t *testing.T) {
	store := storedDraft()
	// put the second session on the same slot the move targets
	store.entries[1].DayOfWeek = 3
	store.entries[1].SlotIndex = 2
	svc, _ := newTestTimetableService(t, store)

	resp, err := svc.Move(context.Background(), "tt-1", dto.MoveAssignmentRequest{
		AssignmentID: "sub-algo-1-p1",
		DayOfWeek:    3,
		SlotIndex:    2,
		Version:      2,
	})
	require.NoError(t, err)
	assert.False(t, resp.Applied)
	assert.NotEmpty(t, resp.Violations)
	assert.Empty(t, store.replaced)
}

func TestTimetableServiceMutationsRejectPublished(t *testing.T) {
	store := storedDraft()
	store.record.Status = models.TimetableStatusPublished
	svc, _ := newTestTimetableService(t, store)

	_, err := svc.Move(context.Background(), "tt-1", dto.MoveAssignmentRequest{
		AssignmentID: "sub-algo-1-p1",
		DayOfWeek:    3,
		SlotIndex:    2,
		Version:      2,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPublished.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceSwap(t *testing.T) {
	store := storedDraft()
	svc, tx := newTestTimetableService(t, store)

	tx.mock.ExpectBegin()
	tx.mock.ExpectCommit()

	resp, err := svc.Swap(context.Background(), "tt-1", dto.SwapAssignmentsRequest{
		FirstID:  "sub-algo-1-p1",
		SecondID: "sub-elec-1-p1",
		Version:  2,
	})
	require.NoError(t, err)
	assert.True(t, resp.Applied)

	slots := map[string][2]int{}
	for _, a := range resp.Assignments {
		slots[a.ID] = [2]int{a.DayOfWeek, a.SlotIndex}
	}
	assert.Equal(t, [2]int{2, 1}, slots["sub-algo-1-p1"])
	assert.Equal(t, [2]int{1, 1}, slots["sub-elec-1-p1"])
}

func TestTimetableServiceDeleteAssignment(t *testing.T) {
	store := storedDraft()
	svc, tx := newTestTimetableService(t, store)

	tx.mock.ExpectBegin()
	tx.mock.ExpectCommit()

	resp, err := svc.DeleteAssignment(context.Background(), "tt-1", "sub-algo-1-p1", 2)
	require.NoError(t, err)
	assert.True(t, resp.Applied)
	require.Len(t, store.replaced, 1)
	assert.Equal(t, "sub-elec-1-p1", store.replaced[0].AssignmentKey)
}

func TestTimetableServiceDeleteRequiresDraft(t *testing.T) {
	store := storedDraft()
	store.record.Status = models.TimetableStatusPublished
	svc, _ := newTestTimetableService(t, store)

	err := svc.Delete(context.Background(), "tt-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestTimetableServicePublish(t *testing.T) {
	store := storedDraft()
	svc, _ := newTestTimetableService(t, store)

	require.NoError(t, svc.Publish(context.Background(), "tt-1"))
	assert.Equal(t, models.TimetableStatusPublished, store.statusSet)
}

func TestTimetableServicePublishRejectsIncomplete(t *testing.T) {
	store := storedDraft()
	store.record.Incomplete = true
	svc, _ := newTestTimetableService(t, store)

	err := svc.Publish(context.Background(), "tt-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceGet(t *testing.T) {
	store := storedDraft()
	svc, _ := newTestTimetableService(t, store)

	detail, err := svc.Get(context.Background(), "tt-1")
	require.NoError(t, err)
	assert.Equal(t, "tt-1", detail.ID)
	assert.Equal(t, 2, detail.Version)
	require.Len(t, detail.Assignments, 2)
	assert.Equal(t, []string{"st-rao"}, detail.Assignments[0].StaffIDs)
}

func TestTimetableServiceJobLifecycle(t *testing.T) {
	svc, _ := newTestTimetableService(t, &timetableStoreStub{})

	resp, err := svc.EnqueueGeneration(context.Background(), dto.GenerateTimetableRequest{
		DepartmentID: "dept-cs",
		Section:      "A",
	})
	require.NoError(t, err)
	assert.Equal(t, "PENDING", resp.Status)

	job, err := svc.JobStatus(context.Background(), resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, "PENDING", job.Status)

	_, err = svc.JobStatus(context.Background(), "unknown-job")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceSharedStaffBlocked(t *testing.T) {
	store := &timetableStoreStub{
		// Prof. Rao already teaches section B in every early slot of day 1
		otherSections: []models.TimetableEntry{
			{DayOfWeek: 1, SlotIndex: 1, SubjectID: "other", RoomID: "r-x", StaffIDs: types.JSONText(`["st-rao"]`)},
		},
	}
	svc, _ := newTestTimetableService(t, store)

	resp, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{
		DepartmentID: "dept-cs",
		Section:      "A",
	})
	require.NoError(t, err)

	for _, a := range resp.Assignments {
		for _, staffID := range a.StaffIDs {
			if staffID == "st-rao" {
				occupied := a.DayOfWeek == 1 && a.SlotIndex == 1
				assert.False(t, occupied, "st-rao double booked across sections")
			}
		}
	}
}
