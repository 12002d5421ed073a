package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campushq/dept-portal-api/internal/models"
	appErrors "github.com/campushq/dept-portal-api/pkg/errors"
)

type subjectRepoStub struct {
	byID    map[string]*models.Subject
	created *models.Subject
	updated *models.Subject
}

func (r *subjectRepoStub) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error) {
	subjects := make([]models.Subject, 0, len(r.byID))
	for _, subject := range r.byID {
		subjects = append(subjects, *subject)
	}
	return subjects, len(subjects), nil
}

func (r *subjectRepoStub) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	subject, ok := r.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return subject, nil
}

func (r *subjectRepoStub) Create(ctx context.Context, subject *models.Subject) error {
	subject.ID = "sub-new"
	r.created = subject
	return nil
}

func (r *subjectRepoStub) Update(ctx context.Context, subject *models.Subject) error {
	r.updated = subject
	return nil
}

func (r *subjectRepoStub) Deactivate(ctx context.Context, id string) error {
	if _, ok := r.byID[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.byID, id)
	return nil
}

func newTestSubjectService(repo *subjectRepoStub) *SubjectService {
	return NewSubjectService(repo, NewCacheService(nil, nil, 0, zap.NewNop(), false), nil, zap.NewNop())
}

func TestSubjectServiceCreate(t *testing.T) {
	repo := &subjectRepoStub{byID: map[string]*models.Subject{}}
	svc := newTestSubjectService(repo)

	subject, err := svc.Create(context.Background(), CreateSubjectRequest{
		Code:             "cs301",
		Name:             "Algorithms",
		Type:             "CORE",
		DepartmentID:     "dept-cs",
		Credits:          4,
		WeeklyHours:      3,
		AllowedRoomTypes: []string{"CLASSROOM"},
	})
	require.NoError(t, err)
	assert.Equal(t, "sub-new", subject.ID)
	assert.Equal(t, "CS301", subject.Code)
	assert.True(t, subject.Active)
	assert.JSONEq(t, `["CLASSROOM"]`, string(subject.AllowedRoomTypes))
}

func TestSubjectServiceCreateRejectsBadType(t *testing.T) {
	svc := newTestSubjectService(&subjectRepoStub{byID: map[string]*models.Subject{}})

	_, err := svc.Create(context.Background(), CreateSubjectRequest{
		Code:         "CS999",
		Name:         "Mystery",
		Type:         "WORKSHOP",
		DepartmentID: "dept-cs",
		Credits:      3,
		WeeklyHours:  2,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSubjectServiceGetNotFound(t *testing.T) {
	svc := newTestSubjectService(&subjectRepoStub{byID: map[string]*models.Subject{}})

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSubjectServiceUpdate(t *testing.T) {
	repo := &subjectRepoStub{byID: map[string]*models.Subject{
		"sub-algo": {ID: "sub-algo", Code: "CS301", Name: "Algorithms", Type: "CORE", DepartmentID: "dept-cs", Credits: 4, WeeklyHours: 3, Active: true},
	}}
	svc := newTestSubjectService(repo)

	subject, err := svc.Update(context.Background(), "sub-algo", UpdateSubjectRequest{
		Name:        "Advanced Algorithms",
		Type:        "CORE",
		Credits:     4,
		WeeklyHours: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, "Advanced Algorithms", subject.Name)
	assert.Equal(t, 4, subject.WeeklyHours)
	require.NotNil(t, repo.updated)
}

func TestSubjectServiceDeactivate(t *testing.T) {
	repo := &subjectRepoStub{byID: map[string]*models.Subject{
		"sub-algo": {ID: "sub-algo", DepartmentID: "dept-cs", Active: true},
	}}
	svc := newTestSubjectService(repo)

	require.NoError(t, svc.Deactivate(context.Background(), "sub-algo"))
	assert.Empty(t, repo.byID)
}
