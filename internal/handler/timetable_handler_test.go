package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/campushq/dept-portal-api/internal/dto"
	internalmiddleware "github.com/campushq/dept-portal-api/internal/middleware"
	"github.com/campushq/dept-portal-api/internal/models"
	"github.com/campushq/dept-portal-api/internal/service"
	appErrors "github.com/campushq/dept-portal-api/pkg/errors"
)

type timetableServiceMock struct {
	generated dto.GenerateTimetableRequest
	moved     dto.MoveAssignmentRequest
	saveErr   error
	moveResp  *dto.MutationResponse
}

func (m *timetableServiceMock) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error) {
	m.generated = req
	return &dto.GenerateTimetableResponse{ProposalID: "proposal-1", Score: 100, Version: 1}, nil
}

func (m *timetableServiceMock) EnqueueGeneration(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerationJobResponse, error) {
	return &dto.GenerationJobResponse{JobID: "job-1", Status: "PENDING"}, nil
}

func (m *timetableServiceMock) JobStatus(ctx context.Context, jobID string) (*dto.JobStatusResponse, error) {
	if jobID != "job-1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "generation job not found")
	}
	return &dto.JobStatusResponse{JobID: jobID, Status: "COMPLETED"}, nil
}

func (m *timetableServiceMock) Save(ctx context.Context, req dto.SaveTimetableRequest) (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	return "tt-1", nil
}

func (m *timetableServiceMock) List(ctx context.Context, query dto.TimetableQuery) ([]models.Timetable, error) {
	return []models.Timetable{{ID: "tt-1", Version: 1}}, nil
}

func (m *timetableServiceMock) Get(ctx context.Context, id string) (*dto.TimetableDetailResponse, error) {
	return &dto.TimetableDetailResponse{ID: id, Version: 1}, nil
}

func (m *timetableServiceMock) Publish(ctx context.Context, id string) error {
	return nil
}

func (m *timetableServiceMock) Move(ctx context.Context, timetableID string, req dto.MoveAssignmentRequest) (*dto.MutationResponse, error) {
	m.moved = req
	if m.moveResp != nil {
		return m.moveResp, nil
	}
	return &dto.MutationResponse{Applied: true, Version: 2}, nil
}

func (m *timetableServiceMock) Swap(ctx context.Context, timetableID string, req dto.SwapAssignmentsRequest) (*dto.MutationResponse, error) {
	return &dto.MutationResponse{Applied: true, Version: 2}, nil
}

func (m *timetableServiceMock) DeleteAssignment(ctx context.Context, timetableID, assignmentID string, version int) (*dto.MutationResponse, error) {
	return &dto.MutationResponse{Applied: true, Version: version + 1}, nil
}

func (m *timetableServiceMock) Delete(ctx context.Context, id string) error {
	return nil
}

type exporterMock struct{}

func (m *exporterMock) Export(ctx context.Context, id, format string) (*service.ExportResult, error) {
	return &service.ExportResult{FileName: "timetable.csv", ContentType: "text/csv", Data: []byte("Day\n")}, nil
}

func TestTimetableHandlerGenerateSync(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &timetableServiceMock{}
	handler := NewTimetableHandler(mockSvc, &exporterMock{})

	payload := []byte(`{"departmentId":"dept-cs","section":"A"}`)
	req, _ := http.NewRequest(http.MethodPost, "/timetables/generate", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req

	handler.Generate(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "dept-cs", mockSvc.generated.DepartmentID)
	require.Equal(t, "A", mockSvc.generated.Section)
}

func TestTimetableHandlerGenerateAsync(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewTimetableHandler(&timetableServiceMock{}, &exporterMock{})

	payload := []byte(`{"departmentId":"dept-cs","section":"A","async":true}`)
	req, _ := http.NewRequest(http.MethodPost, "/timetables/generate", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req

	handler.Generate(c)

	require.Equal(t, http.StatusAccepted, w.Code)

	var envelope struct {
		Data dto.GenerationJobResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Equal(t, "job-1", envelope.Data.JobID)
}

func TestTimetableHandlerGenerateBadPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewTimetableHandler(&timetableServiceMock{}, &exporterMock{})

	req, _ := http.NewRequest(http.MethodPost, "/timetables/generate", bytes.NewReader([]byte(`{"departmentId":`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req

	handler.Generate(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTimetableHandlerMoveConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &timetableServiceMock{moveResp: &dto.MutationResponse{
		Applied: false, Version: 2,
		Violations: []dto.ViolationDTO{{Rule: "ROOM_OCCUPIED", Hard: true, Message: "room is taken"}},
	}}
	handler := NewTimetableHandler(mockSvc, &exporterMock{})
	router := gin.New()
	router.POST("/timetables/:id/assignments/move", handler.Move)

	payload := []byte(`{"assignmentId":"a-1","dayOfWeek":2,"slotIndex":3,"version":2}`)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/timetables/tt-1/assignments/move", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "a-1", mockSvc.moved.AssignmentID)
}

func TestTimetableHandlerDeleteAssignmentRequiresVersion(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewTimetableHandler(&timetableServiceMock{}, &exporterMock{})
	router := gin.New()
	router.DELETE("/timetables/:id/assignments/:assignmentId", handler.DeleteAssignment)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodDelete, "/timetables/tt-1/assignments/a-1", nil)

	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTimetableHandlerJobStatusNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewTimetableHandler(&timetableServiceMock{}, &exporterMock{})
	router := gin.New()
	router.GET("/timetables/jobs/:jobId", handler.JobStatus)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/timetables/jobs/job-9", nil)

	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestTimetableHandlerGenerateRBAC(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewTimetableHandler(&timetableServiceMock{}, &exporterMock{})
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(internalmiddleware.ContextUserKey, &models.JWTClaims{UserID: "staff-1", Role: models.RoleStaff})
		c.Next()
	})
	router.POST("/timetables/generate",
		internalmiddleware.RBAC(string(models.RoleAdmin), string(models.RoleHOD)),
		handler.Generate)

	payload := []byte(`{"departmentId":"dept-cs","section":"A"}`)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/timetables/generate", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestTimetableHandlerGenerateUnauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewTimetableHandler(&timetableServiceMock{}, &exporterMock{})
	router := gin.New()
	router.POST("/timetables/generate",
		internalmiddleware.RBAC(string(models.RoleAdmin), string(models.RoleHOD)),
		handler.Generate)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/timetables/generate", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")

	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTimetableHandlerExport(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewTimetableHandler(&timetableServiceMock{}, &exporterMock{})
	router := gin.New()
	router.GET("/timetables/:id/export", handler.Export)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/timetables/tt-1/export?format=csv", nil)

	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	require.Contains(t, w.Header().Get("Content-Disposition"), "timetable.csv")
}
