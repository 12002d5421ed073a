package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/campushq/dept-portal-api/internal/dto"
	"github.com/campushq/dept-portal-api/internal/models"
	"github.com/campushq/dept-portal-api/internal/service"
	appErrors "github.com/campushq/dept-portal-api/pkg/errors"
	"github.com/campushq/dept-portal-api/pkg/response"
)

type timetableService interface {
	Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error)
	EnqueueGeneration(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerationJobResponse, error)
	JobStatus(ctx context.Context, jobID string) (*dto.JobStatusResponse, error)
	Save(ctx context.Context, req dto.SaveTimetableRequest) (string, error)
	List(ctx context.Context, query dto.TimetableQuery) ([]models.Timetable, error)
	Get(ctx context.Context, id string) (*dto.TimetableDetailResponse, error)
	Publish(ctx context.Context, id string) error
	Move(ctx context.Context, timetableID string, req dto.MoveAssignmentRequest) (*dto.MutationResponse, error)
	Swap(ctx context.Context, timetableID string, req dto.SwapAssignmentsRequest) (*dto.MutationResponse, error)
	DeleteAssignment(ctx context.Context, timetableID, assignmentID string, version int) (*dto.MutationResponse, error)
	Delete(ctx context.Context, id string) error
}

type timetableExporter interface {
	Export(ctx context.Context, id, format string) (*service.ExportResult, error)
}

// TimetableHandler manages timetable generation and editing endpoints.
type TimetableHandler struct {
	service timetableService
	exports timetableExporter
}

// NewTimetableHandler constructs handler.
func NewTimetableHandler(svc timetableService, exports timetableExporter) *TimetableHandler {
	return &TimetableHandler{service: svc, exports: exports}
}

// Generate godoc
// @Summary Generate a timetable proposal
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetableRequest true "Generation payload"
// @Success 200 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Router /timetables/generate [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	var req dto.GenerateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	if req.Async {
		job, err := h.service.EnqueueGeneration(c.Request.Context(), req)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusAccepted, job, nil)
		return
	}

	result, err := h.service.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// JobStatus godoc
// @Summary Check a generation job
// @Tags Timetables
// @Produce json
// @Param jobId path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/jobs/{jobId} [get]
func (h *TimetableHandler) JobStatus(c *gin.Context) {
	status, err := h.service.JobStatus(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Save godoc
// @Summary Persist a proposal as a timetable version
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.SaveTimetableRequest true "Save payload"
// @Success 201 {object} response.Envelope
// @Router /timetables [post]
func (h *TimetableHandler) Save(c *gin.Context) {
	var req dto.SaveTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	id, err := h.service.Save(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"id": id})
}

// List godoc
// @Summary List timetable versions for a section
// @Tags Timetables
// @Produce json
// @Param departmentId query string true "Department ID"
// @Param section query string true "Section"
// @Success 200 {object} response.Envelope
// @Router /timetables [get]
func (h *TimetableHandler) List(c *gin.Context) {
	query := dto.TimetableQuery{
		DepartmentID: c.Query("departmentId"),
		Section:      c.Query("section"),
	}
	timetables, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, timetables, nil)
}

// Get godoc
// @Summary Fetch a timetable with its entries
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id} [get]
func (h *TimetableHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Publish godoc
// @Summary Publish a draft timetable
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/publish [post]
func (h *TimetableHandler) Publish(c *gin.Context) {
	if err := h.service.Publish(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"status": "PUBLISHED"}, nil)
}

// Move godoc
// @Summary Move an assignment to a new slot
// @Tags Timetables
// @Accept json
// @Produce json
// @Param id path string true "Timetable ID"
// @Param payload body dto.MoveAssignmentRequest true "Move payload"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/assignments/move [post]
func (h *TimetableHandler) Move(c *gin.Context) {
	var req dto.MoveAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.service.Move(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.mutationResponse(c, result)
}

// Swap godoc
// @Summary Swap two assignments
// @Tags Timetables
// @Accept json
// @Produce json
// @Param id path string true "Timetable ID"
// @Param payload body dto.SwapAssignmentsRequest true "Swap payload"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/assignments/swap [post]
func (h *TimetableHandler) Swap(c *gin.Context) {
	var req dto.SwapAssignmentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.service.Swap(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.mutationResponse(c, result)
}

// DeleteAssignment godoc
// @Summary Delete an assignment
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Param assignmentId path string true "Assignment ID"
// @Param version query int true "Expected timetable version"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/assignments/{assignmentId} [delete]
func (h *TimetableHandler) DeleteAssignment(c *gin.Context) {
	version, err := strconv.Atoi(c.Query("version"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "version query parameter is required"))
		return
	}
	result, err := h.service.DeleteAssignment(c.Request.Context(), c.Param("id"), c.Param("assignmentId"), version)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.mutationResponse(c, result)
}

// Delete godoc
// @Summary Delete a draft timetable
// @Tags Timetables
// @Param id path string true "Timetable ID"
// @Success 204
// @Router /timetables/{id} [delete]
func (h *TimetableHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Export a timetable as CSV or PDF
// @Tags Timetables
// @Produce octet-stream
// @Param id path string true "Timetable ID"
// @Param format query string true "csv or pdf"
// @Success 200 {file} binary
// @Router /timetables/{id}/export [get]
func (h *TimetableHandler) Export(c *gin.Context) {
	result, err := h.exports.Export(c.Request.Context(), c.Param("id"), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+result.FileName+`"`)
	c.Data(http.StatusOK, result.ContentType, result.Data)
}

func (h *TimetableHandler) mutationResponse(c *gin.Context, result *dto.MutationResponse) {
	if !result.Applied {
		response.JSON(c, http.StatusConflict, result, nil)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
