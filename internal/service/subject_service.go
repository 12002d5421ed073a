package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/campushq/dept-portal-api/internal/models"
	appErrors "github.com/campushq/dept-portal-api/pkg/errors"
)

type subjectRepository interface {
	List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error)
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	Create(ctx context.Context, subject *models.Subject) error
	Update(ctx context.Context, subject *models.Subject) error
	Deactivate(ctx context.Context, id string) error
}

// CreateSubjectRequest captures fields for creating subjects.
type CreateSubjectRequest struct {
	Code              string   `json:"code" validate:"required"`
	Name              string   `json:"name" validate:"required"`
	Type              string   `json:"type" validate:"required,oneof=CORE ELECTIVE LAB"`
	DepartmentID      string   `json:"departmentId" validate:"required"`
	Credits           int      `json:"credits" validate:"required,min=1,max=10"`
	WeeklyHours       int      `json:"weeklyHours" validate:"required,min=1,max=12"`
	RequiresDualStaff bool     `json:"requiresDualStaff"`
	AssignedStaffID   string   `json:"assignedStaffId"`
	AllowedRoomTypes  []string `json:"allowedRoomTypes" validate:"omitempty,dive,oneof=CLASSROOM LAB SEMINAR_HALL"`
}

// UpdateSubjectRequest modifies subject fields.
type UpdateSubjectRequest struct {
	Name              string   `json:"name" validate:"required"`
	Type              string   `json:"type" validate:"required,oneof=CORE ELECTIVE LAB"`
	Credits           int      `json:"credits" validate:"required,min=1,max=10"`
	WeeklyHours       int      `json:"weeklyHours" validate:"required,min=1,max=12"`
	RequiresDualStaff bool     `json:"requiresDualStaff"`
	AssignedStaffID   string   `json:"assignedStaffId"`
	AllowedRoomTypes  []string `json:"allowedRoomTypes" validate:"omitempty,dive,oneof=CLASSROOM LAB SEMINAR_HALL"`
}

// SubjectService handles subject domain workflows.
type SubjectService struct {
	repo      subjectRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubjectService creates a new subject service.
func NewSubjectService(repo subjectRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *SubjectService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// List returns paginated subjects.
func (s *SubjectService) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, *models.Pagination, error) {
	subjects, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return subjects, pagination, nil
}

// Get returns subject by identifier.
func (s *SubjectService) Get(ctx context.Context, id string) (*models.Subject, error) {
	subject, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	return subject, nil
}

// Create adds a new subject.
func (s *SubjectService) Create(ctx context.Context, req CreateSubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}

	subject := &models.Subject{
		Code:              strings.ToUpper(strings.TrimSpace(req.Code)),
		Name:              req.Name,
		Type:              req.Type,
		DepartmentID:      req.DepartmentID,
		Credits:           req.Credits,
		WeeklyHours:       req.WeeklyHours,
		RequiresDualStaff: req.RequiresDualStaff,
		Active:            true,
	}
	if req.AssignedStaffID != "" {
		subject.AssignedStaffID = &req.AssignedStaffID
	}
	if len(req.AllowedRoomTypes) > 0 {
		raw, err := json.Marshal(req.AllowedRoomTypes)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode room types")
		}
		subject.AllowedRoomTypes = types.JSONText(raw)
	}

	if err := s.repo.Create(ctx, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create subject")
	}
	s.invalidate(ctx, subject.DepartmentID)
	return subject, nil
}

// Update modifies an existing subject.
func (s *SubjectService) Update(ctx context.Context, id string, req UpdateSubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}

	subject, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	subject.Name = req.Name
	subject.Type = req.Type
	subject.Credits = req.Credits
	subject.WeeklyHours = req.WeeklyHours
	subject.RequiresDualStaff = req.RequiresDualStaff
	if req.AssignedStaffID != "" {
		subject.AssignedStaffID = &req.AssignedStaffID
	} else {
		subject.AssignedStaffID = nil
	}
	if len(req.AllowedRoomTypes) > 0 {
		raw, marshalErr := json.Marshal(req.AllowedRoomTypes)
		if marshalErr != nil {
			return nil, appErrors.Wrap(marshalErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode room types")
		}
		subject.AllowedRoomTypes = types.JSONText(raw)
	} else {
		subject.AllowedRoomTypes = nil
	}

	if err := s.repo.Update(ctx, subject); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update subject")
	}
	s.invalidate(ctx, subject.DepartmentID)
	return subject, nil
}

// Deactivate soft-deletes a subject so future generations skip it.
func (s *SubjectService) Deactivate(ctx context.Context, id string) error {
	subject, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate subject")
	}
	s.invalidate(ctx, subject.DepartmentID)
	return nil
}

// invalidate drops cached proposals whose roster just changed.
func (s *SubjectService) invalidate(ctx context.Context, departmentID string) {
	if !s.cache.Enabled() {
		return
	}
	if err := s.cache.Invalidate(ctx, fmt.Sprintf("timetable:section:%s:*", departmentID)); err != nil {
		s.logger.Warn("failed to invalidate timetable cache", zap.String("department", departmentID), zap.Error(err))
	}
}
