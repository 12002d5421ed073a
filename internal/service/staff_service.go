package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/campushq/dept-portal-api/internal/models"
	appErrors "github.com/campushq/dept-portal-api/pkg/errors"
)

type staffRepository interface {
	List(ctx context.Context, filter models.StaffFilter) ([]models.StaffMember, int, error)
	FindByID(ctx context.Context, id string) (*models.StaffMember, error)
	Create(ctx context.Context, member *models.StaffMember) error
	Update(ctx context.Context, member *models.StaffMember) error
	Deactivate(ctx context.Context, id string) error
}

// SlotInput identifies a single class slot in payloads.
type SlotInput struct {
	Day  int `json:"day" validate:"required,min=1,max=6"`
	Slot int `json:"slot" validate:"required,min=1,max=12"`
}

// CreateStaffRequest captures fields for registering staff members.
type CreateStaffRequest struct {
	FullName        string      `json:"fullName" validate:"required"`
	Email           string      `json:"email" validate:"required,email"`
	DepartmentID    string      `json:"departmentId" validate:"required"`
	MaxHoursPerWeek int         `json:"maxHoursPerWeek" validate:"required,min=1,max=40"`
	Qualifications  []string    `json:"qualifications"`
	Unavailable     []SlotInput `json:"unavailable" validate:"omitempty,dive"`
	PreferredSlots  []SlotInput `json:"preferredSlots" validate:"omitempty,dive"`
}

// UpdateStaffRequest modifies staff fields.
type UpdateStaffRequest struct {
	FullName        string      `json:"fullName" validate:"required"`
	MaxHoursPerWeek int         `json:"maxHoursPerWeek" validate:"required,min=1,max=40"`
	Qualifications  []string    `json:"qualifications"`
	Unavailable     []SlotInput `json:"unavailable" validate:"omitempty,dive"`
	PreferredSlots  []SlotInput `json:"preferredSlots" validate:"omitempty,dive"`
}

// StaffService handles staff roster workflows.
type StaffService struct {
	repo      staffRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStaffService creates a new staff service.
func NewStaffService(repo staffRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *StaffService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StaffService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// List returns paginated staff members.
func (s *StaffService) List(ctx context.Context, filter models.StaffFilter) ([]models.StaffMember, *models.Pagination, error) {
	members, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list staff")
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
	return members, pagination, nil
}

// Get returns a staff member by identifier.
func (s *StaffService) Get(ctx context.Context, id string) (*models.StaffMember, error) {
	member, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "staff member not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load staff member")
	}
	return member, nil
}

// Create registers a new staff member.
func (s *StaffService) Create(ctx context.Context, req CreateStaffRequest) (*models.StaffMember, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid staff payload")
	}

	member := &models.StaffMember{
		FullName:        req.FullName,
		Email:           req.Email,
		DepartmentID:    req.DepartmentID,
		MaxHoursPerWeek: req.MaxHoursPerWeek,
		Active:          true,
	}
	if err := encodeStaffJSON(member, req.Qualifications, req.Unavailable, req.PreferredSlots); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, member); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create staff member")
	}
	s.invalidate(ctx, member.DepartmentID)
	return member, nil
}

// Update modifies an existing staff member.
func (s *StaffService) Update(ctx context.Context, id string, req UpdateStaffRequest) (*models.StaffMember, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid staff payload")
	}

	member, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	member.FullName = req.FullName
	member.MaxHoursPerWeek = req.MaxHoursPerWeek
	if err := encodeStaffJSON(member, req.Qualifications, req.Unavailable, req.PreferredSlots); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, member); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "staff member not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update staff member")
	}
	s.invalidate(ctx, member.DepartmentID)
	return member, nil
}

// Deactivate soft-deletes a staff member.
func (s *StaffService) Deactivate(ctx context.Context, id string) error {
	member, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "staff member not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate staff member")
	}
	s.invalidate(ctx, member.DepartmentID)
	return nil
}

func (s *StaffService) invalidate(ctx context.Context, departmentID string) {
	if !s.cache.Enabled() {
		return
	}
	if err := s.cache.Invalidate(ctx, fmt.Sprintf("timetable:section:%s:*", departmentID)); err != nil {
		s.logger.Warn("failed to invalidate timetable cache", zap.String("department", departmentID), zap.Error(err))
	}
}

func encodeStaffJSON(member *models.StaffMember, qualifications []string, unavailable, preferred []SlotInput) error {
	encode := func(value interface{}, field string) (types.JSONText, error) {
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode "+field)
		}
		return types.JSONText(raw), nil
	}

	var err error
	if member.Qualifications, err = encode(orEmptyStrings(qualifications), "qualifications"); err != nil {
		return err
	}
	if member.Unavailable, err = encode(slotsFromInput(unavailable), "unavailable slots"); err != nil {
		return err
	}
	if member.PreferredSlots, err = encode(slotsFromInput(preferred), "preferred slots"); err != nil {
		return err
	}
	return nil
}

func orEmptyStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func slotsFromInput(inputs []SlotInput) []models.UnavailableSlot {
	slots := make([]models.UnavailableSlot, 0, len(inputs))
	for _, input := range inputs {
		slots = append(slots, models.UnavailableSlot{Day: input.Day, Slot: input.Slot})
	}
	return slots
}
