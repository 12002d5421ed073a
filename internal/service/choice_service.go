package service

import (
	"context"
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campushq/dept-portal-api/internal/dto"
	"github.com/campushq/dept-portal-api/internal/models"
	"github.com/campushq/dept-portal-api/internal/timetable"
	appErrors "github.com/campushq/dept-portal-api/pkg/errors"
)

type staffFinder interface {
	FindByID(ctx context.Context, id string) (*models.StaffMember, error)
}

type subjectFinder interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

// ChoiceConfig holds the department limits applied to subject choice forms.
type ChoiceConfig struct {
	MinCore      int
	MaxElectives int
	MaxCredits   int
	MaxLabs      int
}

// ChoiceService validates staff subject selections before the choice form
// is accepted.
type ChoiceService struct {
	staff     staffFinder
	subjects  subjectFinder
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ChoiceConfig
}

// NewChoiceService wires the choice validator.
func NewChoiceService(staff staffFinder, subjects subjectFinder, validate *validator.Validate, logger *zap.Logger, cfg ChoiceConfig) *ChoiceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChoiceService{staff: staff, subjects: subjects, validator: validate, logger: logger, cfg: cfg}
}

// Validate checks the selection against qualification and load limits.
func (s *ChoiceService) Validate(ctx context.Context, req dto.ValidateChoicesRequest) (*dto.ValidateChoicesResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid choice payload")
	}

	member, err := s.staff.FindByID(ctx, req.StaffID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "staff member not found")
	}

	engineStaff := timetable.Staff{
		ID:              member.ID,
		Name:            member.FullName,
		MaxHoursPerWeek: member.MaxHoursPerWeek,
	}
	if len(member.Qualifications) > 0 {
		if err := json.Unmarshal(member.Qualifications, &engineStaff.Qualifications); err != nil {
			s.logger.Warn("malformed qualifications", zap.String("staff", member.ID), zap.Error(err))
		}
	}

	seen := make(map[string]bool, len(req.SubjectIDs))
	selections := make([]timetable.Subject, 0, len(req.SubjectIDs))
	for _, id := range req.SubjectIDs {
		if seen[id] {
			return nil, appErrors.Clone(appErrors.ErrValidation, "duplicate subject in selection")
		}
		seen[id] = true

		subject, err := s.subjects.FindByID(ctx, id)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found: "+id)
		}
		selections = append(selections, timetable.Subject{
			ID:                   subject.ID,
			Code:                 subject.Code,
			Name:                 subject.Name,
			Type:                 timetable.SubjectType(subject.Type),
			RequiredHoursPerWeek: subject.WeeklyHours,
			Credits:              subject.Credits,
		})
	}

	cc := timetable.ChoiceConstraints{
		MinCore:      s.cfg.MinCore,
		MaxElectives: s.cfg.MaxElectives,
		MaxCredits:   s.cfg.MaxCredits,
		MaxLabs:      s.cfg.MaxLabs,
	}
	violations := timetable.ValidateChoices(engineStaff, selections, cc)

	resp := &dto.ValidateChoicesResponse{Valid: len(violations) == 0}
	for _, v := range violations {
		resp.Violations = append(resp.Violations, dto.ViolationFromEngine(v))
	}
	return resp, nil
}
