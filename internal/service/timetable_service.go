package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/campushq/dept-portal-api/internal/dto"
	"github.com/campushq/dept-portal-api/internal/models"
	"github.com/campushq/dept-portal-api/internal/timetable"
	appErrors "github.com/campushq/dept-portal-api/pkg/errors"
	"github.com/campushq/dept-portal-api/pkg/jobs"
)

type subjectReader interface {
	ListByDepartment(ctx context.Context, departmentID string) ([]models.Subject, error)
}

type staffReader interface {
	ListByDepartment(ctx context.Context, departmentID string) ([]models.StaffMember, error)
}

type roomReader interface {
	ListByDepartment(ctx context.Context, departmentID string) ([]models.Room, error)
}

type timetableStore interface {
	CreateVersioned(ctx context.Context, exec sqlx.ExtContext, timetable *models.Timetable) error
	UpsertEntries(ctx context.Context, exec sqlx.ExtContext, entries []models.TimetableEntry) error
	ReplaceEntries(ctx context.Context, exec sqlx.ExtContext, timetableID string, entries []models.TimetableEntry) error
	BumpVersion(ctx context.Context, exec sqlx.ExtContext, id string, expectedVersion int) (int, error)
	ListByDepartmentSection(ctx context.Context, departmentID, section string) ([]models.Timetable, error)
	FindByID(ctx context.Context, id string) (*models.Timetable, error)
	EntriesByTimetable(ctx context.Context, timetableID string) ([]models.TimetableEntry, error)
	PublishedEntriesForOtherSections(ctx context.Context, departmentID, section string) ([]models.TimetableEntry, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.TimetableStatus, meta types.JSONText) error
	Delete(ctx context.Context, id string) error
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// TimetableConfig governs generator behaviour.
type TimetableConfig struct {
	ProposalTTL       time.Duration
	GenerationTimeout time.Duration
	RepairIterations  int
	Workers           int
	ResultCacheTTL    time.Duration
	Defaults          timetable.ConstraintSet
}

// TimetableService orchestrates roster loading, timetable generation,
// persistence and slot-level edits.
type TimetableService struct {
	subjects   subjectReader
	staff      staffReader
	rooms      roomReader
	timetables timetableStore
	tx         txProvider
	cache      *CacheService
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        TimetableConfig
	store      *proposalStore
	queue      *jobs.Queue

	jobsMu    sync.RWMutex
	jobStates map[string]*dto.JobStatusResponse

	// serialises generations so shared staff across sections never race
	generateMu sync.Mutex
}

// NewTimetableService wires generator dependencies.
func NewTimetableService(
	subjects subjectReader,
	staff staffReader,
	rooms roomReader,
	timetables timetableStore,
	tx txProvider,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg TimetableConfig,
) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ProposalTTL <= 0 {
		cfg.ProposalTTL = 30 * time.Minute
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = 30 * time.Second
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	s := &TimetableService{
		subjects:   subjects,
		staff:      staff,
		rooms:      rooms,
		timetables: timetables,
		tx:         tx,
		cache:      cache,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
		cfg:        cfg,
		store:      newProposalStore(cfg.ProposalTTL),
		jobStates:  make(map[string]*dto.JobStatusResponse),
	}
	s.queue = jobs.NewQueue("timetable-generation", s.handleGenerationJob, jobs.QueueConfig{
		Workers: cfg.Workers,
		Logger:  logger,
	})
	return s
}

// Start launches the background generation workers.
func (s *TimetableService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the background workers.
func (s *TimetableService) Stop() {
	s.queue.Stop()
}

// Generate runs the scheduling engine synchronously and caches the proposal.
func (s *TimetableService) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generate payload")
	}

	subjects, staff, rooms, err := s.loadRoster(ctx, req.DepartmentID)
	if err != nil {
		return nil, err
	}

	cs := s.constraintSet(req.Constraints)

	s.generateMu.Lock()
	defer s.generateMu.Unlock()

	snapshot, err := s.sharedAvailability(ctx, req.DepartmentID, req.Section)
	if err != nil {
		return nil, err
	}

	genCtx, cancel := context.WithTimeout(ctx, s.cfg.GenerationTimeout)
	defer cancel()

	start := time.Now()
	schedule, conflicts, err := timetable.Generate(genCtx, subjects, staff, rooms, cs,
		timetable.WithSharedAvailability(snapshot),
		timetable.WithLogger(s.logger),
	)
	if err != nil {
		var inputErr *timetable.InputError
		if errors.As(err, &inputErr) {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, inputErr.Error())
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "timetable generation failed")
	}

	schedule.Conflicts = conflicts
	score := timetable.QualityScore(schedule, cs)
	duration := time.Since(start)
	s.metrics.ObserveGeneration(duration, score, len(conflicts))
	s.logger.Sugar().Infow("timetable generated",
		"department", req.DepartmentID,
		"section", req.Section,
		"assignments", len(schedule.Assignments()),
		"conflicts", len(conflicts),
		"score", score,
		"incomplete", schedule.Incomplete,
		"duration", duration,
	)

	proposal := timetableProposal{
		ProposalID:   uuid.NewString(),
		DepartmentID: req.DepartmentID,
		Section:      req.Section,
		Constraints:  cs,
		Schedule:     schedule,
		Score:        score,
		RequestedAt:  time.Now().UTC(),
	}
	s.store.Save(proposal)

	resp := proposalResponse(proposal)
	if s.cache.Enabled() {
		key := fmt.Sprintf("timetable:proposal:%s", proposal.ProposalID)
		_ = s.cache.Set(ctx, key, resp, s.cfg.ResultCacheTTL)
	}
	return resp, nil
}

// EnqueueGeneration schedules an asynchronous generation job.
func (s *TimetableService) EnqueueGeneration(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerationJobResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generate payload")
	}

	jobID := uuid.NewString()
	s.setJobState(&dto.JobStatusResponse{JobID: jobID, Status: "PENDING"})

	err := s.queue.Enqueue(jobs.Job{
		ID:      jobID,
		Type:    "generate",
		Payload: req,
	})
	if err != nil {
		s.setJobState(&dto.JobStatusResponse{JobID: jobID, Status: "FAILED", Error: err.Error()})
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue generation job")
	}
	return &dto.GenerationJobResponse{JobID: jobID, Status: "PENDING"}, nil
}

// JobStatus reports the state of an asynchronous generation job.
func (s *TimetableService) JobStatus(ctx context.Context, jobID string) (*dto.JobStatusResponse, error) {
	s.jobsMu.RLock()
	state, ok := s.jobStates[jobID]
	s.jobsMu.RUnlock()
	if ok {
		return state, nil
	}
	if s.cache.Enabled() {
		var cached dto.JobStatusResponse
		if hit, _ := s.cache.Get(ctx, fmt.Sprintf("timetable:job:%s", jobID), &cached); hit {
			return &cached, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "generation job not found")
}

func (s *TimetableService) handleGenerationJob(ctx context.Context, job jobs.Job) error {
	req, ok := job.Payload.(dto.GenerateTimetableRequest)
	if !ok {
		s.setJobState(&dto.JobStatusResponse{JobID: job.ID, Status: "FAILED", Error: "malformed job payload"})
		return nil
	}
	s.setJobState(&dto.JobStatusResponse{JobID: job.ID, Status: "RUNNING"})

	resp, err := s.Generate(ctx, req)
	if err != nil {
		s.setJobState(&dto.JobStatusResponse{JobID: job.ID, Status: "FAILED", Error: err.Error()})
		return nil
	}
	s.setJobState(&dto.JobStatusResponse{JobID: job.ID, Status: "COMPLETED", Result: resp})
	return nil
}

func (s *TimetableService) setJobState(state *dto.JobStatusResponse) {
	s.jobsMu.Lock()
	s.jobStates[state.JobID] = state
	s.jobsMu.Unlock()
	if s.cache.Enabled() {
		_ = s.cache.Set(context.Background(), fmt.Sprintf("timetable:job:%s", state.JobID), state, s.cfg.ResultCacheTTL)
	}
}

// Save persists a proposal as the next timetable version for its section.
func (s *TimetableService) Save(ctx context.Context, req dto.SaveTimetableRequest) (string, error) {
	if err := s.validator.Struct(req); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid save payload")
	}
	proposal, ok := s.store.Get(req.ProposalID)
	if !ok {
		return "", appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}
	if req.Publish && len(proposal.Schedule.Conflicts) > 0 {
		return "", appErrors.Clone(appErrors.ErrConflict, "proposal with unresolved conflicts cannot be published")
	}
	if s.tx == nil {
		return "", appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	metaPayload := map[string]any{
		"score":       proposal.Score,
		"generated":   proposal.RequestedAt,
		"constraints": proposal.Constraints,
		"algorithm":   "heuristic_v1",
	}
	metaBytes, marshalErr := json.Marshal(metaPayload)
	if marshalErr != nil {
		err = appErrors.Wrap(marshalErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode timetable metadata")
		return "", err
	}

	status := models.TimetableStatusDraft
	if req.Publish {
		status = models.TimetableStatusPublished
	}
	record := &models.Timetable{
		DepartmentID: proposal.DepartmentID,
		Section:      proposal.Section,
		Status:       status,
		Score:        proposal.Score,
		Incomplete:   proposal.Schedule.Incomplete,
		Meta:         types.JSONText(metaBytes),
	}
	if err = s.timetables.CreateVersioned(ctx, tx, record); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create timetable")
		return "", err
	}

	entries := entriesFromSchedule(record.ID, proposal.Schedule)
	if err = s.timetables.UpsertEntries(ctx, tx, entries); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist timetable entries")
		return "", err
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit timetable transaction")
		return "", err
	}

	s.store.Delete(req.ProposalID)
	if s.cache.Enabled() {
		_ = s.cache.Invalidate(ctx, fmt.Sprintf("timetable:section:%s:%s:*", proposal.DepartmentID, proposal.Section))
	}
	return record.ID, nil
}

// List returns stored timetables for a department section.
func (s *TimetableService) List(ctx context.Context, query dto.TimetableQuery) ([]models.Timetable, error) {
	if query.DepartmentID == "" || query.Section == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "departmentId and section are required")
	}
	list, err := s.timetables.ListByDepartmentSection(ctx, query.DepartmentID, query.Section)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetables")
	}
	return list, nil
}

// Get returns a stored timetable with its entries.
func (s *TimetableService) Get(ctx context.Context, id string) (*dto.TimetableDetailResponse, error) {
	record, entries, err := s.loadStored(ctx, id)
	if err != nil {
		return nil, err
	}
	assignments := make([]dto.AssignmentDTO, 0, len(entries))
	for _, entry := range entries {
		assignments = append(assignments, assignmentFromEntry(entry))
	}
	return &dto.TimetableDetailResponse{
		ID:           record.ID,
		DepartmentID: record.DepartmentID,
		Section:      record.Section,
		Version:      record.Version,
		Status:       string(record.Status),
		Score:        record.Score,
		Incomplete:   record.Incomplete,
		Assignments:  assignments,
	}, nil
}

// Publish marks a draft timetable as the active version for its section.
func (s *TimetableService) Publish(ctx context.Context, id string) error {
	record, err := s.timetables.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	if record.Status != models.TimetableStatusDraft {
		return appErrors.Clone(appErrors.ErrConflict, "only draft timetables can be published")
	}
	if record.Incomplete {
		return appErrors.Clone(appErrors.ErrConflict, "incomplete timetables cannot be published")
	}
	if err := s.timetables.UpdateStatus(ctx, nil, id, models.TimetableStatusPublished, nil); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish timetable")
	}
	return nil
}

// Move relocates one assignment inside a stored timetable, validating the
// target slot before anything is written.
func (s *TimetableService) Move(ctx context.Context, timetableID string, req dto.MoveAssignmentRequest) (*dto.MutationResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid move payload")
	}
	return s.mutate(ctx, timetableID, req.Version, func(m *timetable.Mutator, schedule *timetable.Schedule) (*timetable.Schedule, []timetable.Violation) {
		to := timetable.SlotRef{Day: req.DayOfWeek, Index: req.SlotIndex}
		return m.Move(schedule, req.AssignmentID, to, req.RoomID, schedule.Version, req.Force)
	})
}

// Swap exchanges the slots and rooms of two assignments.
func (s *TimetableService) Swap(ctx context.Context, timetableID string, req dto.SwapAssignmentsRequest) (*dto.MutationResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid swap payload")
	}
	return s.mutate(ctx, timetableID, req.Version, func(m *timetable.Mutator, schedule *timetable.Schedule) (*timetable.Schedule, []timetable.Violation) {
		return m.Swap(schedule, req.FirstID, req.SecondID, schedule.Version)
	})
}

// DeleteAssignment removes an assignment. Lab blocks are removed whole.
func (s *TimetableService) DeleteAssignment(ctx context.Context, timetableID, assignmentID string, version int) (*dto.MutationResponse, error) {
	return s.mutate(ctx, timetableID, version, func(m *timetable.Mutator, schedule *timetable.Schedule) (*timetable.Schedule, []timetable.Violation) {
		return m.Delete(schedule, assignmentID, schedule.Version)
	})
}

// Delete removes a draft timetable version.
func (s *TimetableService) Delete(ctx context.Context, id string) error {
	record, err := s.timetables.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	if record.Status != models.TimetableStatusDraft {
		return appErrors.Clone(appErrors.ErrConflict, "only draft timetables can be deleted")
	}
	if err := s.timetables.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete timetable")
	}
	return nil
}

type mutationFunc func(m *timetable.Mutator, schedule *timetable.Schedule) (*timetable.Schedule, []timetable.Violation)

func (s *TimetableService) mutate(ctx context.Context, timetableID string, version int, apply mutationFunc) (*dto.MutationResponse, error) {
	record, entries, err := s.loadStored(ctx, timetableID)
	if err != nil {
		return nil, err
	}
	if record.Status == models.TimetableStatusPublished {
		return nil, appErrors.Clone(appErrors.ErrPublished, "")
	}
	if version != record.Version {
		return &dto.MutationResponse{
			Applied: false,
			Version: record.Version,
			Violations: []dto.ViolationDTO{{
				Rule: timetable.RuleStaleVersion, Hard: true,
				Message: fmt.Sprintf("expected version %d, got %d", record.Version, version),
			}},
		}, nil
	}

	subjects, staff, rooms, err := s.loadRoster(ctx, record.DepartmentID)
	if err != nil {
		return nil, err
	}
	cs := s.constraintSet(dto.ConstraintOverrides{})

	schedule, err := scheduleFromEntries(entries, cs, record.Version)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rebuild schedule")
	}

	snapshot, err := s.sharedAvailability(ctx, record.DepartmentID, record.Section)
	if err != nil {
		return nil, err
	}

	mutator := timetable.NewMutator(subjects, staff, rooms, cs, snapshot)
	mutated, violations := apply(mutator, schedule)
	if mutated == schedule {
		// blocked edit, nothing was written
		resp := &dto.MutationResponse{Applied: false, Version: record.Version}
		for _, v := range violations {
			resp.Violations = append(resp.Violations, dto.ViolationFromEngine(v))
		}
		return resp, nil
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.timetables.ReplaceEntries(ctx, tx, timetableID, entriesFromSchedule(timetableID, mutated)); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist timetable entries")
		return nil, err
	}
	newVersion, bumpErr := s.timetables.BumpVersion(ctx, tx, timetableID, record.Version)
	if bumpErr != nil {
		if errors.Is(bumpErr, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrStaleVersion, "")
			return nil, err
		}
		err = appErrors.Wrap(bumpErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to bump timetable version")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit timetable transaction")
		return nil, err
	}

	if s.cache.Enabled() {
		_ = s.cache.Invalidate(ctx, fmt.Sprintf("timetable:section:%s:%s:*", record.DepartmentID, record.Section))
	}

	resp := &dto.MutationResponse{Applied: true, Version: newVersion}
	for _, v := range violations {
		resp.Violations = append(resp.Violations, dto.ViolationFromEngine(v))
	}
	for _, a := range mutated.Assignments() {
		resp.Assignments = append(resp.Assignments, dto.AssignmentFromEngine(a))
	}
	for _, c := range mutated.Conflicts {
		resp.Conflicts = append(resp.Conflicts, dto.ConflictFromEngine(c))
	}
	return resp, nil
}

func (s *TimetableService) loadStored(ctx context.Context, id string) (*models.Timetable, []models.TimetableEntry, error) {
	record, err := s.timetables.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	entries, err := s.timetables.EntriesByTimetable(ctx, id)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable entries")
	}
	return record, entries, nil
}

func (s *TimetableService) loadRoster(ctx context.Context, departmentID string) ([]timetable.Subject, []timetable.Staff, []timetable.Room, error) {
	subjectRows, err := s.subjects.ListByDepartment(ctx, departmentID)
	if err != nil {
		return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subjects")
	}
	if len(subjectRows) == 0 {
		return nil, nil, nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "department has no active subjects")
	}
	staffRows, err := s.staff.ListByDepartment(ctx, departmentID)
	if err != nil {
		return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load staff")
	}
	if len(staffRows) == 0 {
		return nil, nil, nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "department has no active staff")
	}
	roomRows, err := s.rooms.ListByDepartment(ctx, departmentID)
	if err != nil {
		return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rooms")
	}
	if len(roomRows) == 0 {
		return nil, nil, nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "department has no active rooms")
	}

	subjects := make([]timetable.Subject, 0, len(subjectRows))
	for _, row := range subjectRows {
		subject := timetable.Subject{
			ID:                   row.ID,
			Code:                 row.Code,
			Name:                 row.Name,
			Type:                 timetable.SubjectType(row.Type),
			RequiredHoursPerWeek: row.WeeklyHours,
			Credits:              row.Credits,
			RequiresDualStaff:    row.RequiresDualStaff,
		}
		if row.AssignedStaffID != nil {
			subject.AssignedStaffID = *row.AssignedStaffID
		}
		if len(row.AllowedRoomTypes) > 0 {
			if err := json.Unmarshal(row.AllowedRoomTypes, &subject.AllowedRoomTypes); err != nil {
				s.logger.Warn("skipping malformed allowed_room_types", zap.String("subject", row.ID), zap.Error(err))
			}
		}
		subjects = append(subjects, subject)
	}

	staff := make([]timetable.Staff, 0, len(staffRows))
	for _, row := range staffRows {
		member := timetable.Staff{
			ID:              row.ID,
			Name:            row.FullName,
			MaxHoursPerWeek: row.MaxHoursPerWeek,
		}
		if len(row.Qualifications) > 0 {
			if err := json.Unmarshal(row.Qualifications, &member.Qualifications); err != nil {
				s.logger.Warn("skipping malformed qualifications", zap.String("staff", row.ID), zap.Error(err))
			}
		}
		member.Unavailable = slotRefsFromJSON(row.Unavailable)
		member.PreferredSlots = slotRefsFromJSON(row.PreferredSlots)
		staff = append(staff, member)
	}

	rooms := make([]timetable.Room, 0, len(roomRows))
	for _, row := range roomRows {
		rooms = append(rooms, timetable.Room{
			ID:       row.ID,
			Name:     row.Name,
			Type:     timetable.RoomType(row.Type),
			Capacity: row.Capacity,
		})
	}

	return subjects, staff, rooms, nil
}

// sharedAvailability reserves every slot that staff of this department already
// hold in published timetables of other sections.
func (s *TimetableService) sharedAvailability(ctx context.Context, departmentID, section string) (timetable.AvailabilitySnapshot, error) {
	entries, err := s.timetables.PublishedEntriesForOtherSections(ctx, departmentID, section)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cross-section bookings")
	}
	snapshot := timetable.AvailabilitySnapshot{}
	for _, entry := range entries {
		var staffIDs []string
		if err := json.Unmarshal(entry.StaffIDs, &staffIDs); err != nil {
			continue
		}
		for _, id := range staffIDs {
			snapshot.Reserve(id, timetable.SlotRef{Day: entry.DayOfWeek, Index: entry.SlotIndex})
		}
	}
	return snapshot, nil
}

func (s *TimetableService) constraintSet(overrides dto.ConstraintOverrides) timetable.ConstraintSet {
	cs := s.cfg.Defaults
	if overrides.WorkingDays > 0 {
		cs.WorkingDays = overrides.WorkingDays
	}
	if overrides.ClassesPerDay > 0 {
		cs.ClassesPerDay = overrides.ClassesPerDay
	}
	if overrides.ClassDurationMinutes > 0 {
		cs.ClassDurationMinutes = overrides.ClassDurationMinutes
	}
	if overrides.BreakDurationMinutes > 0 {
		cs.BreakDurationMinutes = overrides.BreakDurationMinutes
	}
	if overrides.StartTime != "" {
		cs.StartTime = overrides.StartTime
	}
	if len(overrides.BreakAfter) > 0 {
		cs.BreakAfter = overrides.BreakAfter
	}
	if overrides.MaxLabsPerDay > 0 {
		cs.MaxLabsPerDay = overrides.MaxLabsPerDay
	}
	if overrides.MaxCorePerDay > 0 {
		cs.MaxCorePerDay = overrides.MaxCorePerDay
	}
	if overrides.MaxElectivesPerDay > 0 {
		cs.MaxElectivesPerDay = overrides.MaxElectivesPerDay
	}
	if overrides.DualStaffLabs != nil {
		cs.DualStaffLabs = *overrides.DualStaffLabs
	}
	if overrides.AvoidEarlyLabs != nil {
		cs.AvoidEarlyLabs = *overrides.AvoidEarlyLabs
	}
	if overrides.AutoResolve != nil {
		cs.AutoResolveConflicts = *overrides.AutoResolve
	}
	if s.cfg.RepairIterations > 0 && cs.Iterations == 0 {
		cs.Iterations = s.cfg.RepairIterations
	}
	return cs.Normalize()
}

// --- Proposal cache ---

type timetableProposal struct {
	ProposalID   string
	DepartmentID string
	Section      string
	Constraints  timetable.ConstraintSet
	Schedule     *timetable.Schedule
	Score        float64
	RequestedAt  time.Time
}

type proposalStore struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[string]timetableProposal
}

func newProposalStore(ttl time.Duration) *proposalStore {
	return &proposalStore{
		ttl:   ttl,
		items: make(map[string]timetableProposal),
	}
}

func (s *proposalStore) Save(proposal timetableProposal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[proposal.ProposalID] = proposal
}

func (s *proposalStore) Get(id string) (timetableProposal, bool) {
	s.mu.RLock()
	proposal, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return timetableProposal{}, false
	}
	if time.Since(proposal.RequestedAt) > s.ttl {
		s.Delete(id)
		return timetableProposal{}, false
	}
	return proposal, true
}

func (s *proposalStore) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}

// --- Conversions ---

func proposalResponse(proposal timetableProposal) *dto.GenerateTimetableResponse {
	resp := &dto.GenerateTimetableResponse{
		ProposalID: proposal.ProposalID,
		Score:      proposal.Score,
		Version:    proposal.Schedule.Version,
		Incomplete: proposal.Schedule.Incomplete,
	}
	for _, a := range proposal.Schedule.Assignments() {
		resp.Assignments = append(resp.Assignments, dto.AssignmentFromEngine(a))
	}
	for _, c := range proposal.Schedule.Conflicts {
		resp.Conflicts = append(resp.Conflicts, dto.ConflictFromEngine(c))
	}
	return resp
}

func entriesFromSchedule(timetableID string, schedule *timetable.Schedule) []models.TimetableEntry {
	assignments := schedule.Assignments()
	entries := make([]models.TimetableEntry, 0, len(assignments))
	for _, a := range assignments {
		staffIDs, _ := json.Marshal(a.StaffIDs)
		entry := models.TimetableEntry{
			TimetableID:   timetableID,
			AssignmentKey: a.ID,
			DayOfWeek:     a.Slot.Day,
			SlotIndex:     a.Slot.Index,
			SubjectID:     a.SubjectID,
			RoomID:        a.RoomID,
			StaffIDs:      types.JSONText(staffIDs),
		}
		if a.BlockID != "" {
			blockID := a.BlockID
			entry.BlockID = &blockID
		}
		entries = append(entries, entry)
	}
	return entries
}

func assignmentFromEntry(entry models.TimetableEntry) dto.AssignmentDTO {
	var staffIDs []string
	_ = json.Unmarshal(entry.StaffIDs, &staffIDs)
	a := dto.AssignmentDTO{
		ID:        entry.AssignmentKey,
		SubjectID: entry.SubjectID,
		StaffIDs:  staffIDs,
		RoomID:    entry.RoomID,
		DayOfWeek: entry.DayOfWeek,
		SlotIndex: entry.SlotIndex,
	}
	if entry.BlockID != nil {
		a.BlockID = *entry.BlockID
	}
	return a
}

func scheduleFromEntries(entries []models.TimetableEntry, cs timetable.ConstraintSet, version int) (*timetable.Schedule, error) {
	grid, err := timetable.BuildGrid(cs)
	if err != nil {
		return nil, err
	}
	schedule := timetable.NewSchedule(grid)
	schedule.Version = version
	for _, entry := range entries {
		var staffIDs []string
		if err := json.Unmarshal(entry.StaffIDs, &staffIDs); err != nil {
			return nil, fmt.Errorf("decode staff ids for entry %s: %w", entry.AssignmentKey, err)
		}
		assignment := timetable.Assignment{
			ID:        entry.AssignmentKey,
			SubjectID: entry.SubjectID,
			StaffIDs:  staffIDs,
			RoomID:    entry.RoomID,
			Slot:      timetable.SlotRef{Day: entry.DayOfWeek, Index: entry.SlotIndex},
		}
		if entry.BlockID != nil {
			assignment.BlockID = *entry.BlockID
		}
		schedule.Place(assignment)
	}
	return schedule, nil
}

func slotRefsFromJSON(raw types.JSONText) []timetable.SlotRef {
	if len(raw) == 0 {
		return nil
	}
	var slots []models.UnavailableSlot
	if err := json.Unmarshal(raw, &slots); err != nil {
		return nil
	}
	refs := make([]timetable.SlotRef, 0, len(slots))
	for _, slot := range slots {
		refs = append(refs, timetable.SlotRef{Day: slot.Day, Index: slot.Slot})
	}
	return refs
}
