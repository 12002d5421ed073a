package dto

import "github.com/campushq/dept-portal-api/internal/timetable"

// ConstraintOverrides lets the caller adjust the department defaults per request.
// Zero values fall back to the configured constraint set.
type ConstraintOverrides struct {
	WorkingDays          int    `json:"workingDays" validate:"omitempty,min=1,max=6"`
	ClassesPerDay        int    `json:"classesPerDay" validate:"omitempty,min=1,max=12"`
	ClassDurationMinutes int    `json:"classDurationMinutes" validate:"omitempty,min=30,max=180"`
	BreakDurationMinutes int    `json:"breakDurationMinutes" validate:"omitempty,min=5,max=60"`
	StartTime            string `json:"startTime" validate:"omitempty"`
	BreakAfter           []int  `json:"breakAfter" validate:"omitempty,dive,min=1"`
	MaxLabsPerDay        int    `json:"maxLabsPerDay" validate:"omitempty,min=0"`
	MaxCorePerDay        int    `json:"maxCorePerDay" validate:"omitempty,min=0"`
	MaxElectivesPerDay   int    `json:"maxElectivesPerDay" validate:"omitempty,min=0"`
	DualStaffLabs        *bool  `json:"dualStaffLabs,omitempty"`
	AvoidEarlyLabs       *bool  `json:"avoidEarlyLabs,omitempty"`
	AutoResolve          *bool  `json:"autoResolve,omitempty"`
}

// GenerateTimetableRequest instructs the engine to build a timetable for the section.
type GenerateTimetableRequest struct {
	DepartmentID string              `json:"departmentId" validate:"required"`
	Section      string              `json:"section" validate:"required"`
	Constraints  ConstraintOverrides `json:"constraints"`
	Async        bool                `json:"async"`
}

// AssignmentDTO represents a placed session in API responses.
type AssignmentDTO struct {
	ID        string   `json:"id"`
	SubjectID string   `json:"subjectId"`
	StaffIDs  []string `json:"staffIds"`
	RoomID    string   `json:"roomId"`
	DayOfWeek int      `json:"dayOfWeek"`
	SlotIndex int      `json:"slotIndex"`
	BlockID   string   `json:"blockId,omitempty"`
}

// ConflictDTO surfaces an unresolved conflict to the caller.
type ConflictDTO struct {
	Kind          string   `json:"kind"`
	Severity      string   `json:"severity"`
	DayOfWeek     int      `json:"dayOfWeek,omitempty"`
	SlotIndex     int      `json:"slotIndex,omitempty"`
	Message       string   `json:"message"`
	AssignmentIDs []string `json:"assignmentIds,omitempty"`
}

// ViolationDTO reports a rule broken by a requested edit.
type ViolationDTO struct {
	Rule    string `json:"rule"`
	Hard    bool   `json:"hard"`
	Message string `json:"message"`
}

// GenerateTimetableResponse returns the built timetable proposal.
type GenerateTimetableResponse struct {
	ProposalID  string          `json:"proposalId"`
	Score       float64         `json:"score"`
	Version     int             `json:"version"`
	Incomplete  bool            `json:"incomplete"`
	Assignments []AssignmentDTO `json:"assignments"`
	Conflicts   []ConflictDTO   `json:"conflicts"`
}

// GenerationJobResponse acknowledges an asynchronous generation request.
type GenerationJobResponse struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

// JobStatusResponse reports the state of an asynchronous generation job.
type JobStatusResponse struct {
	JobID  string                     `json:"jobId"`
	Status string                     `json:"status"`
	Error  string                     `json:"error,omitempty"`
	Result *GenerateTimetableResponse `json:"result,omitempty"`
}

// SaveTimetableRequest persists a proposal as a timetable version.
type SaveTimetableRequest struct {
	ProposalID string `json:"proposalId" validate:"required"`
	Publish    bool   `json:"publish"`
}

// MoveAssignmentRequest relocates one assignment inside a stored timetable.
type MoveAssignmentRequest struct {
	AssignmentID string `json:"assignmentId" validate:"required"`
	DayOfWeek    int    `json:"dayOfWeek" validate:"required,min=1"`
	SlotIndex    int    `json:"slotIndex" validate:"required,min=1"`
	RoomID       string `json:"roomId"`
	Version      int    `json:"version" validate:"min=0"`
	Force        bool   `json:"force"`
}

// SwapAssignmentsRequest exchanges the slots of two assignments.
type SwapAssignmentsRequest struct {
	FirstID  string `json:"firstId" validate:"required"`
	SecondID string `json:"secondId" validate:"required"`
	Version  int    `json:"version" validate:"min=0"`
}

// DeleteAssignmentRequest removes an assignment (whole lab block included).
type DeleteAssignmentRequest struct {
	Version int `json:"version" validate:"min=0"`
}

// MutationResponse returns the edited timetable or the violations that blocked it.
type MutationResponse struct {
	Applied     bool            `json:"applied"`
	Version     int             `json:"version"`
	Violations  []ViolationDTO  `json:"violations,omitempty"`
	Assignments []AssignmentDTO `json:"assignments,omitempty"`
	Conflicts   []ConflictDTO   `json:"conflicts,omitempty"`
}

// TimetableQuery filters stored timetables by department and section.
type TimetableQuery struct {
	DepartmentID string `form:"departmentId" json:"departmentId"`
	Section      string `form:"section" json:"section"`
}

// TimetableDetailResponse returns a stored timetable with its entries.
type TimetableDetailResponse struct {
	ID           string          `json:"id"`
	DepartmentID string          `json:"departmentId"`
	Section      string          `json:"section"`
	Version      int             `json:"version"`
	Status       string          `json:"status"`
	Score        float64         `json:"score"`
	Incomplete   bool            `json:"incomplete"`
	Assignments  []AssignmentDTO `json:"assignments"`
}

// AssignmentFromEngine converts an engine assignment into its API shape.
func AssignmentFromEngine(a timetable.Assignment) AssignmentDTO {
	return AssignmentDTO{
		ID:        a.ID,
		SubjectID: a.SubjectID,
		StaffIDs:  a.StaffIDs,
		RoomID:    a.RoomID,
		DayOfWeek: a.Slot.Day,
		SlotIndex: a.Slot.Index,
		BlockID:   a.BlockID,
	}
}

// ConflictFromEngine converts an engine conflict into its API shape.
func ConflictFromEngine(c timetable.Conflict) ConflictDTO {
	return ConflictDTO{
		Kind:          string(c.Kind),
		Severity:      string(c.Severity),
		DayOfWeek:     c.Day,
		SlotIndex:     c.Slot,
		Message:       c.Message,
		AssignmentIDs: c.AssignmentIDs,
	}
}

// ViolationFromEngine converts an engine violation into its API shape.
func ViolationFromEngine(v timetable.Violation) ViolationDTO {
	return ViolationDTO{Rule: v.Rule, Hard: v.Hard, Message: v.Message}
}
