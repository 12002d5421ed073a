package dto

// ValidateChoicesRequest checks a staff member's subject selections against
// the department limits before the choice form is submitted.
type ValidateChoicesRequest struct {
	StaffID    string   `json:"staffId" validate:"required"`
	SubjectIDs []string `json:"subjectIds" validate:"required,min=1,dive,required"`
}

// ValidateChoicesResponse reports whether the selection is acceptable.
type ValidateChoicesResponse struct {
	Valid      bool           `json:"valid"`
	Violations []ViolationDTO `json:"violations,omitempty"`
}
