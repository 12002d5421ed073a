package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campushq/dept-portal-api/internal/dto"
	"github.com/campushq/dept-portal-api/internal/models"
	appErrors "github.com/campushq/dept-portal-api/pkg/errors"
	"github.com/campushq/dept-portal-api/pkg/response"
)

type choiceValidator interface {
	Validate(ctx context.Context, req dto.ValidateChoicesRequest) (*dto.ValidateChoicesResponse, error)
}

// ChoiceHandler validates subject choice forms.
type ChoiceHandler struct {
	service choiceValidator
}

// NewChoiceHandler constructs handler.
func NewChoiceHandler(svc choiceValidator) *ChoiceHandler {
	return &ChoiceHandler{service: svc}
}

// Validate godoc
// @Summary Validate a staff subject selection
// @Tags Choices
// @Accept json
// @Produce json
// @Param payload body dto.ValidateChoicesRequest true "Selection payload"
// @Success 200 {object} response.Envelope
// @Router /choices/validate [post]
func (h *ChoiceHandler) Validate(c *gin.Context) {
	var req dto.ValidateChoicesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	// staff may only validate their own selection
	if claims := claimsFromContext(c); claims != nil && claims.Role == models.RoleStaff && claims.UserID != req.StaffID {
		response.Error(c, appErrors.ErrForbidden)
		return
	}

	result, err := h.service.Validate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
