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
)

type choiceValidatorMock struct {
	captured dto.ValidateChoicesRequest
	resp     *dto.ValidateChoicesResponse
}

func (m *choiceValidatorMock) Validate(ctx context.Context, req dto.ValidateChoicesRequest) (*dto.ValidateChoicesResponse, error) {
	m.captured = req
	if m.resp != nil {
		return m.resp, nil
	}
	return &dto.ValidateChoicesResponse{Valid: true}, nil
}

func TestChoiceHandlerValidate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &choiceValidatorMock{}
	handler := NewChoiceHandler(mockSvc)

	payload := []byte(`{"staffId":"st-1","subjectIds":["sub-1","sub-2"]}`)
	req, _ := http.NewRequest(http.MethodPost, "/choices/validate", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req

	handler.Validate(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "st-1", mockSvc.captured.StaffID)
	require.Len(t, mockSvc.captured.SubjectIDs, 2)
}

func TestChoiceHandlerValidateReportsViolations(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &choiceValidatorMock{resp: &dto.ValidateChoicesResponse{
		Valid:      false,
		Violations: []dto.ViolationDTO{{Rule: "MAX_ELECTIVES", Hard: true, Message: "too many electives"}},
	}}
	handler := NewChoiceHandler(mockSvc)

	payload := []byte(`{"staffId":"st-1","subjectIds":["sub-1"]}`)
	req, _ := http.NewRequest(http.MethodPost, "/choices/validate", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req

	handler.Validate(c)

	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data dto.ValidateChoicesResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.False(t, envelope.Data.Valid)
	require.Len(t, envelope.Data.Violations, 1)
}

func TestChoiceHandlerValidateSelfOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewChoiceHandler(&choiceValidatorMock{})
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(internalmiddleware.ContextUserKey, &models.JWTClaims{UserID: "st-other", Role: models.RoleStaff})
		c.Next()
	})
	router.POST("/choices/validate", handler.Validate)

	payload := []byte(`{"staffId":"st-1","subjectIds":["sub-1"]}`)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/choices/validate", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestChoiceHandlerValidateBadPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewChoiceHandler(&choiceValidatorMock{})

	req, _ := http.NewRequest(http.MethodPost, "/choices/validate", bytes.NewReader([]byte(`{"staffId":`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req

	handler.Validate(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}
