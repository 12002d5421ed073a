package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/campushq/dept-portal-api/internal/middleware"
	"github.com/campushq/dept-portal-api/internal/models"
)

// claimsFromContext returns the authenticated user's claims, or nil when
// the route runs without the JWT middleware.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, _ := c.Value(middleware.ContextUserKey).(*models.JWTClaims)
	return claims
}
