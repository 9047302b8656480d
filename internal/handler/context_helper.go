package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medconsult-app/medconsult-api/internal/middleware"
	"github.com/medconsult-app/medconsult-api/internal/models"
	appErrors "github.com/medconsult-app/medconsult-api/pkg/errors"
	"github.com/medconsult-app/medconsult-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		return nil
	}
	return claims
}

// bindJSON decodes the request body into dest, writing the validation error
// response itself. Returns false when the handler should stop.
func bindJSON(c *gin.Context, dest interface{}, what string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid "+what+" payload"))
		return false
	}
	return true
}

// sessionMeta captures the caller's network identity for audit records.
func sessionMeta(c *gin.Context) models.SessionMeta {
	return models.SessionMeta{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
}
