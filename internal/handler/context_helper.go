package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/consejo-api/internal/middleware"
	"github.com/noah-isme/consejo-api/internal/models"
	appErrors "github.com/noah-isme/consejo-api/pkg/errors"
	"github.com/noah-isme/consejo-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		return nil
	}
	return claims
}

// requireClaims writes a 401 and returns nil when the request is anonymous.
func requireClaims(c *gin.Context) *models.JWTClaims {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
	}
	return claims
}

func invalidPayload(err error, message string) *appErrors.Error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message)
}
