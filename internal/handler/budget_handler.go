package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/consejo-api/internal/models"
	"github.com/noah-isme/consejo-api/pkg/response"
)

type budgetService interface {
	Status(ctx context.Context, userID string) (*models.BudgetStatus, error)
}

// BudgetHandler exposes the caller's vote budget.
type BudgetHandler struct {
	service budgetService
}

// NewBudgetHandler constructs the handler.
func NewBudgetHandler(service budgetService) *BudgetHandler {
	return &BudgetHandler{service: service}
}

// Status godoc
// @Summary Current vote budget
// @Description Regenerates and returns the caller's remaining votes and seconds until the next unit
// @Tags Voting
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /me/vote-budget [get]
func (h *BudgetHandler) Status(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	status, err := h.service.Status(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}
