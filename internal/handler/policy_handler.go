package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/consejo-api/internal/dto"
	"github.com/noah-isme/consejo-api/internal/models"
	"github.com/noah-isme/consejo-api/pkg/response"
)

type policyService interface {
	Current(ctx context.Context) (*models.PolicyConfig, error)
	Update(ctx context.Context, req dto.UpdatePolicyRequest, actor *models.JWTClaims) (*models.PolicyConfig, error)
}

// PolicyHandler exposes the admin policy configuration.
type PolicyHandler struct {
	service policyService
}

// NewPolicyHandler constructs the handler.
func NewPolicyHandler(service policyService) *PolicyHandler {
	return &PolicyHandler{service: service}
}

// Get godoc
// @Summary Current voting policy
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /admin/policy [get]
func (h *PolicyHandler) Get(c *gin.Context) {
	cfg, err := h.service.Current(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cfg, nil)
}

// Update godoc
// @Summary Update voting policy
// @Description Partial update; omitted fields keep their value. Takes effect on the next evaluation.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.UpdatePolicyRequest true "Policy change"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/policy [put]
func (h *PolicyHandler) Update(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.UpdatePolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid policy payload"))
		return
	}
	cfg, err := h.service.Update(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cfg, nil)
}
