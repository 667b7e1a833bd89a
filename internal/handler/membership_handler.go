package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/consejo-api/internal/dto"
	"github.com/noah-isme/consejo-api/internal/models"
	"github.com/noah-isme/consejo-api/internal/service"
	"github.com/noah-isme/consejo-api/pkg/response"
)

type membershipService interface {
	Submit(ctx context.Context, applicantID string, req dto.SubmitMembershipRequest) (*models.MembershipRequest, error)
	Mine(ctx context.Context, applicantID string) (*models.MembershipRequest, error)
	Get(ctx context.Context, id string) (*service.MembershipRequestDetail, error)
	List(ctx context.Context, state models.MembershipRequestState) ([]models.MembershipRequestEntry, error)
	Delete(ctx context.Context, id string, actor *models.JWTClaims) error
}

// MembershipHandler exposes membership request endpoints.
type MembershipHandler struct {
	service membershipService
}

// NewMembershipHandler constructs the handler.
func NewMembershipHandler(service membershipService) *MembershipHandler {
	return &MembershipHandler{service: service}
}

// List godoc
// @Summary List membership requests
// @Description Stored requests plus synthetic entries for pending users without one. Each item carries a kind of real or synthetic.
// @Tags Membership
// @Produce json
// @Security BearerAuth
// @Param state query string false "pending, approved or rejected"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /membership-requests [get]
func (h *MembershipHandler) List(c *gin.Context) {
	entries, err := h.service.List(c.Request.Context(), models.MembershipRequestState(c.Query("state")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Submit godoc
// @Summary Submit a membership request
// @Tags Membership
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.SubmitMembershipRequest true "Introduction"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /membership-requests [post]
func (h *MembershipHandler) Submit(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.SubmitMembershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid membership request payload"))
		return
	}
	created, err := h.service.Submit(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// Mine godoc
// @Summary Caller's own membership request
// @Tags Membership
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /membership-requests/mine [get]
func (h *MembershipHandler) Mine(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	req, err := h.service.Mine(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, req, nil)
}

// Get godoc
// @Summary Membership request detail with votes
// @Tags Membership
// @Produce json
// @Security BearerAuth
// @Param id path string true "Membership request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /membership-requests/{id} [get]
func (h *MembershipHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Delete godoc
// @Summary Delete a membership request and its votes
// @Description Votes are removed in the same transaction. Budget spent on them is not refunded.
// @Tags Admin
// @Security BearerAuth
// @Param id path string true "Membership request ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /admin/membership-requests/{id} [delete]
func (h *MembershipHandler) Delete(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
