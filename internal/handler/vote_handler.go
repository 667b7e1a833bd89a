package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/consejo-api/internal/dto"
	"github.com/noah-isme/consejo-api/internal/models"
	"github.com/noah-isme/consejo-api/pkg/response"
)

type votingService interface {
	CastMembershipVote(ctx context.Context, voterID, requestID string, req dto.CastVoteRequest) (*models.VoteReceipt, error)
	CastPetitionVote(ctx context.Context, voterID, petitionID string, req dto.CastVoteRequest) (*models.VoteReceipt, error)
}

// VoteHandler records ballots on membership requests and petitions.
type VoteHandler struct {
	service votingService
}

// NewVoteHandler constructs the handler.
func NewVoteHandler(service votingService) *VoteHandler {
	return &VoteHandler{service: service}
}

// CastMembership godoc
// @Summary Vote on a membership request
// @Description Approve or reject an applicant. Reject requires a comment. New votes spend one budget unit.
// @Tags Voting
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Membership request ID"
// @Param payload body dto.CastVoteRequest true "Ballot"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /membership-requests/{id}/votes [post]
func (h *VoteHandler) CastMembership(c *gin.Context) {
	h.cast(c, h.service.CastMembershipVote)
}

// CastPetition godoc
// @Summary Vote on a petition
// @Description Approve, reject or discuss a petition. Reject and discuss require a comment.
// @Tags Voting
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Petition ID"
// @Param payload body dto.CastVoteRequest true "Ballot"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /petitions/{id}/votes [post]
func (h *VoteHandler) CastPetition(c *gin.Context) {
	h.cast(c, h.service.CastPetitionVote)
}

type castFunc func(ctx context.Context, voterID, targetID string, req dto.CastVoteRequest) (*models.VoteReceipt, error)

func (h *VoteHandler) cast(c *gin.Context, fn castFunc) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.CastVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid vote payload"))
		return
	}
	receipt, err := fn(c.Request.Context(), claims.UserID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, receipt, nil)
}
