package dto

import "github.com/noah-isme/consejo-api/internal/models"

// MinCommentLength is the shortest accepted justification for reject and discuss votes.
const MinCommentLength = 4

// CastVoteRequest is the ballot payload for membership requests and petitions.
type CastVoteRequest struct {
	Choice  models.VoteChoice `json:"choice" validate:"required,oneof=approve reject discuss"`
	Comment *string           `json:"comment,omitempty" validate:"omitempty,max=2000"`
}
