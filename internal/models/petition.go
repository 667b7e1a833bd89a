package models

import (
	"time"

	"github.com/lib/pq"
)

// PetitionState is the lifecycle state of a petition.
type PetitionState string

const (
	PetitionInReview    PetitionState = "in_review"
	PetitionApproved    PetitionState = "approved"
	PetitionNotApproved PetitionState = "not_approved"
	PetitionClosed      PetitionState = "closed"
)

// Valid reports whether s is a known petition state.
func (s PetitionState) Valid() bool {
	switch s {
	case PetitionInReview, PetitionApproved, PetitionNotApproved, PetitionClosed:
		return true
	}
	return false
}

// Terminal reports whether the petition stopped accepting votes.
func (s PetitionState) Terminal() bool {
	return s != PetitionInReview
}

// Petition is a proposal raised by an approved member.
type Petition struct {
	ID             string         `db:"id" json:"id"`
	AuthorUserID   string         `db:"author_user_id" json:"author_user_id"`
	Title          string         `db:"title" json:"title"`
	Description    string         `db:"description" json:"description"`
	Images         pq.StringArray `db:"images" json:"images"`
	VideoURL       *string        `db:"video_url" json:"video_url,omitempty"`
	ApprovalCount  int            `db:"approval_count" json:"approval_count"`
	RejectionCount int            `db:"rejection_count" json:"rejection_count"`
	Likes          int            `db:"likes" json:"likes"`
	Hidden         bool           `db:"hidden" json:"hidden"`
	State          PetitionState  `db:"state" json:"state"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	ResolvedAt     *time.Time     `db:"resolved_at" json:"resolved_at,omitempty"`
}

// PetitionFilter captures listing criteria.
type PetitionFilter struct {
	State         *PetitionState
	AuthorUserID  string
	IncludeHidden bool
	Page          int
	PageSize      int
}

// PetitionModeration describes an admin change to a petition.
type PetitionModeration struct {
	Hidden      *bool
	Close       bool
	Title       *string
	Description *string
}
