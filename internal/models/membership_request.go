package models

import (
	"encoding/json"
	"time"
)

// MembershipRequestState is the lifecycle state of a membership request.
type MembershipRequestState string

const (
	MembershipRequestPending  MembershipRequestState = "pending"
	MembershipRequestApproved MembershipRequestState = "approved"
	MembershipRequestRejected MembershipRequestState = "rejected"
)

// Terminal reports whether the state accepts no further votes.
func (s MembershipRequestState) Terminal() bool {
	return s == MembershipRequestApproved || s == MembershipRequestRejected
}

// MembershipRequest is an applicant's submission to join the community.
type MembershipRequest struct {
	ID              string                 `db:"id" json:"id"`
	ApplicantUserID string                 `db:"applicant_user_id" json:"applicant_user_id"`
	Text            string                 `db:"text" json:"text"`
	PhotoURL        string                 `db:"photo_url" json:"photo_url"`
	ApprovalCount   int                    `db:"approval_count" json:"approval_count"`
	RejectionCount  int                    `db:"rejection_count" json:"rejection_count"`
	State           MembershipRequestState `db:"state" json:"state"`
	CreatedAt       time.Time              `db:"created_at" json:"created_at"`
	ResolvedAt      *time.Time             `db:"resolved_at" json:"resolved_at,omitempty"`
}

// Applicant is the public projection of the user behind a request.
type Applicant struct {
	UserID      string    `db:"user_id" json:"user_id"`
	DisplayName string    `db:"display_name" json:"display_name"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Membership request listing entry kinds.
const (
	EntryKindReal      = "real"
	EntryKindSynthetic = "synthetic"
)

// MembershipRequestEntry is one row of the membership request listing. It is
// either a RealMembershipRequest or a SyntheticMembershipRequest.
type MembershipRequestEntry interface {
	Kind() string
	membershipRequestEntry()
}

// RealMembershipRequest is a stored request with its applicant.
type RealMembershipRequest struct {
	MembershipRequest
	Applicant Applicant `json:"applicant"`
}

// SyntheticMembershipRequest stands in for a pending user who has not
// submitted a request yet. It cannot be voted on.
type SyntheticMembershipRequest struct {
	Applicant Applicant `json:"applicant"`
}

func (RealMembershipRequest) Kind() string      { return EntryKindReal }
func (SyntheticMembershipRequest) Kind() string { return EntryKindSynthetic }

func (RealMembershipRequest) membershipRequestEntry()      {}
func (SyntheticMembershipRequest) membershipRequestEntry() {}

// MarshalJSON adds the "kind" discriminator.
func (r RealMembershipRequest) MarshalJSON() ([]byte, error) {
	type alias RealMembershipRequest
	return json.Marshal(struct {
		Kind string `json:"kind"`
		alias
	}{Kind: EntryKindReal, alias: alias(r)})
}

// MarshalJSON adds the "kind" discriminator.
func (s SyntheticMembershipRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind      string                 `json:"kind"`
		State     MembershipRequestState `json:"state"`
		Applicant Applicant              `json:"applicant"`
	}{Kind: EntryKindSynthetic, State: MembershipRequestPending, Applicant: s.Applicant})
}
