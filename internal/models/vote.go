package models

import "time"

// VoteChoice is the ballot value of a vote.
type VoteChoice string

const (
	ChoiceApprove VoteChoice = "approve"
	ChoiceReject  VoteChoice = "reject"
	ChoiceDiscuss VoteChoice = "discuss"
)

// RequiresComment reports whether the choice must carry a justification.
func (c VoteChoice) RequiresComment() bool {
	return c == ChoiceReject || c == ChoiceDiscuss
}

// VoteTarget identifies which kind of entity a vote is cast on.
type VoteTarget string

const (
	TargetMembershipRequest VoteTarget = "membership_request"
	TargetPetition          VoteTarget = "petition"
)

// Vote is a single ballot of one voter on one target.
type Vote struct {
	ID          string     `db:"id" json:"id"`
	VoterUserID string     `db:"voter_user_id" json:"voter_user_id"`
	TargetID    string     `db:"target_id" json:"target_id"`
	Choice      VoteChoice `db:"choice" json:"choice"`
	Comment     *string    `db:"comment" json:"comment,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// Tally is the running vote count of a target.
type Tally struct {
	Approvals  int `db:"approval_count" json:"approvals"`
	Rejections int `db:"rejection_count" json:"rejections"`
}

// VoteReceipt reports the effect of a cast vote.
type VoteReceipt struct {
	Target         VoteTarget  `json:"target"`
	TargetID       string      `json:"target_id"`
	Vote           Vote        `json:"vote"`
	PreviousChoice *VoteChoice `json:"previous_choice,omitempty"`
	Tally          Tally       `json:"tally"`
	State          string      `json:"state"`
	Resolved       bool        `json:"resolved"`
	BudgetConsumed bool        `json:"budget_consumed"`
}

// PetitionLike records a user's like of a petition.
type PetitionLike struct {
	PetitionID string    `db:"petition_id" json:"petition_id"`
	UserID     string    `db:"user_id" json:"user_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
