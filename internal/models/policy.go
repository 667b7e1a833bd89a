package models

import "time"

// PolicyConfigID is the primary key of the singleton policy row.
const PolicyConfigID = 1

// PolicyConfig holds the voting thresholds and vote budget parameters.
// MinVotesMembershipRequest is retained for admin visibility only; membership
// requests resolve against the population-scaled requirement.
type PolicyConfig struct {
	ID                        int       `db:"id" json:"-"`
	MinVotesPetition          int       `db:"min_votes_petition" json:"min_votes_petition"`
	MinVotesMembershipRequest int       `db:"min_votes_membership_request" json:"min_votes_membership_request"`
	ApprovalPercentage        int       `db:"approval_percentage" json:"approval_percentage"`
	MaxVoteBudget             int       `db:"max_vote_budget" json:"max_vote_budget"`
	RegenIntervalMinutes      int       `db:"regen_interval_minutes" json:"regen_interval_minutes"`
	DailyApprovalCap          int       `db:"daily_approval_cap" json:"daily_approval_cap"`
	UpdatedBy                 *string   `db:"updated_by" json:"updated_by,omitempty"`
	UpdatedAt                 time.Time `db:"updated_at" json:"updated_at"`
}

// RegenInterval returns the regeneration interval as a duration, never below one minute.
func (p PolicyConfig) RegenInterval() time.Duration {
	if p.RegenIntervalMinutes < 1 {
		return time.Minute
	}
	return time.Duration(p.RegenIntervalMinutes) * time.Minute
}

// BudgetStatus is the read view of a user's vote budget.
type BudgetStatus struct {
	VoteBudget           int `json:"vote_budget"`
	SecondsUntilNext     int `json:"seconds_until_next"`
	MaxVoteBudget        int `json:"max_vote_budget"`
	RegenIntervalMinutes int `json:"regen_interval_minutes"`
}
