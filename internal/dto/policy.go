package dto

// UpdatePolicyRequest is a partial update of the policy configuration.
type UpdatePolicyRequest struct {
	MinVotesPetition          *int `json:"min_votes_petition,omitempty" validate:"omitempty,min=0"`
	MinVotesMembershipRequest *int `json:"min_votes_membership_request,omitempty" validate:"omitempty,min=0"`
	ApprovalPercentage        *int `json:"approval_percentage,omitempty" validate:"omitempty,min=0,max=100"`
	MaxVoteBudget             *int `json:"max_vote_budget,omitempty" validate:"omitempty,min=0"`
	RegenIntervalMinutes      *int `json:"regen_interval_minutes,omitempty" validate:"omitempty,min=1"`
	DailyApprovalCap          *int `json:"daily_approval_cap,omitempty" validate:"omitempty,min=0"`
}

// Empty reports whether no field was supplied.
func (r UpdatePolicyRequest) Empty() bool {
	return r.MinVotesPetition == nil &&
		r.MinVotesMembershipRequest == nil &&
		r.ApprovalPercentage == nil &&
		r.MaxVoteBudget == nil &&
		r.RegenIntervalMinutes == nil &&
		r.DailyApprovalCap == nil
}
