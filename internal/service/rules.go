package service

import "github.com/noah-isme/consejo-api/internal/models"

// approvalTier maps a population ceiling to the approvals a membership request needs.
type approvalTier struct {
	maxUsers int
	required int
}

// Ordered by ceiling; populations above the last ceiling need maxRequiredApprovals.
var approvalTiers = []approvalTier{
	{maxUsers: 100, required: 1},
	{maxUsers: 1000, required: 1},
	{maxUsers: 3000, required: 2},
	{maxUsers: 5000, required: 3},
	{maxUsers: 10000, required: 5},
}

const maxRequiredApprovals = 10

// RequiredApprovals returns how many approve votes a membership request needs
// given the current number of registered users. Non-decreasing in totalUsers.
func RequiredApprovals(totalUsers int) int {
	for _, tier := range approvalTiers {
		if totalUsers <= tier.maxUsers {
			return tier.required
		}
	}
	return maxRequiredApprovals
}

// ResolveMembershipState maps a tally onto a request state. A zero requirement
// approves immediately; approvals win when both thresholds are met.
func ResolveMembershipState(approvals, rejections, required int) models.MembershipRequestState {
	switch {
	case required == 0:
		return models.MembershipRequestApproved
	case approvals >= required:
		return models.MembershipRequestApproved
	case rejections >= required:
		return models.MembershipRequestRejected
	default:
		return models.MembershipRequestPending
	}
}

// ResolvePetitionState maps a tally onto a petition state. Petitions stay in
// review until MinVotesPetition counted votes, then pass when the rounded
// approval percentage reaches ApprovalPercentage.
func ResolvePetitionState(approvals, rejections int, cfg models.PolicyConfig) models.PetitionState {
	total := approvals + rejections
	if total < cfg.MinVotesPetition {
		return models.PetitionInReview
	}
	if approvalPercent(approvals, total) >= cfg.ApprovalPercentage {
		return models.PetitionApproved
	}
	return models.PetitionNotApproved
}

// approvalPercent is round-half-up(approvals*100/total) in integer arithmetic.
func approvalPercent(approvals, total int) int {
	if total <= 0 {
		return 0
	}
	return (approvals*200 + total) / (2 * total)
}

// TallyDelta returns the counter adjustments for replacing previous with next.
// A nil previous means a new vote; discuss counts towards neither side.
func TallyDelta(previous *models.VoteChoice, next models.VoteChoice) (approvals, rejections int) {
	if previous != nil {
		a, r := contribution(*previous)
		approvals -= a
		rejections -= r
	}
	a, r := contribution(next)
	return approvals + a, rejections + r
}

func contribution(choice models.VoteChoice) (approvals, rejections int) {
	switch choice {
	case models.ChoiceApprove:
		return 1, 0
	case models.ChoiceReject:
		return 0, 1
	default:
		return 0, 0
	}
}
