package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/consejo-api/internal/models"
)

func TestRequiredApprovalsIsMonotone(t *testing.T) {
	prev := RequiredApprovals(0)
	for n := 1; n <= 20000; n++ {
		got := RequiredApprovals(n)
		if got < prev {
			t.Fatalf("RequiredApprovals(%d)=%d is below RequiredApprovals(%d)=%d", n, got, n-1, prev)
		}
		prev = got
	}
}

func TestRequiredApprovalsBoundaries(t *testing.T) {
	cases := map[int]int{
		0:     1,
		50:    1,
		100:   1,
		101:   1,
		1000:  1,
		1001:  2,
		3000:  2,
		3001:  3,
		5000:  3,
		5001:  5,
		10000: 5,
		10001: 10,
		15000: 10,
	}
	for users, want := range cases {
		assert.Equal(t, want, RequiredApprovals(users), "users=%d", users)
	}
}

func TestResolveMembershipState(t *testing.T) {
	assert.Equal(t, models.MembershipRequestPending, ResolveMembershipState(0, 0, 1))
	assert.Equal(t, models.MembershipRequestApproved, ResolveMembershipState(2, 0, 2))
	assert.Equal(t, models.MembershipRequestRejected, ResolveMembershipState(0, 2, 2))
	assert.Equal(t, models.MembershipRequestApproved, ResolveMembershipState(5, 5, 0), "zero requirement approves")
	assert.Equal(t, models.MembershipRequestApproved, ResolveMembershipState(2, 2, 2), "approvals are checked first")
	assert.Equal(t, models.MembershipRequestPending, ResolveMembershipState(1, 1, 2))
}

func TestResolvePetitionState(t *testing.T) {
	cfg := models.PolicyConfig{MinVotesPetition: 5, ApprovalPercentage: 70}

	assert.Equal(t, models.PetitionInReview, ResolvePetitionState(2, 1, cfg))
	assert.Equal(t, models.PetitionApproved, ResolvePetitionState(7, 2, cfg))
	assert.Equal(t, models.PetitionNotApproved, ResolvePetitionState(3, 3, cfg))
}

func TestResolvePetitionStateRoundsHalfUp(t *testing.T) {
	// 139/200 = 69.5% rounds to 70.
	cfg := models.PolicyConfig{MinVotesPetition: 1, ApprovalPercentage: 70}
	assert.Equal(t, models.PetitionApproved, ResolvePetitionState(139, 61, cfg))
	// 138/200 = 69% stays below.
	assert.Equal(t, models.PetitionNotApproved, ResolvePetitionState(138, 62, cfg))
}

func TestResolvePetitionStateWithZeroMinimum(t *testing.T) {
	cfg := models.PolicyConfig{MinVotesPetition: 0, ApprovalPercentage: 0}
	assert.Equal(t, models.PetitionApproved, ResolvePetitionState(0, 0, cfg))

	cfg.ApprovalPercentage = 1
	assert.Equal(t, models.PetitionNotApproved, ResolvePetitionState(0, 0, cfg))
}

func TestTallyDelta(t *testing.T) {
	approve := models.ChoiceApprove
	reject := models.ChoiceReject
	discuss := models.ChoiceDiscuss

	cases := []struct {
		name     string
		previous *models.VoteChoice
		next     models.VoteChoice
		wantA    int
		wantR    int
	}{
		{"new approve", nil, models.ChoiceApprove, 1, 0},
		{"new reject", nil, models.ChoiceReject, 0, 1},
		{"new discuss", nil, models.ChoiceDiscuss, 0, 0},
		{"approve to reject", &approve, models.ChoiceReject, -1, 1},
		{"reject to approve", &reject, models.ChoiceApprove, 1, -1},
		{"approve to discuss", &approve, models.ChoiceDiscuss, -1, 0},
		{"discuss to reject", &discuss, models.ChoiceReject, 0, 1},
		{"repeat approve", &approve, models.ChoiceApprove, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a, r := TallyDelta(tc.previous, tc.next)
			assert.Equal(t, tc.wantA, a)
			assert.Equal(t, tc.wantR, r)
		})
	}
}
