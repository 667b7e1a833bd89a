package service

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/consejo-api/internal/models"
	"github.com/noah-isme/consejo-api/internal/repository"
)

type memState struct {
	users     map[string]models.User
	requests  map[string]models.MembershipRequest
	petitions map[string]models.Petition
	votes     map[models.VoteTarget]map[string]models.Vote
}

func (s memState) clone() memState {
	out := memState{
		users:     make(map[string]models.User, len(s.users)),
		requests:  make(map[string]models.MembershipRequest, len(s.requests)),
		petitions: make(map[string]models.Petition, len(s.petitions)),
		votes:     make(map[models.VoteTarget]map[string]models.Vote, len(s.votes)),
	}
	for k, v := range s.users {
		out.users[k] = v
	}
	for k, v := range s.requests {
		out.requests[k] = v
	}
	for k, v := range s.petitions {
		out.petitions[k] = v
	}
	for target, votes := range s.votes {
		copied := make(map[string]models.Vote, len(votes))
		for k, v := range votes {
			copied[k] = v
		}
		out.votes[target] = copied
	}
	return out
}

// memStore is an in-memory VotingStore whose Do serialises units of work and
// restores a snapshot when fn fails, mirroring a serializable rollback.
type memStore struct {
	mu    sync.Mutex
	state memState

	// onInsert runs before a vote insert; a non-nil error aborts it.
	onInsert func(st *memState, target models.VoteTarget, vote *models.Vote) error
	// afterAbort simulates work committed by a concurrent transaction.
	afterAbort []func(st *memState)

	commits   int
	rollbacks int
}

func newMemStore() *memStore {
	return &memStore{state: memState{
		users:     map[string]models.User{},
		requests:  map[string]models.MembershipRequest{},
		petitions: map[string]models.Petition{},
		votes: map[models.VoteTarget]map[string]models.Vote{
			models.TargetMembershipRequest: {},
			models.TargetPetition:          {},
		},
	}}
}

func (m *memStore) Do(ctx context.Context, fn func(repository.VotingStore) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.state.clone()
	if err := fn(m); err != nil {
		m.state = snapshot
		m.rollbacks++
		for _, apply := range m.afterAbort {
			apply(&m.state)
		}
		m.afterAbort = nil
		return err
	}
	m.commits++
	return nil
}

func (m *memStore) addUser(u models.User) {
	m.state.users[u.ID] = u
}

func (m *memStore) user(id string) models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.users[id]
}

func (m *memStore) request(id string) models.MembershipRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.requests[id]
}

func (m *memStore) petition(id string) models.Petition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.petitions[id]
}

func (m *memStore) voteCount(target models.VoteTarget) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.votes[target])
}

func voteKey(voterID, targetID string) string {
	return voterID + "|" + targetID
}

func (m *memStore) LockUser(ctx context.Context, id string) (*models.User, error) {
	u, ok := m.state.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &u, nil
}

func (m *memStore) UpdateUserBudget(ctx context.Context, id string, budget int, lastRegenAt time.Time) error {
	u, ok := m.state.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.VoteBudget = budget
	u.LastBudgetRegenAt = lastRegenAt
	m.state.users[id] = u
	return nil
}

func (m *memStore) CountUsers(ctx context.Context) (int, error) {
	return len(m.state.users), nil
}

func (m *memStore) LockMembershipRequest(ctx context.Context, id string) (*models.MembershipRequest, error) {
	r, ok := m.state.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &r, nil
}

func (m *memStore) LockPetition(ctx context.Context, id string) (*models.Petition, error) {
	p, ok := m.state.petitions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &p, nil
}

func (m *memStore) FindVote(ctx context.Context, target models.VoteTarget, voterID, targetID string) (*models.Vote, error) {
	v, ok := m.state.votes[target][voteKey(voterID, targetID)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &v, nil
}

func (m *memStore) InsertVote(ctx context.Context, target models.VoteTarget, vote *models.Vote) error {
	if m.onInsert != nil {
		if err := m.onInsert(&m.state, target, vote); err != nil {
			return err
		}
	}
	key := voteKey(vote.VoterUserID, vote.TargetID)
	if _, exists := m.state.votes[target][key]; exists {
		return repository.ErrDuplicateVote
	}
	if vote.ID == "" {
		vote.ID = uuid.NewString()
	}
	m.state.votes[target][key] = *vote
	return nil
}

func (m *memStore) UpdateVote(ctx context.Context, target models.VoteTarget, vote *models.Vote) error {
	key := voteKey(vote.VoterUserID, vote.TargetID)
	if _, exists := m.state.votes[target][key]; !exists {
		return sql.ErrNoRows
	}
	m.state.votes[target][key] = *vote
	return nil
}

func (m *memStore) CountApprovalsSince(ctx context.Context, voterID string, since time.Time) (int, error) {
	count := 0
	for _, v := range m.state.votes[models.TargetMembershipRequest] {
		if v.VoterUserID == voterID && v.Choice == models.ChoiceApprove && !v.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *memStore) AdjustTally(ctx context.Context, target models.VoteTarget, targetID string, approvals, rejections int) (models.Tally, error) {
	switch target {
	case models.TargetMembershipRequest:
		r, ok := m.state.requests[targetID]
		if !ok {
			return models.Tally{}, sql.ErrNoRows
		}
		r.ApprovalCount += approvals
		r.RejectionCount += rejections
		m.state.requests[targetID] = r
		return models.Tally{Approvals: r.ApprovalCount, Rejections: r.RejectionCount}, nil
	default:
		p, ok := m.state.petitions[targetID]
		if !ok {
			return models.Tally{}, sql.ErrNoRows
		}
		p.ApprovalCount += approvals
		p.RejectionCount += rejections
		m.state.petitions[targetID] = p
		return models.Tally{Approvals: p.ApprovalCount, Rejections: p.RejectionCount}, nil
	}
}

func (m *memStore) SetMembershipRequestState(ctx context.Context, id string, state models.MembershipRequestState, resolvedAt *time.Time) error {
	r := m.state.requests[id]
	r.State = state
	if resolvedAt != nil {
		r.ResolvedAt = resolvedAt
	}
	m.state.requests[id] = r
	return nil
}

func (m *memStore) SetPetitionState(ctx context.Context, id string, state models.PetitionState, resolvedAt *time.Time) error {
	p := m.state.petitions[id]
	p.State = state
	if resolvedAt != nil {
		p.ResolvedAt = resolvedAt
	}
	m.state.petitions[id] = p
	return nil
}

func (m *memStore) CascadeMembership(ctx context.Context, userID string, state models.MembershipState, at time.Time) (bool, error) {
	u, ok := m.state.users[userID]
	if !ok {
		return false, nil
	}
	if u.MembershipState != models.MembershipPendingApproval && u.MembershipState != state {
		return false, nil
	}
	u.MembershipState = state
	u.UpdatedAt = at
	m.state.users[userID] = u
	return true, nil
}

func (m *memStore) DeleteVotes(ctx context.Context, target models.VoteTarget, targetID string) (int, error) {
	removed := 0
	for key, v := range m.state.votes[target] {
		if v.TargetID == targetID {
			delete(m.state.votes[target], key)
			removed++
		}
	}
	return removed, nil
}

func (m *memStore) DeleteMembershipRequest(ctx context.Context, id string) error {
	if _, ok := m.state.requests[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.state.requests, id)
	return nil
}

type staticPolicy struct {
	cfg models.PolicyConfig
	err error
}

func (p staticPolicy) Current(ctx context.Context) (*models.PolicyConfig, error) {
	if p.err != nil {
		return nil, p.err
	}
	cfg := p.cfg
	return &cfg, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
