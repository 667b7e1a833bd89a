package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/consejo-api/internal/models"
)

// VotingStore is the transactional view of the entity store used when
// spending vote budget and casting votes. Lock* methods take row locks that
// are held until the enclosing transaction ends.
type VotingStore interface {
	LockUser(ctx context.Context, id string) (*models.User, error)
	UpdateUserBudget(ctx context.Context, id string, budget int, lastRegenAt time.Time) error
	CountUsers(ctx context.Context) (int, error)

	LockMembershipRequest(ctx context.Context, id string) (*models.MembershipRequest, error)
	LockPetition(ctx context.Context, id string) (*models.Petition, error)

	FindVote(ctx context.Context, target models.VoteTarget, voterID, targetID string) (*models.Vote, error)
	InsertVote(ctx context.Context, target models.VoteTarget, vote *models.Vote) error
	UpdateVote(ctx context.Context, target models.VoteTarget, vote *models.Vote) error
	CountApprovalsSince(ctx context.Context, voterID string, since time.Time) (int, error)

	AdjustTally(ctx context.Context, target models.VoteTarget, targetID string, approvals, rejections int) (models.Tally, error)
	SetMembershipRequestState(ctx context.Context, id string, state models.MembershipRequestState, resolvedAt *time.Time) error
	SetPetitionState(ctx context.Context, id string, state models.PetitionState, resolvedAt *time.Time) error
	CascadeMembership(ctx context.Context, userID string, state models.MembershipState, at time.Time) (bool, error)

	DeleteVotes(ctx context.Context, target models.VoteTarget, targetID string) (int, error)
	DeleteMembershipRequest(ctx context.Context, id string) error
}

type targetTables struct {
	targets string
	votes   string
}

var voteTables = map[models.VoteTarget]targetTables{
	models.TargetMembershipRequest: {targets: "membership_requests", votes: "membership_request_votes"},
	models.TargetPetition:          {targets: "petitions", votes: "petition_votes"},
}

func tablesFor(target models.VoteTarget) (targetTables, error) {
	t, ok := voteTables[target]
	if !ok {
		return targetTables{}, fmt.Errorf("unknown vote target %q", target)
	}
	return t, nil
}

type votingStore struct {
	q sqlx.ExtContext
}

func newVotingStore(q sqlx.ExtContext) *votingStore {
	return &votingStore{q: q}
}

const userColumns = `id, email, password_hash, display_name, role, membership_state, vote_budget, last_budget_regen_at, created_at, updated_at`

func (s *votingStore) LockUser(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`
	var user models.User
	if err := sqlx.GetContext(ctx, s.q, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock user: %w", err)
	}
	return &user, nil
}

func (s *votingStore) UpdateUserBudget(ctx context.Context, id string, budget int, lastRegenAt time.Time) error {
	const query = `UPDATE users SET vote_budget = $2, last_budget_regen_at = $3 WHERE id = $1`
	if _, err := s.q.ExecContext(ctx, query, id, budget, lastRegenAt); err != nil {
		return fmt.Errorf("update vote budget: %w", err)
	}
	return nil
}

func (s *votingStore) CountUsers(ctx context.Context) (int, error) {
	var total int
	if err := sqlx.GetContext(ctx, s.q, &total, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return total, nil
}

const membershipRequestColumns = `id, applicant_user_id, text, photo_url, approval_count, rejection_count, state, created_at, resolved_at`

func (s *votingStore) LockMembershipRequest(ctx context.Context, id string) (*models.MembershipRequest, error) {
	query := `SELECT ` + membershipRequestColumns + ` FROM membership_requests WHERE id = $1 FOR UPDATE`
	var req models.MembershipRequest
	if err := sqlx.GetContext(ctx, s.q, &req, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock membership request: %w", err)
	}
	return &req, nil
}

const petitionColumns = `id, author_user_id, title, description, images, video_url, approval_count, rejection_count, likes, hidden, state, created_at, resolved_at`

func (s *votingStore) LockPetition(ctx context.Context, id string) (*models.Petition, error) {
	query := `SELECT ` + petitionColumns + ` FROM petitions WHERE id = $1 FOR UPDATE`
	var petition models.Petition
	if err := sqlx.GetContext(ctx, s.q, &petition, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock petition: %w", err)
	}
	return &petition, nil
}

const voteColumns = `id, voter_user_id, target_id, choice, comment, created_at, updated_at`

func (s *votingStore) FindVote(ctx context.Context, target models.VoteTarget, voterID, targetID string) (*models.Vote, error) {
	tables, err := tablesFor(target)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + voteColumns + ` FROM ` + tables.votes + ` WHERE voter_user_id = $1 AND target_id = $2`
	var vote models.Vote
	if err := sqlx.GetContext(ctx, s.q, &vote, query, voterID, targetID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find vote: %w", err)
	}
	return &vote, nil
}

func (s *votingStore) InsertVote(ctx context.Context, target models.VoteTarget, vote *models.Vote) error {
	tables, err := tablesFor(target)
	if err != nil {
		return err
	}
	if vote.ID == "" {
		vote.ID = uuid.NewString()
	}
	query := `INSERT INTO ` + tables.votes + ` (id, voter_user_id, target_id, choice, comment, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := s.q.ExecContext(ctx, query, vote.ID, vote.VoterUserID, vote.TargetID, vote.Choice, vote.Comment, vote.CreatedAt, vote.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateVote
		}
		return fmt.Errorf("insert vote: %w", err)
	}
	return nil
}

func (s *votingStore) UpdateVote(ctx context.Context, target models.VoteTarget, vote *models.Vote) error {
	tables, err := tablesFor(target)
	if err != nil {
		return err
	}
	query := `UPDATE ` + tables.votes + ` SET choice = $2, comment = $3, updated_at = $4 WHERE id = $1`
	if _, err := s.q.ExecContext(ctx, query, vote.ID, vote.Choice, vote.Comment, vote.UpdatedAt); err != nil {
		return fmt.Errorf("update vote: %w", err)
	}
	return nil
}

// CountApprovalsSince counts membership approvals cast by the voter since the given instant.
func (s *votingStore) CountApprovalsSince(ctx context.Context, voterID string, since time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM membership_request_votes WHERE voter_user_id = $1 AND choice = 'approve' AND created_at >= $2`
	var total int
	if err := sqlx.GetContext(ctx, s.q, &total, query, voterID, since); err != nil {
		return 0, fmt.Errorf("count approvals since: %w", err)
	}
	return total, nil
}

// AdjustTally applies signed deltas to the counters in one statement.
func (s *votingStore) AdjustTally(ctx context.Context, target models.VoteTarget, targetID string, approvals, rejections int) (models.Tally, error) {
	tables, err := tablesFor(target)
	if err != nil {
		return models.Tally{}, err
	}
	query := `UPDATE ` + tables.targets + ` SET approval_count = approval_count + $2, rejection_count = rejection_count + $3
WHERE id = $1 RETURNING approval_count, rejection_count`
	var tally models.Tally
	if err := sqlx.GetContext(ctx, s.q, &tally, query, targetID, approvals, rejections); err != nil {
		return models.Tally{}, fmt.Errorf("adjust tally: %w", err)
	}
	return tally, nil
}

func (s *votingStore) SetMembershipRequestState(ctx context.Context, id string, state models.MembershipRequestState, resolvedAt *time.Time) error {
	const query = `UPDATE membership_requests SET state = $2, resolved_at = COALESCE($3, resolved_at) WHERE id = $1`
	if _, err := s.q.ExecContext(ctx, query, id, state, resolvedAt); err != nil {
		return fmt.Errorf("set membership request state: %w", err)
	}
	return nil
}

func (s *votingStore) SetPetitionState(ctx context.Context, id string, state models.PetitionState, resolvedAt *time.Time) error {
	const query = `UPDATE petitions SET state = $2, resolved_at = COALESCE($3, resolved_at) WHERE id = $1`
	if _, err := s.q.ExecContext(ctx, query, id, state, resolvedAt); err != nil {
		return fmt.Errorf("set petition state: %w", err)
	}
	return nil
}

// CascadeMembership moves the applicant to state unless they left the
// pending/target states in the meantime (e.g. banned). Replays are no-ops.
func (s *votingStore) CascadeMembership(ctx context.Context, userID string, state models.MembershipState, at time.Time) (bool, error) {
	const query = `UPDATE users SET membership_state = $2, updated_at = $3
WHERE id = $1 AND membership_state IN ('pending_approval', $2)`
	res, err := s.q.ExecContext(ctx, query, userID, state, at)
	if err != nil {
		return false, fmt.Errorf("cascade membership state: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("cascade membership rows: %w", err)
	}
	return affected > 0, nil
}

// DeleteVotes removes every vote cast on the target and reports how many went.
func (s *votingStore) DeleteVotes(ctx context.Context, target models.VoteTarget, targetID string) (int, error) {
	tables, err := tablesFor(target)
	if err != nil {
		return 0, err
	}
	res, err := s.q.ExecContext(ctx, `DELETE FROM `+tables.votes+` WHERE target_id = $1`, targetID)
	if err != nil {
		return 0, fmt.Errorf("delete votes: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete votes rows: %w", err)
	}
	return int(affected), nil
}

func (s *votingStore) DeleteMembershipRequest(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM membership_requests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete membership request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete membership request rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
