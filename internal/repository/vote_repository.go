package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/consejo-api/internal/models"
)

// VoteRepository reads recorded votes outside of the casting transaction.
type VoteRepository struct {
	db *sqlx.DB
}

// NewVoteRepository constructs the repository.
func NewVoteRepository(db *sqlx.DB) *VoteRepository {
	return &VoteRepository{db: db}
}

// ListByTarget returns all votes on a target, oldest first.
func (r *VoteRepository) ListByTarget(ctx context.Context, target models.VoteTarget, targetID string) ([]models.Vote, error) {
	tables, err := tablesFor(target)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + voteColumns + ` FROM ` + tables.votes + ` WHERE target_id = $1 ORDER BY created_at ASC`
	var votes []models.Vote
	if err := r.db.SelectContext(ctx, &votes, query, targetID); err != nil {
		return nil, fmt.Errorf("list votes: %w", err)
	}
	return votes, nil
}
