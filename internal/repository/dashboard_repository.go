package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/consejo-api/internal/models"
)

// DashboardRepository runs the aggregate queries behind the admin dashboard.
// Each method is a single statement so callers may run them concurrently.
type DashboardRepository struct {
	db *sqlx.DB
}

// NewDashboardRepository constructs the repository.
func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// UserCounts tallies accounts by membership state.
func (r *DashboardRepository) UserCounts(ctx context.Context) (models.UserCounts, error) {
	const query = `SELECT COUNT(*) AS total,
    COUNT(*) FILTER (WHERE role = 'ADMIN') AS admins,
    COUNT(*) FILTER (WHERE membership_state = 'pending_approval') AS pending,
    COUNT(*) FILTER (WHERE membership_state = 'approved') AS approved,
    COUNT(*) FILTER (WHERE membership_state = 'rejected') AS rejected,
    COUNT(*) FILTER (WHERE membership_state = 'banned') AS banned
FROM users`
	var counts struct {
		Total    int `db:"total"`
		Admins   int `db:"admins"`
		Pending  int `db:"pending"`
		Approved int `db:"approved"`
		Rejected int `db:"rejected"`
		Banned   int `db:"banned"`
	}
	if err := r.db.GetContext(ctx, &counts, query); err != nil {
		return models.UserCounts{}, fmt.Errorf("count users by state: %w", err)
	}
	return models.UserCounts(counts), nil
}

// PetitionCounts tallies petitions by state plus hidden and likes totals.
func (r *DashboardRepository) PetitionCounts(ctx context.Context) (models.PetitionCounts, error) {
	const query = `SELECT COUNT(*) AS total,
    COUNT(*) FILTER (WHERE state = 'in_review') AS in_review,
    COUNT(*) FILTER (WHERE state = 'approved') AS approved,
    COUNT(*) FILTER (WHERE state = 'not_approved') AS not_approved,
    COUNT(*) FILTER (WHERE state = 'closed') AS closed,
    COUNT(*) FILTER (WHERE hidden) AS hidden,
    COALESCE(SUM(likes), 0) AS likes
FROM petitions`
	var counts struct {
		Total       int `db:"total"`
		InReview    int `db:"in_review"`
		Approved    int `db:"approved"`
		NotApproved int `db:"not_approved"`
		Closed      int `db:"closed"`
		Hidden      int `db:"hidden"`
		Likes       int `db:"likes"`
	}
	if err := r.db.GetContext(ctx, &counts, query); err != nil {
		return models.PetitionCounts{}, fmt.Errorf("count petitions by state: %w", err)
	}
	return models.PetitionCounts{
		Total:       counts.Total,
		InReview:    counts.InReview,
		Approved:    counts.Approved,
		NotApproved: counts.NotApproved,
		Closed:      counts.Closed,
		Hidden:      counts.Hidden,
		Likes:       counts.Likes,
	}, nil
}

// RequestCounts tallies membership requests by state.
func (r *DashboardRepository) RequestCounts(ctx context.Context) (models.RequestCounts, error) {
	const query = `SELECT COUNT(*) AS total,
    COUNT(*) FILTER (WHERE state = 'pending') AS pending,
    COUNT(*) FILTER (WHERE state = 'approved') AS approved,
    COUNT(*) FILTER (WHERE state = 'rejected') AS rejected
FROM membership_requests`
	var counts struct {
		Total    int `db:"total"`
		Pending  int `db:"pending"`
		Approved int `db:"approved"`
		Rejected int `db:"rejected"`
	}
	if err := r.db.GetContext(ctx, &counts, query); err != nil {
		return models.RequestCounts{}, fmt.Errorf("count membership requests by state: %w", err)
	}
	return models.RequestCounts{
		Total:    counts.Total,
		Pending:  counts.Pending,
		Approved: counts.Approved,
		Rejected: counts.Rejected,
	}, nil
}

// CountVotes returns the number of votes recorded on the given target kind.
func (r *DashboardRepository) CountVotes(ctx context.Context, target models.VoteTarget) (int, error) {
	tables, err := tablesFor(target)
	if err != nil {
		return 0, err
	}
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM `+tables.votes); err != nil {
		return 0, fmt.Errorf("count votes: %w", err)
	}
	return total, nil
}
