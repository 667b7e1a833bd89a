package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/consejo-api/internal/models"
)

// PolicyRepository persists the singleton policy row.
type PolicyRepository struct {
	db *sqlx.DB
}

// NewPolicyRepository constructs the repository.
func NewPolicyRepository(db *sqlx.DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

const policyColumns = `id, min_votes_petition, min_votes_membership_request, approval_percentage, max_vote_budget, regen_interval_minutes, daily_approval_cap, updated_by, updated_at`

// Get returns the policy row or sql.ErrNoRows when it was never created.
func (r *PolicyRepository) Get(ctx context.Context) (*models.PolicyConfig, error) {
	query := `SELECT ` + policyColumns + ` FROM policy_config WHERE id = $1`
	var cfg models.PolicyConfig
	if err := r.db.GetContext(ctx, &cfg, query, models.PolicyConfigID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get policy: %w", err)
	}
	return &cfg, nil
}

// CreateDefault inserts cfg unless a row exists, then returns whichever row won.
func (r *PolicyRepository) CreateDefault(ctx context.Context, cfg *models.PolicyConfig) (*models.PolicyConfig, error) {
	cfg.ID = models.PolicyConfigID
	const insert = `INSERT INTO policy_config (id, min_votes_petition, min_votes_membership_request, approval_percentage, max_vote_budget, regen_interval_minutes, daily_approval_cap, updated_by, updated_at)
VALUES (:id, :min_votes_petition, :min_votes_membership_request, :approval_percentage, :max_vote_budget, :regen_interval_minutes, :daily_approval_cap, :updated_by, :updated_at)
ON CONFLICT (id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, insert, cfg); err != nil {
		return nil, fmt.Errorf("create default policy: %w", err)
	}
	return r.Get(ctx)
}

// Update overwrites every mutable field of the policy row.
func (r *PolicyRepository) Update(ctx context.Context, cfg *models.PolicyConfig) error {
	cfg.ID = models.PolicyConfigID
	const query = `UPDATE policy_config SET min_votes_petition = :min_votes_petition,
    min_votes_membership_request = :min_votes_membership_request,
    approval_percentage = :approval_percentage,
    max_vote_budget = :max_vote_budget,
    regen_interval_minutes = :regen_interval_minutes,
    daily_approval_cap = :daily_approval_cap,
    updated_by = :updated_by,
    updated_at = :updated_at
WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, cfg); err != nil {
		return fmt.Errorf("update policy: %w", err)
	}
	return nil
}
