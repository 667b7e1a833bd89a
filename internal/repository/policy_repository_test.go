package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/consejo-api/internal/models"
)

var policyRowColumns = []string{"id", "min_votes_petition", "min_votes_membership_request", "approval_percentage", "max_vote_budget", "regen_interval_minutes", "daily_approval_cap", "updated_by", "updated_at"}

func TestPolicyRepositoryGetMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPolicyRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM policy_config WHERE id = $1")).
		WithArgs(1).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background())
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPolicyRepositoryCreateDefaultReturnsStoredRow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPolicyRepository(db)

	now := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO policy_config")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM policy_config WHERE id = $1")).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows(policyRowColumns).AddRow(1, 50, 10, 60, 8, 5, 3, nil, now))

	cfg, err := repo.CreateDefault(context.Background(), &models.PolicyConfig{MinVotesPetition: 100, ApprovalPercentage: 70, MaxVoteBudget: 10, RegenIntervalMinutes: 2, UpdatedAt: now})
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.MinVotesPetition, "a concurrently created row wins over the defaults")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPolicyRepositoryUpdate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPolicyRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE policy_config SET min_votes_petition = ?")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), &models.PolicyConfig{MinVotesPetition: 5, ApprovalPercentage: 70, MaxVoteBudget: 10, RegenIntervalMinutes: 2})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
