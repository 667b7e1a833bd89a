package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/consejo-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

var userRowColumns = []string{"id", "email", "password_hash", "display_name", "role", "membership_state", "vote_budget", "last_budget_regen_at", "created_at", "updated_at"}

func TestFindByEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(userRowColumns).
		AddRow("u-1", "ana@example.com", "hash", "Ana", string(models.RoleMember), string(models.MembershipApproved), 7, now, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE LOWER(email) = LOWER($1) LIMIT 1")).
		WithArgs("Ana@Example.com").
		WillReturnRows(rows)

	user, err := repo.FindByEmail(context.Background(), "Ana@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", user.Email)
	assert.Equal(t, 7, user.VoteBudget)
	assert.True(t, user.IsMember())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO users").WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.User{Email: "ana@example.com", Role: models.RoleMember, MembershipState: models.MembershipPendingApproval})
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserAnchorsBudgetAtCreation(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	created := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO users").
		WithArgs(sqlmock.AnyArg(), "ana@example.com", "hash", "Ana", models.RoleMember, models.MembershipApproved, 10, created, created, created).
		WillReturnResult(sqlmock.NewResult(1, 1))

	user := &models.User{
		Email:           "ana@example.com",
		PasswordHash:    "hash",
		DisplayName:     "Ana",
		Role:            models.RoleMember,
		MembershipState: models.MembershipApproved,
		VoteBudget:      10,
		CreatedAt:       created,
	}
	require.NoError(t, repo.Create(context.Background(), user))
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, created, user.LastBudgetRegenAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountUsers(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	total, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryListSearchAndState(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	banned := models.MembershipBanned
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE (email ILIKE $1 OR display_name ILIKE $1) AND membership_state = $2 ORDER BY created_at DESC LIMIT 10 OFFSET 10")).
		WithArgs("%ana%", "banned").
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow("u-1", "ana@example.com", "hash", "Ana", string(models.RoleMember), string(models.MembershipBanned), 0, now, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users WHERE (email ILIKE $1 OR display_name ILIKE $1) AND membership_state = $2")).
		WithArgs("%ana%", "banned").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	users, total, err := repo.List(context.Background(), models.UserFilter{Search: " ana ", State: &banned, Page: 2, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, 11, total)
	assert.Equal(t, models.MembershipBanned, users[0].MembershipState)
	assert.NoError(t, mock.ExpectationsWereMet())
}
