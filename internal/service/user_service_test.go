package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/consejo-api/internal/dto"
	"github.com/noah-isme/consejo-api/internal/models"
	appErrors "github.com/noah-isme/consejo-api/pkg/errors"
)

type mockUserStore struct {
	*mockAuthRepo
	lastFilter models.UserFilter
}

func (m *mockUserStore) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	m.lastFilter = filter
	var users []models.User
	for _, u := range m.users {
		users = append(users, *u)
	}
	return users, len(users), nil
}

func adminActor() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
}

func TestUserServiceBanBlocksLogin(t *testing.T) {
	repo := &mockUserStore{mockAuthRepo: newMockAuthRepo()}
	audit := &auditRepoStub{}
	users := NewUserService(repo, staticPolicy{cfg: budgetPolicy()}, audit, nil, nil)
	auth := newAuthServiceForTest(repo.mockAuthRepo, &auditRepoStub{})

	created, err := users.Create(context.Background(), dto.CreateUserRequest{
		Email:       " Rosa@Example.com ",
		Password:    "correct horse",
		DisplayName: "Rosa",
	}, adminActor())
	require.NoError(t, err)
	assert.Equal(t, "rosa@example.com", created.Email)
	assert.Equal(t, models.RoleMember, created.Role)
	assert.Equal(t, models.MembershipApproved, created.MembershipState)
	assert.Equal(t, budgetPolicy().MaxVoteBudget, created.VoteBudget)

	_, err = auth.Login(context.Background(), dto.LoginRequest{Email: "rosa@example.com", Password: "correct horse"})
	require.NoError(t, err)

	banned := models.MembershipBanned
	updated, err := users.Update(context.Background(), created.ID, dto.UpdateUserRequest{MembershipState: &banned}, adminActor())
	require.NoError(t, err)
	assert.Equal(t, models.MembershipBanned, updated.MembershipState)
	assert.Equal(t, []string{created.ID}, repo.roleUpdate)

	_, err = auth.Login(context.Background(), dto.LoginRequest{Email: "rosa@example.com", Password: "correct horse"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	require.Len(t, audit.logs, 2)
	assert.Equal(t, models.AuditActionUserCreate, audit.logs[0].Action)
	assert.Equal(t, models.AuditActionUserUpdate, audit.logs[1].Action)
	assert.JSONEq(t, `{"role":"MEMBER","membership_state":"approved"}`, string(audit.logs[1].OldValues))
	assert.JSONEq(t, `{"role":"MEMBER","membership_state":"banned"}`, string(audit.logs[1].NewValues))
}

func TestUserServiceUpdateGuards(t *testing.T) {
	repo := &mockUserStore{mockAuthRepo: newMockAuthRepo()}
	repo.users["admin-1"] = &models.User{ID: "admin-1", Role: models.RoleAdmin, MembershipState: models.MembershipApproved}
	repo.users["u-1"] = &models.User{ID: "u-1", Role: models.RoleMember, MembershipState: models.MembershipPendingApproval}
	svc := NewUserService(repo, staticPolicy{cfg: budgetPolicy()}, nil, nil, nil)

	banned := models.MembershipBanned
	_, err := svc.Update(context.Background(), "admin-1", dto.UpdateUserRequest{MembershipState: &banned}, adminActor())
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = svc.Update(context.Background(), "u-1", dto.UpdateUserRequest{}, adminActor())
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	bogus := models.MembershipState("suspended")
	_, err = svc.Update(context.Background(), "u-1", dto.UpdateUserRequest{MembershipState: &bogus}, adminActor())
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Update(context.Background(), "missing", dto.UpdateUserRequest{MembershipState: &banned}, adminActor())
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	pending := models.MembershipPendingApproval
	unchanged, err := svc.Update(context.Background(), "u-1", dto.UpdateUserRequest{MembershipState: &pending}, adminActor())
	require.NoError(t, err)
	assert.Equal(t, models.MembershipPendingApproval, unchanged.MembershipState)
	assert.Empty(t, repo.roleUpdate)

	admin := models.RoleAdmin
	promoted, err := svc.Update(context.Background(), "u-1", dto.UpdateUserRequest{Role: &admin}, adminActor())
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, promoted.Role)
	assert.Equal(t, models.MembershipPendingApproval, promoted.MembershipState)
}

func TestUserServiceCreateDuplicateEmail(t *testing.T) {
	repo := &mockUserStore{mockAuthRepo: newMockAuthRepo()}
	repo.users["u-1"] = &models.User{ID: "u-1", Email: "rosa@example.com"}
	svc := NewUserService(repo, staticPolicy{cfg: budgetPolicy()}, nil, nil, nil)

	_, err := svc.Create(context.Background(), dto.CreateUserRequest{Email: "rosa@example.com", Password: "correct horse", DisplayName: "Rosa"}, adminActor())
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	_, err = svc.Create(context.Background(), dto.CreateUserRequest{Email: "new@example.com", Password: "correct horse", DisplayName: "New", Role: "OWNER"}, adminActor())
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestUserServiceListBuildsFilter(t *testing.T) {
	repo := &mockUserStore{mockAuthRepo: newMockAuthRepo()}
	repo.users["u-1"] = &models.User{ID: "u-1", MembershipState: models.MembershipBanned}
	svc := NewUserService(repo, staticPolicy{cfg: budgetPolicy()}, nil, nil, nil)

	users, pagination, err := svc.List(context.Background(), dto.ListUsersQuery{Search: "ana", State: "banned"})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, defaultUserPageSize, pagination.PageSize)
	assert.Equal(t, "ana", repo.lastFilter.Search)
	require.NotNil(t, repo.lastFilter.State)
	assert.Equal(t, models.MembershipBanned, *repo.lastFilter.State)
	assert.Nil(t, repo.lastFilter.Role)

	_, _, err = svc.List(context.Background(), dto.ListUsersQuery{Role: "OWNER"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}
