package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/consejo-api/internal/dto"
	"github.com/noah-isme/consejo-api/internal/models"
	"github.com/noah-isme/consejo-api/internal/repository"
	appErrors "github.com/noah-isme/consejo-api/pkg/errors"
)

const defaultUserPageSize = 20

type userStore interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateRole(ctx context.Context, id string, role models.UserRole, state models.MembershipState) error
}

// UserService handles admin account management.
type UserService struct {
	repo      userStore
	policy    policyReader
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userStore, policy policyReader, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, policy: policy, audit: audit, validator: validate, logger: logger, now: time.Now}
}

// List returns paginated users and pagination metadata.
func (s *UserService) List(ctx context.Context, query dto.ListUsersQuery) ([]models.User, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user filter")
	}
	filter := models.UserFilter{Search: query.Search, Page: query.Page, PageSize: query.PageSize}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = defaultUserPageSize
	}
	if query.Role != "" {
		role := models.UserRole(query.Role)
		filter.Role = &role
	}
	if query.State != "" {
		state := models.MembershipState(query.State)
		filter.State = &state
	}

	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	if users == nil {
		users = []models.User{}
	}
	return users, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// Create opens an account on an admin's behalf. The vote budget starts full.
func (s *UserService) Create(ctx context.Context, req dto.CreateUserRequest, actor *models.JWTClaims) (*models.User, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create user payload")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	cfg, err := s.policy.Current(ctx)
	if err != nil {
		return nil, err
	}

	role := req.Role
	if role == "" {
		role = models.RoleMember
	}
	state := req.MembershipState
	if state == "" {
		state = models.MembershipApproved
	}
	now := s.now().UTC()
	user := &models.User{
		Email:             req.Email,
		PasswordHash:      string(hash),
		DisplayName:       req.DisplayName,
		Role:              role,
		MembershipState:   state,
		VoteBudget:        cfg.MaxVoteBudget,
		LastBudgetRegenAt: now,
		CreatedAt:         now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	recordAudit(ctx, s.audit, s.logger, actor, auditEntry{
		Action:     models.AuditActionUserCreate,
		Resource:   "users",
		ResourceID: user.ID,
		New:        map[string]interface{}{"email": user.Email, "role": user.Role, "membership_state": user.MembershipState},
	})
	return user, nil
}

// Update changes a user's role or membership state. Admins cannot change
// their own account, so at least one admin always keeps access.
func (s *UserService) Update(ctx context.Context, id string, req dto.UpdateUserRequest, actor *models.JWTClaims) (*models.User, error) {
	if actor == nil || actor.UserID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update user payload")
	}
	if req.Role == nil && req.MembershipState == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "nothing to update")
	}
	if actor.UserID == id {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "administrators cannot change their own role or membership")
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	before := map[string]interface{}{"role": user.Role, "membership_state": user.MembershipState}
	role, state := user.Role, user.MembershipState
	if req.Role != nil {
		role = *req.Role
	}
	if req.MembershipState != nil {
		state = *req.MembershipState
	}
	if role == user.Role && state == user.MembershipState {
		return user, nil
	}

	if err := s.repo.UpdateRole(ctx, id, role, state); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}
	user.Role, user.MembershipState = role, state
	user.UpdatedAt = s.now().UTC()

	if state == models.MembershipBanned {
		s.logger.Info("user banned", zap.String("user_id", id), zap.String("actor_id", actor.UserID))
	}
	recordAudit(ctx, s.audit, s.logger, actor, auditEntry{
		Action:     models.AuditActionUserUpdate,
		Resource:   "users",
		ResourceID: id,
		Old:        before,
		New:        map[string]interface{}{"role": role, "membership_state": state},
	})
	return user, nil
}
