package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/consejo-api/internal/dto"
	"github.com/noah-isme/consejo-api/internal/models"
	"github.com/noah-isme/consejo-api/pkg/config"
	appErrors "github.com/noah-isme/consejo-api/pkg/errors"
)

const policyCacheKey = "policy:current"

type policyRepository interface {
	Get(ctx context.Context) (*models.PolicyConfig, error)
	CreateDefault(ctx context.Context, cfg *models.PolicyConfig) (*models.PolicyConfig, error)
	Update(ctx context.Context, cfg *models.PolicyConfig) error
}

// PolicyService serves the singleton policy configuration through the cache.
type PolicyService struct {
	repo      policyRepository
	cache     *CacheService
	audit     auditLogger
	defaults  config.PolicyDefaults
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewPolicyService constructs a PolicyService.
func NewPolicyService(repo policyRepository, cache *CacheService, audit auditLogger, defaults config.PolicyDefaults, validate *validator.Validate, logger *zap.Logger) *PolicyService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PolicyService{
		repo:      repo,
		cache:     cache,
		audit:     audit,
		defaults:  defaults,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Current returns the active policy, creating the default row on first use.
// Cached values may lag an update made on another instance by up to the TTL.
func (s *PolicyService) Current(ctx context.Context) (*models.PolicyConfig, error) {
	var cached models.PolicyConfig
	if s.cache.Get(ctx, policyCacheKey, &cached) {
		return &cached, nil
	}
	cfg, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, policyCacheKey, cfg, s.defaults.CacheTTL)
	return cfg, nil
}

// Update applies a partial change to the policy.
func (s *PolicyService) Update(ctx context.Context, req dto.UpdatePolicyRequest, actor *models.JWTClaims) (*models.PolicyConfig, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid policy payload")
	}
	if req.Empty() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no policy fields supplied")
	}

	current, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	previous := *current
	next := applyPolicyUpdate(*current, req)
	if err := validatePolicy(next); err != nil {
		return nil, err
	}
	next.ID = models.PolicyConfigID
	next.UpdatedBy = userIDPtr(actor)
	next.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, &next); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "policy not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update policy")
	}
	if err := s.cache.Delete(ctx, policyCacheKey); err != nil {
		s.logger.Warn("stale policy may be served until cache expiry", zap.Error(err))
	}

	recordAudit(ctx, s.audit, s.logger, actor, auditEntry{
		Action:     models.AuditActionPolicyUpdate,
		Resource:   "policy_config",
		ResourceID: "1",
		Old:        previous,
		New:        next,
		Source:     "policy-service",
	})
	return &next, nil
}

func (s *PolicyService) load(ctx context.Context) (*models.PolicyConfig, error) {
	cfg, err := s.repo.Get(ctx)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load policy")
	}

	defaults := s.defaultPolicy()
	cfg, err = s.repo.CreateDefault(ctx, &defaults)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create default policy")
	}
	s.logger.Info("created default policy configuration")
	return cfg, nil
}

func (s *PolicyService) defaultPolicy() models.PolicyConfig {
	return models.PolicyConfig{
		ID:                        models.PolicyConfigID,
		MinVotesPetition:          s.defaults.MinVotesPetition,
		MinVotesMembershipRequest: s.defaults.MinVotesMembershipRequest,
		ApprovalPercentage:        s.defaults.ApprovalPercentage,
		MaxVoteBudget:             s.defaults.MaxVoteBudget,
		RegenIntervalMinutes:      s.defaults.RegenIntervalMinutes,
		DailyApprovalCap:          s.defaults.DailyApprovalCap,
		UpdatedAt:                 s.now().UTC(),
	}
}

func applyPolicyUpdate(cfg models.PolicyConfig, req dto.UpdatePolicyRequest) models.PolicyConfig {
	if req.MinVotesPetition != nil {
		cfg.MinVotesPetition = *req.MinVotesPetition
	}
	if req.MinVotesMembershipRequest != nil {
		cfg.MinVotesMembershipRequest = *req.MinVotesMembershipRequest
	}
	if req.ApprovalPercentage != nil {
		cfg.ApprovalPercentage = *req.ApprovalPercentage
	}
	if req.MaxVoteBudget != nil {
		cfg.MaxVoteBudget = *req.MaxVoteBudget
	}
	if req.RegenIntervalMinutes != nil {
		cfg.RegenIntervalMinutes = *req.RegenIntervalMinutes
	}
	if req.DailyApprovalCap != nil {
		cfg.DailyApprovalCap = *req.DailyApprovalCap
	}
	return cfg
}

func validatePolicy(cfg models.PolicyConfig) error {
	switch {
	case cfg.MinVotesPetition < 0, cfg.MinVotesMembershipRequest < 0, cfg.MaxVoteBudget < 0, cfg.DailyApprovalCap < 0:
		return appErrors.Clone(appErrors.ErrValidation, "policy values must not be negative")
	case cfg.ApprovalPercentage < 0 || cfg.ApprovalPercentage > 100:
		return appErrors.Clone(appErrors.ErrValidation, "approval_percentage must be between 0 and 100")
	case cfg.RegenIntervalMinutes < 1:
		return appErrors.Clone(appErrors.ErrValidation, "regen_interval_minutes must be at least 1")
	}
	return nil
}
