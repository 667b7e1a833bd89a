package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/consejo-api/internal/models"
	"github.com/noah-isme/consejo-api/internal/repository"
	appErrors "github.com/noah-isme/consejo-api/pkg/errors"
)

// txRunner executes fn inside one serializable unit of work.
type txRunner interface {
	Do(ctx context.Context, fn func(repository.VotingStore) error) error
}

type policyReader interface {
	Current(ctx context.Context) (*models.PolicyConfig, error)
}

// Regenerate credits every whole interval elapsed since the user's anchor.
// The anchor advances by exactly the credited intervals so partial progress
// toward the next unit carries over, even when the budget is capped.
func Regenerate(user models.User, cfg models.PolicyConfig, now time.Time) models.User {
	interval := cfg.RegenInterval()
	elapsed := now.Sub(user.LastBudgetRegenAt)
	if elapsed < interval {
		return user
	}

	units := int64(elapsed / interval)
	budget := int64(user.VoteBudget) + units
	if budget > int64(cfg.MaxVoteBudget) {
		budget = int64(cfg.MaxVoteBudget)
	}
	if budget < 0 {
		budget = 0
	}

	user.VoteBudget = int(budget)
	user.LastBudgetRegenAt = user.LastBudgetRegenAt.Add(time.Duration(units) * interval)
	return user
}

// secondsUntilNext returns 0 for a full budget, otherwise the whole seconds
// (rounded up) until the next unit is credited.
func secondsUntilNext(user models.User, cfg models.PolicyConfig, now time.Time) int {
	if user.VoteBudget >= cfg.MaxVoteBudget {
		return 0
	}
	interval := cfg.RegenInterval()
	elapsed := now.Sub(user.LastBudgetRegenAt)
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := interval - elapsed%interval
	return int(math.Ceil(remaining.Seconds()))
}

// BudgetService owns every read and write of a user's vote budget.
type BudgetService struct {
	tx     txRunner
	policy policyReader
	logger *zap.Logger
	now    func() time.Time
}

// NewBudgetService constructs a BudgetService.
func NewBudgetService(tx txRunner, policy policyReader, logger *zap.Logger) *BudgetService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BudgetService{tx: tx, policy: policy, logger: logger, now: time.Now}
}

// TryConsume spends one unit of the user's budget. It reports false, leaving
// the budget untouched, when nothing is left after regeneration.
func (s *BudgetService) TryConsume(ctx context.Context, userID string) (bool, error) {
	cfg, err := s.policy.Current(ctx)
	if err != nil {
		return false, err
	}

	var consumed bool
	err = s.tx.Do(ctx, func(store repository.VotingStore) error {
		var err error
		consumed, err = s.ConsumeWithin(ctx, store, userID, *cfg)
		return err
	})
	if err != nil {
		return false, translateBudgetError(err)
	}
	return consumed, nil
}

// ConsumeWithin is TryConsume inside the caller's unit of work, so the spent
// unit commits or rolls back together with the caller's writes.
func (s *BudgetService) ConsumeWithin(ctx context.Context, store repository.VotingStore, userID string, cfg models.PolicyConfig) (bool, error) {
	user, err := store.LockUser(ctx, userID)
	if err != nil {
		return false, err
	}

	now := s.now().UTC()
	refreshed := Regenerate(*user, cfg, now)
	if refreshed.VoteBudget <= 0 {
		if !refreshed.LastBudgetRegenAt.Equal(user.LastBudgetRegenAt) {
			if err := store.UpdateUserBudget(ctx, userID, refreshed.VoteBudget, refreshed.LastBudgetRegenAt); err != nil {
				return false, err
			}
		}
		return false, nil
	}

	refreshed.VoteBudget--
	if err := store.UpdateUserBudget(ctx, userID, refreshed.VoteBudget, refreshed.LastBudgetRegenAt); err != nil {
		return false, err
	}
	return true, nil
}

// Status regenerates the user's budget, persisting any credit, and reports it.
func (s *BudgetService) Status(ctx context.Context, userID string) (*models.BudgetStatus, error) {
	cfg, err := s.policy.Current(ctx)
	if err != nil {
		return nil, err
	}

	var status models.BudgetStatus
	err = s.tx.Do(ctx, func(store repository.VotingStore) error {
		user, err := store.LockUser(ctx, userID)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		refreshed := Regenerate(*user, *cfg, now)
		if !refreshed.LastBudgetRegenAt.Equal(user.LastBudgetRegenAt) {
			if err := store.UpdateUserBudget(ctx, userID, refreshed.VoteBudget, refreshed.LastBudgetRegenAt); err != nil {
				return err
			}
		}
		status = models.BudgetStatus{
			VoteBudget:           refreshed.VoteBudget,
			SecondsUntilNext:     secondsUntilNext(refreshed, *cfg, now),
			MaxVoteBudget:        cfg.MaxVoteBudget,
			RegenIntervalMinutes: cfg.RegenIntervalMinutes,
		}
		return nil
	})
	if err != nil {
		return nil, translateBudgetError(err)
	}
	return &status, nil
}

func translateBudgetError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "user not found")
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update vote budget")
}
