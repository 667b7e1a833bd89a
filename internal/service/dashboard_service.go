package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/consejo-api/internal/models"
	appErrors "github.com/noah-isme/consejo-api/pkg/errors"
)

const dashboardCacheKey = "dash:admin:summary"

type dashboardRepository interface {
	UserCounts(ctx context.Context) (models.UserCounts, error)
	PetitionCounts(ctx context.Context) (models.PetitionCounts, error)
	RequestCounts(ctx context.Context) (models.RequestCounts, error)
	CountVotes(ctx context.Context, target models.VoteTarget) (int, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL time.Duration
}

// DashboardService composes the admin overview.
type DashboardService struct {
	repo   dashboardRepository
	cache  *CacheService
	logger *zap.Logger
	now    func() time.Time
	cfg    DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(repo dashboardRepository, cache *CacheService, logger *zap.Logger, cfg DashboardServiceConfig) *DashboardService {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{repo: repo, cache: cache, logger: logger, now: time.Now, cfg: cfg}
}

// Summary returns the admin dashboard and whether it came from the cache.
func (s *DashboardService) Summary(ctx context.Context) (*models.DashboardSummary, bool, error) {
	var cached models.DashboardSummary
	if s.cache.Get(ctx, dashboardCacheKey, &cached) {
		return &cached, true, nil
	}

	summary, err := s.compose(ctx)
	if err != nil {
		return nil, false, err
	}
	s.cache.Set(ctx, dashboardCacheKey, summary, s.cfg.CacheTTL)
	return summary, false, nil
}

func (s *DashboardService) compose(ctx context.Context) (*models.DashboardSummary, error) {
	summary := &models.DashboardSummary{GeneratedAt: s.now().UTC()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		counts, err := s.repo.UserCounts(gctx)
		summary.Users = counts
		return err
	})
	g.Go(func() error {
		counts, err := s.repo.PetitionCounts(gctx)
		if err != nil {
			return err
		}
		votes, err := s.repo.CountVotes(gctx, models.TargetPetition)
		counts.Votes = votes
		summary.Petitions = counts
		return err
	})
	g.Go(func() error {
		counts, err := s.repo.RequestCounts(gctx)
		if err != nil {
			return err
		}
		votes, err := s.repo.CountVotes(gctx, models.TargetMembershipRequest)
		counts.Votes = votes
		summary.MembershipRequests = counts
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("dashboard summary failed", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compose dashboard")
	}
	return summary, nil
}
