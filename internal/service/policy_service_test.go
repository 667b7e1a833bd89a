package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/consejo-api/internal/dto"
	"github.com/noah-isme/consejo-api/internal/models"
	"github.com/noah-isme/consejo-api/pkg/config"
	appErrors "github.com/noah-isme/consejo-api/pkg/errors"
)

type memoryCacheRepo struct {
	items   map[string][]byte
	deletes []string
	err     error
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{items: map[string][]byte{}}
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.items[key] = raw
	return nil
}

func (m *memoryCacheRepo) Delete(ctx context.Context, keys ...string) error {
	if m.err != nil {
		return m.err
	}
	for _, key := range keys {
		delete(m.items, key)
		m.deletes = append(m.deletes, key)
	}
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.items {
		if strings.HasPrefix(key, prefix) {
			delete(m.items, key)
		}
	}
	return nil
}

type policyRepoStub struct {
	cfg       *models.PolicyConfig
	gets      int
	created   int
	updated   []models.PolicyConfig
	getErr    error
	updateErr error
}

func (s *policyRepoStub) Get(ctx context.Context) (*models.PolicyConfig, error) {
	s.gets++
	if s.getErr != nil {
		return nil, s.getErr
	}
	if s.cfg == nil {
		return nil, sql.ErrNoRows
	}
	copied := *s.cfg
	return &copied, nil
}

func (s *policyRepoStub) CreateDefault(ctx context.Context, cfg *models.PolicyConfig) (*models.PolicyConfig, error) {
	s.created++
	copied := *cfg
	s.cfg = &copied
	return cfg, nil
}

func (s *policyRepoStub) Update(ctx context.Context, cfg *models.PolicyConfig) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	copied := *cfg
	s.cfg = &copied
	s.updated = append(s.updated, copied)
	return nil
}

type auditRepoStub struct {
	logs []models.AuditLog
}

func (a *auditRepoStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, *log)
	return nil
}

func testPolicyDefaults() config.PolicyDefaults {
	return config.PolicyDefaults{
		MinVotesPetition:          100,
		MinVotesMembershipRequest: 10,
		ApprovalPercentage:        70,
		MaxVoteBudget:             10,
		RegenIntervalMinutes:      2,
		DailyApprovalCap:          3,
		CacheTTL:                  time.Minute,
	}
}

func newPolicyServiceForTest(repo *policyRepoStub, cacheRepo *memoryCacheRepo, audit *auditRepoStub) *PolicyService {
	cache := NewCacheService(cacheRepo, nil, time.Minute, nil, true)
	return NewPolicyService(repo, cache, audit, testPolicyDefaults(), nil, nil)
}

func TestPolicyServiceCurrentCreatesDefaults(t *testing.T) {
	repo := &policyRepoStub{}
	svc := newPolicyServiceForTest(repo, newMemoryCacheRepo(), &auditRepoStub{})

	cfg, err := svc.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, repo.created)
	assert.Equal(t, 100, cfg.MinVotesPetition)
	assert.Equal(t, 10, cfg.MinVotesMembershipRequest)
	assert.Equal(t, 70, cfg.ApprovalPercentage)
	assert.Equal(t, 10, cfg.MaxVoteBudget)
	assert.Equal(t, 2, cfg.RegenIntervalMinutes)
	assert.Equal(t, 3, cfg.DailyApprovalCap)
}

func TestPolicyServiceCurrentServedFromCache(t *testing.T) {
	repo := &policyRepoStub{cfg: &models.PolicyConfig{ID: 1, MinVotesPetition: 5, ApprovalPercentage: 60, MaxVoteBudget: 4, RegenIntervalMinutes: 3}}
	svc := newPolicyServiceForTest(repo, newMemoryCacheRepo(), &auditRepoStub{})

	first, err := svc.Current(context.Background())
	require.NoError(t, err)
	second, err := svc.Current(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, repo.gets)
	assert.Equal(t, first.MinVotesPetition, second.MinVotesPetition)
	assert.Equal(t, 3, second.RegenIntervalMinutes)
}

func TestPolicyServiceCurrentRepositoryFailure(t *testing.T) {
	repo := &policyRepoStub{getErr: errors.New("db down")}
	svc := newPolicyServiceForTest(repo, newMemoryCacheRepo(), &auditRepoStub{})

	_, err := svc.Current(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
}

func TestPolicyServiceUpdateAppliesPartialChange(t *testing.T) {
	repo := &policyRepoStub{cfg: &models.PolicyConfig{ID: 1, MinVotesPetition: 100, ApprovalPercentage: 70, MaxVoteBudget: 10, RegenIntervalMinutes: 2, DailyApprovalCap: 3}}
	cacheRepo := newMemoryCacheRepo()
	audit := &auditRepoStub{}
	svc := newPolicyServiceForTest(repo, cacheRepo, audit)

	_, err := svc.Current(context.Background())
	require.NoError(t, err)
	require.Contains(t, cacheRepo.items, policyCacheKey)

	pct := 55
	actor := &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
	updated, err := svc.Update(context.Background(), dto.UpdatePolicyRequest{ApprovalPercentage: &pct}, actor)
	require.NoError(t, err)

	assert.Equal(t, 55, updated.ApprovalPercentage)
	assert.Equal(t, 100, updated.MinVotesPetition)
	require.NotNil(t, updated.UpdatedBy)
	assert.Equal(t, "admin-1", *updated.UpdatedBy)
	assert.NotContains(t, cacheRepo.items, policyCacheKey)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionPolicyUpdate, audit.logs[0].Action)
	assert.Contains(t, string(audit.logs[0].OldValues), `"approval_percentage":70`)
	assert.Contains(t, string(audit.logs[0].NewValues), `"approval_percentage":55`)

	current, err := svc.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 55, current.ApprovalPercentage)
}

func TestPolicyServiceUpdateValidation(t *testing.T) {
	repo := &policyRepoStub{cfg: &models.PolicyConfig{ID: 1, ApprovalPercentage: 70, RegenIntervalMinutes: 2}}
	svc := newPolicyServiceForTest(repo, newMemoryCacheRepo(), &auditRepoStub{})

	zero := 0
	over := 101
	negative := -1
	cases := map[string]dto.UpdatePolicyRequest{
		"empty":            {},
		"zero interval":    {RegenIntervalMinutes: &zero},
		"percentage > 100": {ApprovalPercentage: &over},
		"negative budget":  {MaxVoteBudget: &negative},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Update(context.Background(), req, &models.JWTClaims{UserID: "admin"})
			require.Error(t, err)
			assert.True(t, errors.Is(err, appErrors.ErrValidation))
		})
	}
	assert.Empty(t, repo.updated)
}
