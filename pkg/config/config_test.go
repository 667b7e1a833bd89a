package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 4000, cfg.Port)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 100, cfg.Policy.MinVotesPetition)
	assert.Equal(t, 10, cfg.Policy.MinVotesMembershipRequest)
	assert.Equal(t, 70, cfg.Policy.ApprovalPercentage)
	assert.Equal(t, 10, cfg.Policy.MaxVoteBudget)
	assert.Equal(t, 2, cfg.Policy.RegenIntervalMinutes)
	assert.Equal(t, 3, cfg.Policy.DailyApprovalCap)
	assert.Equal(t, 100, cfg.Bootstrap.AutoApproveMembers)
	assert.Equal(t, 168*time.Hour, cfg.JWT.Expiration)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	chdirTemp(t)
	t.Setenv("POLICY_APPROVAL_PERCENTAGE", "55")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("EXPORTS_SIGNED_URL_TTL", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 55, cfg.Policy.ApprovalPercentage)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 24*time.Hour, cfg.Exports.SignedURLTTL)
}

func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
