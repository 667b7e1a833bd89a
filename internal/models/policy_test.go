package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPolicyConfigRegenIntervalClamp(t *testing.T) {
	cases := map[string]struct {
		minutes int
		want    time.Duration
	}{
		"zero":     {minutes: 0, want: time.Minute},
		"negative": {minutes: -3, want: time.Minute},
		"one":      {minutes: 1, want: time.Minute},
		"five":     {minutes: 5, want: 5 * time.Minute},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := PolicyConfig{RegenIntervalMinutes: tc.minutes}
			assert.Equal(t, tc.want, cfg.RegenInterval())
		})
	}
}
