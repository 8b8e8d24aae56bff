package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigLoad_Defaults(t *testing.T) {
	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, EnvProduction, cfg.Environment)
	assert.Equal(t, "sqlite", cfg.KVDriver)
	assert.Equal(t, 0.3, cfg.MatchThreshold)
	assert.Equal(t, 10, cfg.MinMatchLength)
	assert.Equal(t, 100, cfg.PositionTolerance)
	assert.Equal(t, 6*time.Second, cfg.QuietWindow)
	assert.Equal(t, time.Second, cfg.SweepInterval)
	assert.Equal(t, AttributionEither, cfg.AttributionPolicy)
}

func TestConfigLoad_EnvOverride(t *testing.T) {
	t.Setenv("EVENTWATCH_KV_DRIVER", "memory")
	t.Setenv("EVENTWATCH_QUIET_WINDOW", "3s")
	t.Setenv("EVENTWATCH_ATTRIBUTION_POLICY", "accepted")
	t.Setenv("EVENTWATCH_PLAYER_NAME", "Fisher")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.KVDriver)
	assert.Equal(t, 3*time.Second, cfg.QuietWindow)
	assert.Equal(t, AttributionAccepted, cfg.AttributionPolicy)
	assert.Equal(t, "Fisher", cfg.PlayerName)
}

func TestResolveDefaults_Rejects(t *testing.T) {
	cases := map[string]func(c *Config){
		"kv driver":       func(c *Config) { c.KVDriver = "mongo" },
		"postgres no dsn": func(c *Config) { c.KVDriver = "postgres" },
		"environment":     func(c *Config) { c.Environment = "staging" },
		"policy":          func(c *Config) { c.AttributionPolicy = "sometimes" },
		"threshold":       func(c *Config) { c.MatchThreshold = 1.5 },
		"min length":      func(c *Config) { c.MinMatchLength = 0 },
		"interval":        func(c *Config) { c.SweepInterval = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := NewForTesting()
			mutate(cfg)
			assert.Error(t, cfg.ResolveDefaults())
		})
	}
}

func TestNewForTesting_IsValid(t *testing.T) {
	cfg := NewForTesting()
	require.NoError(t, cfg.ResolveDefaults())
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, ":0", cfg.GetHTTPAddr())
}
