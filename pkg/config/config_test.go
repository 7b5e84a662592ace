package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 4*time.Second, cfg.LeaderboardTimeout)
	assert.Equal(t, []string{"exit_velocity", "sprint_speed", "outs_above_average", "pitch_movement"}, cfg.Leaderboards)
	assert.Len(t, cfg.CorsOrigins, 2)
	assert.Equal(t, 5, cfg.CircuitBreakerThreshold)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("SEASON", "2024")
	t.Setenv("SEASON_END_ANCHOR", "2024-09-29")
	t.Setenv("REQUEST_TIMEOUT", "5s")
	t.Setenv("LEAGUES", "yahoo:431.l.1234:431.l.1234.t.3, espn:987654")
	t.Setenv("UPSTREAM_RPS", "2.5")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 2024, cfg.Season)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 2.5, cfg.UpstreamRPS)

	end, err := cfg.SeasonEnd()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.September, 29, 0, 0, 0, 0, time.UTC), end)

	leagues, err := cfg.LeagueConfigs()
	require.NoError(t, err)
	assert.Equal(t, []League{
		{Platform: "yahoo", LeagueKey: "431.l.1234", TeamKey: "431.l.1234.t.3"},
		{Platform: "espn", LeagueKey: "987654"},
	}, leagues)

	league, ok := cfg.FindLeague("987654")
	assert.True(t, ok)
	assert.Equal(t, "espn", league.Platform)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("SEASON_END_ANCHOR", "09/29/2024")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLeagueConfigsRejectsMalformedEntry(t *testing.T) {
	cfg := &Config{Leagues: []string{"yahoo"}}
	_, err := cfg.LeagueConfigs()
	assert.Error(t, err)
}
