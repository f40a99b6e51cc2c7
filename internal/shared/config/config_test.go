package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, time.Second, cfg.Game.TickInterval)
	assert.Equal(t, 30*time.Second, cfg.Game.BettingDuration)
	assert.Equal(t, 60*time.Second, cfg.Game.RoundDuration)
	assert.Equal(t, []int64{10, 50, 100, 500, 1000, 5000}, cfg.Game.BetOptions)
	assert.True(t, cfg.Game.WinThreshold.Equal(decimal.NewFromInt(1)))
	assert.True(t, cfg.Game.MultiplierMax.Equal(decimal.NewFromInt(10)))
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("BETTING_DURATION", "5s")
	t.Setenv("ROUND_DURATION", "8s")
	t.Setenv("BET_OPTIONS", "5, 25")
	t.Setenv("WIN_THRESHOLD", "1.5")
	t.Setenv("ADMIN_ID", "42")
	t.Setenv("STORAGE", "memory")

	cfg := Load()

	assert.Equal(t, 5*time.Second, cfg.Game.BettingDuration)
	assert.Equal(t, 8*time.Second, cfg.Game.RoundDuration)
	assert.Equal(t, []int64{5, 25}, cfg.Game.BetOptions)
	assert.True(t, cfg.Game.WinThreshold.Equal(decimal.RequireFromString("1.5")))
	assert.Equal(t, int64(42), cfg.AdminID)
	assert.Equal(t, "memory", cfg.Storage)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("TICK_INTERVAL", "soon")
	t.Setenv("BET_OPTIONS", "10,abc")

	cfg := Load()

	assert.Equal(t, time.Second, cfg.Game.TickInterval)
	assert.Equal(t, []int64{10, 50, 100, 500, 1000, 5000}, cfg.Game.BetOptions)
}

func TestValidate(t *testing.T) {
	base := Load()

	t.Run("betting longer than round", func(t *testing.T) {
		cfg := base
		cfg.Game.BettingDuration = 2 * cfg.Game.RoundDuration
		require.Error(t, cfg.Validate())
	})

	t.Run("inverted multiplier range", func(t *testing.T) {
		cfg := base
		cfg.Game.MultiplierMin = decimal.NewFromInt(5)
		cfg.Game.MultiplierMax = decimal.NewFromInt(2)
		require.Error(t, cfg.Validate())
	})

	t.Run("non positive stake", func(t *testing.T) {
		cfg := base
		cfg.Game.BetOptions = []int64{10, 0}
		require.Error(t, cfg.Validate())
	})

	t.Run("unknown storage", func(t *testing.T) {
		cfg := base
		cfg.Storage = "sqlite"
		require.Error(t, cfg.Validate())
	})
}
