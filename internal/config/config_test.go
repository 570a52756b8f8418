package config

import (
	"os"
	"path/filepath"
	"testing"

	"solana-yield-bot-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{"yield_api_url": "http://api.local", "wallet_address": "w1"}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "SOL", cfg.BaseAsset)
	assert.Equal(t, 1.0, cfg.MinReserveSOL)
	assert.Equal(t, 0.5, cfg.MaxPositionPct)
	assert.Equal(t, 3.0, cfg.MaxLeverage)
	assert.Equal(t, 5.0, cfg.DailyLossLimitPct)
	assert.Equal(t, 7.0, cfg.MaxBreakEvenDays)
	assert.Equal(t, "balanced", cfg.RiskTolerance)
	assert.Equal(t, 120, cfg.CycleIntervalMin)
	assert.Equal(t, "info", cfg.LogConfig.Level)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"unknown tolerance": `{"risk_tolerance": "yolo"}`,
		"ltv out of range":  `{"max_ltv": 1.5}`,
		"position too big":  `{"max_position_pct": 2.0}`,
		"negative loss cap": `{"daily_loss_limit_pct": -1}`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestProfileFallsBackToBalanced(t *testing.T) {
	p := Profile(&models.Config{RiskTolerance: "unknown"})
	assert.Equal(t, 60.0, p.MaxRiskScore)
	assert.Equal(t, 2.0, p.PreferredLeverage)
}
