package config

import (
	"encoding/json"
	"fmt"
	"os"

	"solana-yield-bot-go/internal/models"
)

// riskProfiles 把风险偏好档位映射到具体的约束三元组。
// 档位只约束策略评估器的筛选，硬性上限始终以 Config 里的值为准。
var riskProfiles = map[string]models.RiskProfile{
	"conservative": {MaxRiskScore: 40, MinRiskAdjusted: 1.0, PreferredLeverage: 1.5},
	"balanced":     {MaxRiskScore: 60, MinRiskAdjusted: 0.5, PreferredLeverage: 2.0},
	"aggressive":   {MaxRiskScore: 80, MinRiskAdjusted: 0.25, PreferredLeverage: 3.0},
}

// LoadConfig 从指定路径加载JSON配置文件，填充默认值并校验。
func LoadConfig(path string) (*models.Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	cfg := &models.Config{}
	if err := json.NewDecoder(file).Decode(cfg); err != nil {
		return nil, err
	}

	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults 为未设置的可选项填充默认值。
func ApplyDefaults(cfg *models.Config) {
	if cfg.BaseAsset == "" {
		cfg.BaseAsset = "SOL"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "decision_log"
	}
	if cfg.MinReserveSOL == 0 {
		cfg.MinReserveSOL = 1.0
	}
	if cfg.MaxPositionPct == 0 {
		cfg.MaxPositionPct = 0.5
	}
	if cfg.MaxLeverage == 0 {
		cfg.MaxLeverage = 3.0
	}
	if cfg.MaxLTV == 0 {
		cfg.MaxLTV = 0.75
	}
	if cfg.MaxSlippagePct == 0 {
		cfg.MaxSlippagePct = 1.0
	}
	if cfg.DailyLossLimitPct == 0 {
		cfg.DailyLossLimitPct = 5.0
	}
	if cfg.MinImprovementPct == 0 {
		cfg.MinImprovementPct = 1.0
	}
	if cfg.MaxBreakEvenDays == 0 {
		cfg.MaxBreakEvenDays = 7
	}
	if cfg.MinSpreadPct == 0 {
		cfg.MinSpreadPct = 2.0
	}
	if cfg.TxCostUSD == 0 {
		cfg.TxCostUSD = 0.25
	}
	if cfg.RiskTolerance == "" {
		cfg.RiskTolerance = "balanced"
	}
	if cfg.CycleIntervalMin == 0 {
		cfg.CycleIntervalMin = 120
	}
	if cfg.FailureCooldownMin == 0 {
		cfg.FailureCooldownMin = 5
	}
	if cfg.RateStaleSec == 0 {
		cfg.RateStaleSec = 600
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.LogConfig.Output == "" {
		cfg.LogConfig.Output = "console"
	}
}

// Validate 校验配置的合法性，拒绝明显危险的取值。
func Validate(cfg *models.Config) error {
	if _, ok := riskProfiles[cfg.RiskTolerance]; !ok {
		return fmt.Errorf("未知的风险偏好档位: %q (可选: conservative, balanced, aggressive)", cfg.RiskTolerance)
	}
	if cfg.MaxPositionPct <= 0 || cfg.MaxPositionPct > 1 {
		return fmt.Errorf("max_position_pct 必须在 (0,1] 区间内, 当前: %v", cfg.MaxPositionPct)
	}
	if cfg.MaxLTV <= 0 || cfg.MaxLTV >= 1 {
		return fmt.Errorf("max_ltv 必须在 (0,1) 区间内, 当前: %v", cfg.MaxLTV)
	}
	if cfg.MaxLeverage < 1 {
		return fmt.Errorf("max_leverage 不能小于 1, 当前: %v", cfg.MaxLeverage)
	}
	if cfg.DailyLossLimitPct <= 0 {
		return fmt.Errorf("daily_loss_limit_pct 必须为正数, 当前: %v", cfg.DailyLossLimitPct)
	}
	return nil
}

// Profile 返回配置对应的风险约束三元组。
// 调用方应先通过 Validate，未知档位回退到 balanced。
func Profile(cfg *models.Config) models.RiskProfile {
	if p, ok := riskProfiles[cfg.RiskTolerance]; ok {
		return p
	}
	return riskProfiles["balanced"]
}
