package risk

import (
	"fmt"
	"math"
	"sync"
	"time"

	"solana-yield-bot-go/internal/models"

	"go.uber.org/zap"
)

// 各项检查的风险分惩罚，总分封顶100
const (
	penaltyReserve      = 30
	penaltySizeBlock    = 25
	penaltySizeWarn     = 10
	penaltyLevBlock     = 30
	penaltyLevWarn      = 15
	penaltyLTVBlock     = 40
	penaltyLTVWarn      = 20
	penaltySlippage     = 20
	penaltyYieldSanity  = 15
	penaltyBreakEven    = 10
	maxRiskScore        = 100
	slippageCostFrac    = 0.003 // 换仓成本模型里固定的滑点比例
	dayKeyLayout        = "2006-01-02"
	sizeWarnThreshold   = 0.8 // 超过仓位上限的80%即告警
	ltvWarnThreshold    = 0.9 // 超过LTV上限的90%即告警
	levWarnThreshold    = 0.8 // 超过杠杆上限的80%即告警
)

// RateKind 区分利率合理性校验的口径
type RateKind string

const (
	RateDeposit  RateKind = "deposit"
	RateMultiply RateKind = "multiply"
)

// Proposal 是提交给风控闸门评估的一个拟议动作
type Proposal struct {
	Action         models.Action
	Params         models.ActionParams
	TargetYieldPct float64 // 动作完成后的目标收益率
	BreakEvenDays  float64 // 预计回本天数, 不适用时为0
}

// SwitchCost 是换仓成本模型的输出
type SwitchCost struct {
	CostUSD       float64 // 一次性总成本
	DailyGainUSD  float64 // 每日收益改善
	BreakEvenDays float64 // 回本天数, 无改善时为 +Inf
	Profitable    bool    // 回本足够快且改善超过最小门槛
}

// Gate 是有状态的安全裁决机构。
// 熔断器与当日盈亏状态只由它修改，单写者纪律由编排器的串行周期保证。
type Gate struct {
	cfg    *models.Config
	logger *zap.SugaredLogger

	mu      sync.Mutex
	breaker models.CircuitBreakerState

	// 可注入的时钟，测试用来控制UTC日界
	nowFn func() time.Time
}

// NewGate 创建一个独立的风控闸门实例。
func NewGate(cfg *models.Config, logger *zap.SugaredLogger) *Gate {
	return &Gate{
		cfg:    cfg,
		logger: logger,
		nowFn:  time.Now,
	}
}

// refreshDayLocked 懒惰地处理UTC日界翻转并更新当日盈亏。
// 没有后台定时器：第一个观测到新日期的调用触发重置。
// 调用方必须持有 g.mu。
func (g *Gate) refreshDayLocked(currentValueUSD float64) {
	dayKey := g.nowFn().UTC().Format(dayKeyLayout)
	if g.breaker.DayKey != dayKey {
		if g.breaker.Tripped {
			g.logger.Infof("UTC日界翻转至 %s，熔断器自动复位", dayKey)
		}
		g.breaker = models.CircuitBreakerState{
			DayKey:        dayKey,
			StartValueUSD: currentValueUSD,
		}
	}
	g.breaker.CurrValueUSD = currentValueUSD
	if g.breaker.StartValueUSD > 0 {
		g.breaker.LossPct = (g.breaker.StartValueUSD - currentValueUSD) / g.breaker.StartValueUSD * 100
	} else {
		g.breaker.LossPct = 0
	}
}

// tripLocked 拉闸。对已经拉闸的熔断器重复调用是空操作。
func (g *Gate) tripLocked(reason string) {
	if g.breaker.Tripped {
		return
	}
	g.breaker.Tripped = true
	g.breaker.Reason = reason
	g.logger.Warnf("熔断器已触发: %s", reason)
}

// ResetBreaker 是操作员的手动复位入口，独立于每日自动翻转。
func (g *Gate) ResetBreaker() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.breaker.Tripped {
		return
	}
	g.breaker.Tripped = false
	g.breaker.Reason = ""
	g.breaker.StartValueUSD = g.breaker.CurrValueUSD
	g.breaker.LossPct = 0
	g.logger.Warn("熔断器已被手动复位，当日起始值重置为当前值")
}

// Breaker 返回熔断器状态的副本供外部检视。
func (g *Gate) Breaker() models.CircuitBreakerState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.breaker
}

// Assess 对单个拟议动作做出裁定。
// 各项规则独立累加风险分；approved 当且仅当没有任何阻断。
func (g *Gate) Assess(p Proposal, snapshot *models.PortfolioSnapshot) *models.RiskVerdict {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.refreshDayLocked(snapshot.TotalValueUSD)

	v := &models.RiskVerdict{}
	block := func(penalty float64, format string, args ...interface{}) {
		v.Blocks = append(v.Blocks, fmt.Sprintf(format, args...))
		v.RiskScore += penalty
	}
	warn := func(penalty float64, format string, args ...interface{}) {
		v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
		v.RiskScore += penalty
	}

	// 熔断器优先于一切其他规则
	if g.breaker.Tripped && p.Action != models.ActionHold {
		v.RiskScore = maxRiskScore
		v.Blocks = append(v.Blocks, fmt.Sprintf("circuit breaker active: %s", g.breaker.Reason))
		return v
	}

	// hold 不动用任何资金，刷新完当日状态后直接放行
	if p.Action == models.ActionHold {
		v.Approved = true
		return v
	}

	// 储备检查
	if snapshot.LiquidSOL < g.cfg.MinReserveSOL {
		block(penaltyReserve, "liquid reserve %.4f %s below minimum %.4f %s",
			snapshot.LiquidSOL, g.cfg.BaseAsset, g.cfg.MinReserveSOL, g.cfg.BaseAsset)
	}

	// 仓位规模检查
	if size := p.Params.SizeUSD(); size > 0 && snapshot.TotalValueUSD > 0 {
		frac := size / snapshot.TotalValueUSD
		if frac > g.cfg.MaxPositionPct {
			block(penaltySizeBlock, "position size %.0f USD is %.1f%% of portfolio, above limit %.1f%%",
				size, frac*100, g.cfg.MaxPositionPct*100)
		} else if frac > g.cfg.MaxPositionPct*sizeWarnThreshold {
			warn(penaltySizeWarn, "position size %.1f%% of portfolio approaches limit %.1f%%",
				frac*100, g.cfg.MaxPositionPct*100)
		}
	}

	// 杠杆检查，仅对开仓/调仓动作生效
	if lev, ok := p.Params.RequestedLeverage(); ok {
		if lev > g.cfg.MaxLeverage {
			block(penaltyLevBlock, "requested leverage %.2fx above limit %.2fx", lev, g.cfg.MaxLeverage)
		} else if lev > g.cfg.MaxLeverage*levWarnThreshold {
			warn(penaltyLevWarn, "requested leverage %.2fx approaches limit %.2fx", lev, g.cfg.MaxLeverage)
		}
	}

	// LTV检查扫描所有持仓，与被评估的动作无关
	for i := range snapshot.Multiplies {
		pos := &snapshot.Multiplies[i]
		if pos.LTV > g.cfg.MaxLTV {
			block(penaltyLTVBlock, "position %s/%s LTV %.3f above limit %.3f",
				pos.Market, pos.Address, pos.LTV, g.cfg.MaxLTV)
		} else if pos.LTV > g.cfg.MaxLTV*ltvWarnThreshold {
			warn(penaltyLTVWarn, "position %s/%s LTV %.3f approaches limit %.3f",
				pos.Market, pos.Address, pos.LTV, g.cfg.MaxLTV)
		}
	}

	// 滑点检查
	if sl, ok := p.Params.RequestedSlippage(); ok && sl > g.cfg.MaxSlippagePct {
		block(penaltySlippage, "requested slippage %.2f%% above cap %.2f%%", sl, g.cfg.MaxSlippagePct)
	}

	// 收益率合理性：超过100%只告警不拒绝，极端但真实的机会确实短暂存在
	if p.TargetYieldPct > 100 {
		warn(penaltyYieldSanity, "target yield %.1f%% is implausibly high", p.TargetYieldPct)
	}

	// 回本天数检查
	if p.BreakEvenDays > g.cfg.MaxBreakEvenDays {
		warn(penaltyBreakEven, "break-even %.1f days exceeds horizon %.1f days",
			p.BreakEvenDays, g.cfg.MaxBreakEvenDays)
	}

	// 当日亏损熔断：亏损超过阈值时拉闸并强制满分
	if g.breaker.LossPct > g.cfg.DailyLossLimitPct {
		reason := fmt.Sprintf("daily loss %.2f%% exceeds limit %.2f%%", g.breaker.LossPct, g.cfg.DailyLossLimitPct)
		g.tripLocked(reason)
		v.RiskScore = maxRiskScore
		v.Blocks = append(v.Blocks, reason)
		return v
	}

	if v.RiskScore > maxRiskScore {
		v.RiskScore = maxRiskScore
	}
	v.Approved = len(v.Blocks) == 0
	return v
}

// CalcSwitchCost 估算从当前收益率切换到目标收益率的一次性成本与回本周期。
// Profitable 要求两个条件同时满足：回本足够快，且收益率改善超过最小门槛——
// 回本很快但改善微小的换仓仍然会被拒绝。
func (g *Gate) CalcSwitchCost(currentYieldPct, targetYieldPct, valueUSD float64, txCount int) SwitchCost {
	sc := SwitchCost{
		CostUSD: g.cfg.TxCostUSD*float64(txCount) + valueUSD*slippageCostFrac,
	}
	delta := targetYieldPct - currentYieldPct
	sc.DailyGainUSD = delta / 100 * valueUSD / 365

	if sc.DailyGainUSD > 0 {
		sc.BreakEvenDays = sc.CostUSD / sc.DailyGainUSD
	} else {
		sc.BreakEvenDays = math.Inf(1)
	}

	sc.Profitable = sc.BreakEvenDays <= g.cfg.MaxBreakEvenDays && delta > g.cfg.MinImprovementPct
	return sc
}

// ValidateRate 校验一个收益率是否可信。
// 低于-5%视为不可能的亏损，高于200%视为数据错误；
// 杠杆策略额外收紧到50%——高杠杆下利差压缩造成的数据伪影远比真实机会常见。
func (g *Gate) ValidateRate(yieldPct float64, kind RateKind) bool {
	if yieldPct < -5 || yieldPct > 200 {
		return false
	}
	if kind == RateMultiply && yieldPct > 50 {
		return false
	}
	return true
}

// Health 把储备、各仓位LTV和当日亏损聚合成三级健康报告。
func (g *Gate) Health(snapshot *models.PortfolioSnapshot) *models.HealthReport {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.refreshDayLocked(snapshot.TotalValueUSD)

	report := &models.HealthReport{
		BreakerActive: g.breaker.Tripped,
		DailyLossPct:  g.breaker.LossPct,
	}

	// 储备
	reserve := models.HealthCheck{Name: "reserve", Severity: models.SeverityOK,
		Detail: fmt.Sprintf("liquid %.4f %s, minimum %.4f %s", snapshot.LiquidSOL, g.cfg.BaseAsset, g.cfg.MinReserveSOL, g.cfg.BaseAsset)}
	switch {
	case snapshot.LiquidSOL < g.cfg.MinReserveSOL:
		reserve.Severity = models.SeverityBlocking
	case snapshot.LiquidSOL < g.cfg.MinReserveSOL*1.25:
		reserve.Severity = models.SeverityWarning
	}
	report.Checks = append(report.Checks, reserve)

	// 每个杠杆仓位的LTV
	for i := range snapshot.Multiplies {
		pos := &snapshot.Multiplies[i]
		check := models.HealthCheck{
			Name:     fmt.Sprintf("ltv:%s/%s", pos.Market, pos.Address),
			Severity: models.SeverityOK,
			Detail:   fmt.Sprintf("ltv %.3f, limit %.3f", pos.LTV, g.cfg.MaxLTV),
		}
		switch {
		case pos.LTV > g.cfg.MaxLTV:
			check.Severity = models.SeverityBlocking
		case pos.LTV > g.cfg.MaxLTV*ltvWarnThreshold:
			check.Severity = models.SeverityWarning
		}
		report.Checks = append(report.Checks, check)
	}

	// 当日亏损
	loss := models.HealthCheck{Name: "daily_loss", Severity: models.SeverityOK,
		Detail: fmt.Sprintf("loss %.2f%%, limit %.2f%%", g.breaker.LossPct, g.cfg.DailyLossLimitPct)}
	switch {
	case g.breaker.Tripped || g.breaker.LossPct > g.cfg.DailyLossLimitPct:
		loss.Severity = models.SeverityBlocking
	case g.breaker.LossPct > g.cfg.DailyLossLimitPct*0.5:
		loss.Severity = models.SeverityWarning
	}
	report.Checks = append(report.Checks, loss)

	report.Status = "green"
	for _, c := range report.Checks {
		if c.Severity == models.SeverityBlocking {
			report.Status = "red"
			break
		}
		if c.Severity == models.SeverityWarning {
			report.Status = "yellow"
		}
	}
	return report
}
