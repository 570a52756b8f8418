package models

import (
	"strings"
	"time"
)

// Action 定义了代理可以做出的动作类型
type Action string

const (
	ActionHold           Action = "hold"
	ActionDeposit        Action = "deposit"         // 进入简单存款
	ActionOpenMultiply   Action = "open_multiply"   // 开杠杆循环仓位
	ActionCloseMultiply  Action = "close_multiply"  // 平杠杆循环仓位
	ActionAdjustMultiply Action = "adjust_multiply" // 调整杠杆倍数
	ActionSwap           Action = "swap"            // 换仓
)

// ActionParams 是动作参数的带标签联合体：最多只有一个变体非nil，
// 由 Decision.Action / Candidate.Action 决定是哪一个。
type ActionParams struct {
	Deposit        *DepositParams        `json:"deposit,omitempty"`
	OpenMultiply   *OpenMultiplyParams   `json:"open_multiply,omitempty"`
	CloseMultiply  *CloseMultiplyParams  `json:"close_multiply,omitempty"`
	AdjustMultiply *AdjustMultiplyParams `json:"adjust_multiply,omitempty"`
	Swap           *SwapParams           `json:"swap,omitempty"`
}

// DepositParams 携带进入简单存款所需的参数
type DepositParams struct {
	Protocol    string  `json:"protocol"`
	Pool        string  `json:"pool"`
	Token       string  `json:"token"`
	AmountUSD   float64 `json:"amount_usd"`
	SlippagePct float64 `json:"slippage_pct"`
}

// OpenMultiplyParams 携带开杠杆仓位所需的参数
type OpenMultiplyParams struct {
	Market          string  `json:"market"`
	CollateralToken string  `json:"collateral_token"`
	DebtToken       string  `json:"debt_token"`
	Leverage        float64 `json:"leverage"`
	AmountUSD       float64 `json:"amount_usd"`
	SlippagePct     float64 `json:"slippage_pct"`
}

// CloseMultiplyParams 仅需要仓位标识
type CloseMultiplyParams struct {
	Market  string `json:"market"`
	Address string `json:"address"`
}

// AdjustMultiplyParams 携带目标杠杆
type AdjustMultiplyParams struct {
	Market         string  `json:"market"`
	Address        string  `json:"address"`
	TargetLeverage float64 `json:"target_leverage"`
}

// SwapParams 携带换仓参数
type SwapParams struct {
	FromToken   string  `json:"from_token"`
	ToToken     string  `json:"to_token"`
	AmountUSD   float64 `json:"amount_usd"`
	SlippagePct float64 `json:"slippage_pct"`
}

// SizeUSD 返回该动作将要动用的资金规模；hold 和 close 为 0。
func (p ActionParams) SizeUSD() float64 {
	switch {
	case p.Deposit != nil:
		return p.Deposit.AmountUSD
	case p.OpenMultiply != nil:
		return p.OpenMultiply.AmountUSD
	case p.Swap != nil:
		return p.Swap.AmountUSD
	}
	return 0
}

// RequestedLeverage 返回该动作请求的杠杆倍数；第二个返回值指示是否适用。
func (p ActionParams) RequestedLeverage() (float64, bool) {
	switch {
	case p.OpenMultiply != nil:
		return p.OpenMultiply.Leverage, true
	case p.AdjustMultiply != nil:
		return p.AdjustMultiply.TargetLeverage, true
	}
	return 0, false
}

// RequestedSlippage 返回该动作请求的滑点上限；第二个返回值指示是否适用。
func (p ActionParams) RequestedSlippage() (float64, bool) {
	switch {
	case p.Deposit != nil:
		return p.Deposit.SlippagePct, true
	case p.OpenMultiply != nil:
		return p.OpenMultiply.SlippagePct, true
	case p.Swap != nil:
		return p.Swap.SlippagePct, true
	}
	return 0, false
}

// RiskVerdict 是风控闸门对单个候选动作的裁定，每个候选每周期产生一次
type RiskVerdict struct {
	Approved  bool     `json:"approved"`
	RiskScore float64  `json:"risk_score"` // 0-100
	Warnings  []string `json:"warnings,omitempty"`
	Blocks    []string `json:"blocks,omitempty"`
}

// Message 返回裁定的人类可读摘要：被拒绝时列出所有阻断原因。
func (v *RiskVerdict) Message() string {
	if v.Approved {
		return "approved"
	}
	return strings.Join(v.Blocks, "; ")
}

// Candidate 是策略评估器产生的一个候选动作，周期结束后即丢弃
type Candidate struct {
	ID            string       `json:"id"`
	Action        Action       `json:"action"`
	NetYieldPct   float64      `json:"net_yield_pct"`   // 扣除成本后的预计收益率
	RiskScore     float64      `json:"risk_score"`      // 0-100
	RiskAdjusted  float64      `json:"risk_adjusted"`   // 收益改善 / (风险分/100)
	BreakEvenDays float64      `json:"break_even_days"` // 回本天数
	Params        ActionParams `json:"params"`
	Reason        string       `json:"reason"`
	Verdict       *RiskVerdict `json:"verdict,omitempty"`
}

// MarketCondition 是对当前市场状态的分类，仅用于记录与说明，不影响排序
type MarketCondition string

const (
	MarketCalm      MarketCondition = "calm"
	MarketUncertain MarketCondition = "uncertain"
	MarketVolatile  MarketCondition = "volatile"
)

// Recommendation 是策略评估器一次调用的完整输出
type Recommendation struct {
	Top          Candidate       `json:"top"`
	Alternatives []Candidate     `json:"alternatives"`
	Condition    MarketCondition `json:"condition"`
	GeneratedAt  time.Time       `json:"generated_at"`
}

// CircuitBreakerState 是按UTC自然日划分的熔断器状态，只能由风控闸门修改
type CircuitBreakerState struct {
	DayKey        string  `json:"day_key"` // UTC日期, e.g. "2026-08-31"
	StartValueUSD float64 `json:"start_value_usd"`
	CurrValueUSD  float64 `json:"curr_value_usd"`
	LossPct       float64 `json:"loss_pct"`
	Tripped       bool    `json:"tripped"`
	Reason        string  `json:"reason,omitempty"`
}

// HealthSeverity 是单项健康检查的严重级别
type HealthSeverity string

const (
	SeverityOK       HealthSeverity = "ok"
	SeverityWarning  HealthSeverity = "warning"
	SeverityBlocking HealthSeverity = "blocking"
)

// HealthCheck 是一项健康检查的原始结果
type HealthCheck struct {
	Name     string         `json:"name"`
	Severity HealthSeverity `json:"severity"`
	Detail   string         `json:"detail"`
}

// HealthReport 汇总储备、LTV与当日亏损检查
type HealthReport struct {
	Status        string        `json:"status"` // green, yellow, red
	Checks        []HealthCheck `json:"checks"`
	BreakerActive bool          `json:"breaker_active"`
	DailyLossPct  float64       `json:"daily_loss_pct"`
}

// Decision 是编排器每个周期产出的可审计决策记录
type Decision struct {
	ID              string           `json:"id"`
	CycleID         string           `json:"cycle_id"`
	Timestamp       time.Time        `json:"timestamp"`
	Action          Action           `json:"action"`
	Reason          string           `json:"reason"`
	CurrentYieldPct float64          `json:"current_yield_pct"`
	TargetYieldPct  float64          `json:"target_yield_pct"`
	RiskScore       float64          `json:"risk_score"`
	Condition       MarketCondition  `json:"condition"`
	Simulated       bool             `json:"simulated"` // 仅模拟模式下的 would-execute 记录
	Params          ActionParams     `json:"params"`
	Outcome         *DecisionOutcome `json:"outcome,omitempty"`
}

// DecisionOutcome 在 Act 阶段之后附加到决策上。
// "after" 数值留到下一周期的快照体现，链上效果不会被立即重新观测。
type DecisionOutcome struct {
	Success        bool      `json:"success"`
	Error          string    `json:"error,omitempty"`
	Signature      string    `json:"signature,omitempty"`
	ValueBeforeUSD float64   `json:"value_before_usd"`
	YieldBeforePct float64   `json:"yield_before_pct"`
	ExecutedAt     time.Time `json:"executed_at"`
}
