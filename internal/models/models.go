package models

import "time"

// Config 结构体定义了代理的所有配置参数
type Config struct {
	DBPath        string `json:"db_path"`        // 决策日志数据库路径
	YieldAPIURL   string `json:"yield_api_url"`  // 收益数据聚合API地址
	RatesWSURL    string `json:"rates_ws_url"`   // 利率推送WebSocket地址
	RelayURL      string `json:"relay_url"`      // 交易中继服务地址
	WalletAddress string `json:"wallet_address"` // 被管理钱包的公钥地址
	BaseAsset     string `json:"base_asset"`     // 基础资产, 如 "SOL"

	MinReserveSOL      float64 `json:"min_reserve_sol"`      // 必须保留的流动储备 (SOL)
	MaxPositionPct     float64 `json:"max_position_pct"`     // 单笔操作占组合总值的最大比例 (0-1)
	MaxLeverage        float64 `json:"max_leverage"`         // 允许的最大杠杆倍数
	MaxLTV             float64 `json:"max_ltv"`              // 允许的最大借贷价值比 (0-1)
	MaxSlippagePct     float64 `json:"max_slippage_pct"`     // 允许的最大滑点百分比
	DailyLossLimitPct  float64 `json:"daily_loss_limit_pct"` // 触发熔断的单日亏损百分比
	MinImprovementPct  float64 `json:"min_improvement_pct"`  // 换仓所需的最小收益率改善 (百分点)
	MaxBreakEvenDays   float64 `json:"max_break_even_days"`  // 可接受的最长回本天数
	MinSpreadPct       float64 `json:"min_spread_pct"`       // 杠杆策略的最小利差 (百分点)
	TxCostUSD          float64 `json:"tx_cost_usd"`          // 单笔链上交易的固定成本估算 (USD)
	RiskTolerance      string  `json:"risk_tolerance"`       // 风险偏好: conservative, balanced, aggressive
	CycleIntervalMin   int     `json:"cycle_interval_min"`   // 两次决策周期之间的间隔 (分钟)
	FailureCooldownMin int     `json:"failure_cooldown_min"` // 周期失败后的冷却时间 (分钟)
	RateStaleSec       int     `json:"rate_stale_sec"`       // 利率数据的最大可用年龄 (秒)
	SimulationOnly     bool    `json:"simulation_only"`      // 仅模拟: 产生决策记录但不执行

	LogConfig LogConfig `json:"log"` // 日志配置
}

// LogConfig 定义了日志相关的配置
type LogConfig struct {
	Level      string `json:"level"`       // 日志级别, e.g., "debug", "info", "warn", "error"
	Output     string `json:"output"`      // 输出模式: "console", "file", "both"
	File       string `json:"file"`        // 日志文件路径
	MaxSize    int    `json:"max_size"`    // 单个日志文件的最大大小 (MB)
	MaxBackups int    `json:"max_backups"` // 保留的旧日志文件最大数量
	MaxAge     int    `json:"max_age"`     // 旧日志文件的最大保留天数
	Compress   bool   `json:"compress"`    // 是否压缩旧日志文件
}

// RiskProfile 是风险偏好档位对应的约束三元组
type RiskProfile struct {
	MaxRiskScore      float64 // 候选动作自身风险分的上限
	MinRiskAdjusted   float64 // 候选动作风险调整分的下限
	PreferredLeverage float64 // 开杠杆仓位时的首选杠杆倍数
}

// RiskTier 标记一个机会的风险等级
type RiskTier string

const (
	RiskLow    RiskTier = "low"
	RiskMedium RiskTier = "medium"
	RiskHigh   RiskTier = "high"
)

// PortfolioSnapshot 是一个决策周期开始时的组合快照。
// 构造完成后在该周期内不再修改；下一周期用新对象整体替换。
type PortfolioSnapshot struct {
	Timestamp       time.Time          `json:"timestamp"`
	TotalValueUSD   float64            `json:"total_value_usd"`   // 组合总估值
	LiquidSOL       float64            `json:"liquid_sol"`        // 钱包中的流动储备
	SOLPriceUSD     float64            `json:"sol_price_usd"`     // 估值时使用的SOL现货价
	Deposits        []DepositPosition  `json:"deposits"`          // 简单存款仓位
	Multiplies      []MultiplyPosition `json:"multiplies"`        // 杠杆循环仓位
	BlendedYieldPct float64            `json:"blended_yield_pct"` // 价值加权的综合收益率
}

// PositionsValueUSD 返回所有仓位的估值之和 (不含流动储备)。
func (s *PortfolioSnapshot) PositionsValueUSD() float64 {
	var total float64
	for _, d := range s.Deposits {
		total += d.ValueUSD
	}
	for _, m := range s.Multiplies {
		total += m.NetValueUSD
	}
	return total
}

// RecomputeBlendedYield 按价值加权重新计算综合收益率。
// 快照的构造方必须在发布快照前调用一次，保证加权不变量成立。
func (s *PortfolioSnapshot) RecomputeBlendedYield() {
	var weighted, total float64
	for _, d := range s.Deposits {
		weighted += d.ValueUSD * d.YieldPct
		total += d.ValueUSD
	}
	for _, m := range s.Multiplies {
		weighted += m.NetValueUSD * m.NetYieldPct()
		total += m.NetValueUSD
	}
	if total > 0 {
		s.BlendedYieldPct = weighted / total
	} else {
		s.BlendedYieldPct = 0
	}
}

// DepositPosition 是一个简单的借贷存款仓位
type DepositPosition struct {
	Protocol string  `json:"protocol"` // 协议名, e.g., "marginfi"
	Token    string  `json:"token"`    // 存入的代币
	Amount   float64 `json:"amount"`   // 本金数量 (代币单位)
	ValueUSD float64 `json:"value_usd"`
	YieldPct float64 `json:"yield_pct"` // 当前存款年化收益率
}

// MultiplyPosition 是一个杠杆循环仓位 (抵押生息资产、借出再买入以放大敞口)
type MultiplyPosition struct {
	Market           string  `json:"market"`  // 市场/venue
	Address          string  `json:"address"` // 仓位账户地址, 平仓时的唯一标识
	CollateralToken  string  `json:"collateral_token"`
	CollateralAmount float64 `json:"collateral_amount"`
	DebtToken        string  `json:"debt_token"`
	DebtAmount       float64 `json:"debt_amount"`
	NetValueUSD      float64 `json:"net_value_usd"` // 抵押价值减去债务后的净值
	Leverage         float64 `json:"leverage"`      // 抵押价值 / 净值, 恒 >= 1
	LTV              float64 `json:"ltv"`           // 债务 / 抵押, 属于 [0,1)
	MaxLTV           float64 `json:"max_ltv"`       // 该市场允许的LTV上限
	CollateralYield  float64 `json:"collateral_yield_pct"`
	DebtCost         float64 `json:"debt_cost_pct"`
}

// NetYieldPct 返回杠杆放大后的净收益率，可能为负。
func (p *MultiplyPosition) NetYieldPct() float64 {
	return p.CollateralYield*p.Leverage - p.DebtCost*(p.Leverage-1)
}

// SimpleOpportunity 是一个借贷存款机会，仅在当前周期内有效
type SimpleOpportunity struct {
	Protocol     string   `json:"protocol"`
	Pool         string   `json:"pool"`
	Token        string   `json:"token"`
	APYPct       float64  `json:"apy_pct"` // 广告收益率
	Tier         RiskTier `json:"tier"`
	LiquidityUSD float64  `json:"liquidity_usd"` // 池子流动性深度
}

// LeveragedOpportunity 是一个杠杆循环策略机会，仅在当前周期内有效
type LeveragedOpportunity struct {
	Market          string  `json:"market"`
	CollateralToken string  `json:"collateral_token"`
	DebtToken       string  `json:"debt_token"`
	StakeYieldPct   float64 `json:"stake_yield_pct"` // 抵押侧质押收益率
	BorrowCostPct   float64 `json:"borrow_cost_pct"` // 借款侧成本
	MaxLTV          float64 `json:"max_ltv"`
}

// SpreadPct 返回质押收益与借款成本的利差。
func (o *LeveragedOpportunity) SpreadPct() float64 {
	return o.StakeYieldPct - o.BorrowCostPct
}

// ProjectedYieldPct 返回给定杠杆倍数下的预计净收益率。
func (o *LeveragedOpportunity) ProjectedYieldPct(leverage float64) float64 {
	return o.StakeYieldPct*leverage - o.BorrowCostPct*(leverage-1)
}
