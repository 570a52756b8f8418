package strategy

import (
	"fmt"
	"math"
	"sort"
	"time"

	"solana-yield-bot-go/internal/config"
	"solana-yield-bot-go/internal/models"
	"solana-yield-bot-go/internal/risk"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"
)

const (
	maxSimpleCandidates = 3   // 简单存款候选的上限 (按广告收益率取前N)
	maxLeverCandidates  = 5   // 杠杆策略候选的上限 (按利差取前N)
	exitYieldFloorPct   = 1.0 // 杠杆仓位净收益低于该值时产生平仓候选
	exitRiskScore       = 5   // 平仓候选的固定低风险分
	exitPriorityScore   = 50  // 平仓候选的人为高排序分: 关掉水下仓位永远优先于边际调仓
	switchTxCount       = 2   // 一次换仓的交易笔数 (赎回+存入)
	openMultiplyTxCount = 3   // 开杠杆仓位的交易笔数
	defaultSlippagePct  = 0.5 // 候选动作默认请求的滑点上限

	classifyTopN = 10 // 市场分类统计的收益率样本数
)

// 机会风险等级到风险分的映射
var tierRiskScore = map[models.RiskTier]float64{
	models.RiskLow:    10,
	models.RiskMedium: 30,
	models.RiskHigh:   60,
}

// Evaluator 是无状态的策略评估器：每次调用根据快照与机会集
// 生成全部可行候选，交给风控闸门逐一打分，排序后给出推荐。
type Evaluator struct {
	cfg     *models.Config
	profile models.RiskProfile
	gate    *risk.Gate
	logger  *zap.SugaredLogger
}

// NewEvaluator 创建策略评估器。
func NewEvaluator(cfg *models.Config, gate *risk.Gate, logger *zap.SugaredLogger) *Evaluator {
	return &Evaluator{
		cfg:     cfg,
		profile: config.Profile(cfg),
		gate:    gate,
		logger:  logger,
	}
}

// Evaluate 生成、过滤并排序候选动作。
// 候选的生成顺序是确定的：hold → 简单存款 → 杠杆开仓 → 杠杆平仓；
// 排序分相同时保持生成顺序，这是文档化的总排序，不依赖容器遍历顺序。
func (e *Evaluator) Evaluate(snapshot *models.PortfolioSnapshot,
	simples []models.SimpleOpportunity, levs []models.LeveragedOpportunity) *models.Recommendation {

	candidates := make([]models.Candidate, 0, 1+maxSimpleCandidates+maxLeverCandidates)

	// hold 永远第一个生成且从不被过滤，保证推荐一定存在
	candidates = append(candidates, e.holdCandidate(snapshot))
	candidates = append(candidates, e.simpleCandidates(snapshot, simples)...)
	candidates = append(candidates, e.leveragedEntryCandidates(snapshot, levs)...)
	candidates = append(candidates, e.leveragedExitCandidates(snapshot)...)

	// 非hold候选逐一送风控闸门裁定, 超出档位约束或被拒绝的直接丢弃
	ranked := make([]models.Candidate, 0, len(candidates))
	ranked = append(ranked, candidates[0])
	for _, cand := range candidates[1:] {
		verdict := e.gate.Assess(risk.Proposal{
			Action:         cand.Action,
			Params:         cand.Params,
			TargetYieldPct: cand.NetYieldPct,
			BreakEvenDays:  cand.BreakEvenDays,
		}, snapshot)
		cand.Verdict = verdict

		switch {
		case !verdict.Approved:
			e.logger.Debugf("候选 %s 被风控拒绝: %s", cand.ID, verdict.Message())
		case cand.RiskScore > e.profile.MaxRiskScore:
			e.logger.Debugf("候选 %s 风险分 %.0f 超出档位上限 %.0f", cand.ID, cand.RiskScore, e.profile.MaxRiskScore)
		default:
			ranked = append(ranked, cand)
		}
	}

	// 稳定排序保证同分时生成顺序即排序顺序
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RiskAdjusted > ranked[j].RiskAdjusted
	})

	// 档位的最低风险调整分是"动不如不动"的推荐门槛而不是候选过滤器:
	// 低于门槛的候选留在备选里供审计, 但推荐回落到 hold
	topIdx := 0
	if ranked[0].Action != models.ActionHold && ranked[0].RiskAdjusted < e.profile.MinRiskAdjusted {
		for i := range ranked {
			if ranked[i].Action == models.ActionHold {
				topIdx = i
				break
			}
		}
	}

	alternatives := make([]models.Candidate, 0, len(ranked)-1)
	alternatives = append(alternatives, ranked[:topIdx]...)
	alternatives = append(alternatives, ranked[topIdx+1:]...)

	return &models.Recommendation{
		Top:          ranked[topIdx],
		Alternatives: alternatives,
		Condition:    e.classify(simples, levs),
		GeneratedAt:  time.Now().UTC(),
	}
}

// holdCandidate 构造保持现状的候选：净收益等于当前综合收益率，风险分为0。
func (e *Evaluator) holdCandidate(snapshot *models.PortfolioSnapshot) models.Candidate {
	return models.Candidate{
		ID:          "hold",
		Action:      models.ActionHold,
		NetYieldPct: snapshot.BlendedYieldPct,
		Reason:      fmt.Sprintf("maintain current allocation at %.2f%% blended yield", snapshot.BlendedYieldPct),
		Verdict:     &models.RiskVerdict{Approved: true},
	}
}

// switchableUSD 估算一次动作可以调动的资金规模：
// 超出储备下限的流动资金加上现有存款仓位, 以单笔仓位上限封顶。
func (e *Evaluator) switchableUSD(snapshot *models.PortfolioSnapshot) float64 {
	liquid := (snapshot.LiquidSOL - e.cfg.MinReserveSOL) * snapshot.SOLPriceUSD
	if liquid < 0 {
		liquid = 0
	}
	var deposits float64
	for _, d := range snapshot.Deposits {
		deposits += d.ValueUSD
	}
	amount := liquid + deposits
	if limit := e.cfg.MaxPositionPct * snapshot.TotalValueUSD; amount > limit {
		amount = limit
	}
	return amount
}

// simpleCandidates 为收益率最高的若干简单存款机会构造候选。
// 切换不划算的机会不会被剔除, 而是降级为净收益等于当前收益的"原地踏步"候选,
// 保持可见以便审计。
func (e *Evaluator) simpleCandidates(snapshot *models.PortfolioSnapshot,
	opps []models.SimpleOpportunity) []models.Candidate {

	sorted := make([]models.SimpleOpportunity, len(opps))
	copy(sorted, opps)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].APYPct > sorted[j].APYPct })

	out := make([]models.Candidate, 0, maxSimpleCandidates)
	for _, opp := range sorted {
		if len(out) >= maxSimpleCandidates {
			break
		}
		// 高风险等级的池子与不可信的利率在建候选前就被排除
		if opp.Tier == models.RiskHigh {
			continue
		}
		if !e.gate.ValidateRate(opp.APYPct, risk.RateDeposit) {
			e.logger.Debugf("机会 %s/%s 利率 %.1f%% 未通过合理性校验, 剔除", opp.Protocol, opp.Pool, opp.APYPct)
			continue
		}

		sc := e.gate.CalcSwitchCost(snapshot.BlendedYieldPct, opp.APYPct, snapshot.TotalValueUSD, switchTxCount)
		netYield := snapshot.BlendedYieldPct
		reason := fmt.Sprintf("switch to %s %s not profitable (break-even %.1f days), effective yield unchanged",
			opp.Protocol, opp.Pool, sc.BreakEvenDays)
		if sc.Profitable {
			netYield = opp.APYPct
			reason = fmt.Sprintf("switch to %s %s at %.2f%% (break-even %.1f days)",
				opp.Protocol, opp.Pool, opp.APYPct, sc.BreakEvenDays)
		}

		riskScore := tierRiskScore[opp.Tier]
		out = append(out, models.Candidate{
			ID:            fmt.Sprintf("deposit:%s/%s", opp.Protocol, opp.Pool),
			Action:        models.ActionDeposit,
			NetYieldPct:   netYield,
			RiskScore:     riskScore,
			RiskAdjusted:  riskAdjusted(netYield-snapshot.BlendedYieldPct, riskScore),
			BreakEvenDays: sc.BreakEvenDays,
			Params: models.ActionParams{Deposit: &models.DepositParams{
				Protocol:    opp.Protocol,
				Pool:        opp.Pool,
				Token:       opp.Token,
				AmountUSD:   e.switchableUSD(snapshot),
				SlippagePct: defaultSlippagePct,
			}},
			Reason: reason,
		})
	}
	return out
}

// leveragedEntryCandidates 为利差最大的若干杠杆循环机会构造开仓候选。
// 目标杠杆 = min(档位首选杠杆, 配置上限); 风险分随杠杆严格递增。
func (e *Evaluator) leveragedEntryCandidates(snapshot *models.PortfolioSnapshot,
	opps []models.LeveragedOpportunity) []models.Candidate {

	sorted := make([]models.LeveragedOpportunity, len(opps))
	copy(sorted, opps)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].SpreadPct() > sorted[j].SpreadPct() })
	if len(sorted) > maxLeverCandidates {
		sorted = sorted[:maxLeverCandidates]
	}

	leverage := math.Min(e.profile.PreferredLeverage, e.cfg.MaxLeverage)

	out := make([]models.Candidate, 0, len(sorted))
	for _, opp := range sorted {
		if opp.SpreadPct() < e.cfg.MinSpreadPct {
			continue
		}
		netYield := opp.ProjectedYieldPct(leverage)
		if !e.gate.ValidateRate(netYield, risk.RateMultiply) {
			e.logger.Debugf("杠杆机会 %s %s/%s 预计收益 %.1f%% 未通过合理性校验, 剔除",
				opp.Market, opp.CollateralToken, opp.DebtToken, netYield)
			continue
		}

		sc := e.gate.CalcSwitchCost(snapshot.BlendedYieldPct, netYield, snapshot.TotalValueUSD, openMultiplyTxCount)
		riskScore := 25 + 15*(leverage-1)
		out = append(out, models.Candidate{
			ID:            fmt.Sprintf("open:%s/%s-%s", opp.Market, opp.CollateralToken, opp.DebtToken),
			Action:        models.ActionOpenMultiply,
			NetYieldPct:   netYield,
			RiskScore:     riskScore,
			RiskAdjusted:  riskAdjusted(netYield-snapshot.BlendedYieldPct, riskScore),
			BreakEvenDays: sc.BreakEvenDays,
			Params: models.ActionParams{OpenMultiply: &models.OpenMultiplyParams{
				Market:          opp.Market,
				CollateralToken: opp.CollateralToken,
				DebtToken:       opp.DebtToken,
				Leverage:        leverage,
				AmountUSD:       e.switchableUSD(snapshot),
				SlippagePct:     defaultSlippagePct,
			}},
			Reason: fmt.Sprintf("open %.1fx %s/%s on %s, spread %.2f%%, projected %.2f%%",
				leverage, opp.CollateralToken, opp.DebtToken, opp.Market, opp.SpreadPct(), netYield),
		})
	}
	return out
}

// leveragedExitCandidates 为净收益跌破下限的杠杆仓位构造平仓候选。
// 排序分固定为50是刻意的优先级覆盖而不是计算结果:
// 关闭水下仓位必须压过一切边际机会。
func (e *Evaluator) leveragedExitCandidates(snapshot *models.PortfolioSnapshot) []models.Candidate {
	var out []models.Candidate
	for i := range snapshot.Multiplies {
		pos := &snapshot.Multiplies[i]
		net := pos.NetYieldPct()
		if net >= exitYieldFloorPct {
			continue
		}
		out = append(out, models.Candidate{
			ID:           fmt.Sprintf("close:%s/%s", pos.Market, pos.Address),
			Action:       models.ActionCloseMultiply,
			NetYieldPct:  snapshot.BlendedYieldPct,
			RiskScore:    exitRiskScore,
			RiskAdjusted: exitPriorityScore,
			Params: models.ActionParams{CloseMultiply: &models.CloseMultiplyParams{
				Market:  pos.Market,
				Address: pos.Address,
			}},
			Reason: fmt.Sprintf("close %s/%s: net yield %.2f%% below %.1f%% floor",
				pos.Market, pos.Address, net, exitYieldFloorPct),
		})
	}
	return out
}

// riskAdjusted 计算风险调整分: 收益改善 / (风险分/100)。风险分为0时定义为0。
func riskAdjusted(yieldDelta, riskScore float64) float64 {
	if riskScore <= 0 {
		return 0
	}
	return yieldDelta / (riskScore / 100)
}

// classify 根据简单机会收益率的离散程度与杠杆利差水平给市场状态打标签。
// 结果只进入推荐与日志的说明文字，不参与排序。
func (e *Evaluator) classify(simples []models.SimpleOpportunity, levs []models.LeveragedOpportunity) models.MarketCondition {
	if len(simples) < 3 {
		return models.MarketUncertain
	}

	sorted := make([]models.SimpleOpportunity, len(simples))
	copy(sorted, simples)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].APYPct > sorted[j].APYPct })
	if len(sorted) > classifyTopN {
		sorted = sorted[:classifyTopN]
	}
	yields := make([]float64, len(sorted))
	for i, o := range sorted {
		yields[i] = o.APYPct
	}

	mean, err := stats.Mean(yields)
	if err != nil || mean <= 0 {
		return models.MarketUncertain
	}
	stddev, err := stats.StandardDeviation(yields)
	if err != nil {
		return models.MarketUncertain
	}

	spreadCompressed := false
	if len(levs) > 0 {
		var sum float64
		for i := range levs {
			sum += levs[i].SpreadPct()
		}
		spreadCompressed = sum/float64(len(levs)) < 1.0
	}

	switch {
	case stddev > 0.5*mean || spreadCompressed:
		return models.MarketVolatile
	case stddev > 0.3*mean:
		return models.MarketUncertain
	default:
		return models.MarketCalm
	}
}
