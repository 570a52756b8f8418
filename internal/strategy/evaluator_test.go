package strategy

import (
	"testing"
	"time"

	"solana-yield-bot-go/internal/config"
	"solana-yield-bot-go/internal/models"
	"solana-yield-bot-go/internal/risk"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() *models.Config {
	cfg := &models.Config{RiskTolerance: "balanced"}
	config.ApplyDefaults(cfg)
	return cfg
}

func newTestEvaluator(cfg *models.Config) *Evaluator {
	logger := zap.NewNop().Sugar()
	return NewEvaluator(cfg, risk.NewGate(cfg, logger), logger)
}

// snapshotWithYield builds a healthy 10k USD portfolio whose blended yield is
// the given percentage.
func snapshotWithYield(yieldPct float64) *models.PortfolioSnapshot {
	snap := &models.PortfolioSnapshot{
		Timestamp:     time.Now().UTC(),
		TotalValueUSD: 10000,
		LiquidSOL:     5.0,
		SOLPriceUSD:   200,
		Deposits: []models.DepositPosition{
			{Protocol: "marginfi", Token: "USDC", Amount: 9000, ValueUSD: 9000, YieldPct: yieldPct},
		},
	}
	snap.RecomputeBlendedYield()
	return snap
}

func allCandidates(rec *models.Recommendation) []models.Candidate {
	return append([]models.Candidate{rec.Top}, rec.Alternatives...)
}

// TestHoldAlwaysPresent: every evaluation contains exactly one hold candidate
// with risk score zero, even with no opportunities at all.
func TestHoldAlwaysPresent(t *testing.T) {
	ev := newTestEvaluator(testConfig())
	rec := ev.Evaluate(snapshotWithYield(5.0), nil, nil)
	require.NotNil(t, rec)

	holds := 0
	for _, c := range allCandidates(rec) {
		if c.Action == models.ActionHold {
			holds++
			assert.Zero(t, c.RiskScore)
			assert.InDelta(t, 5.0, c.NetYieldPct, 0.001)
		}
	}
	assert.Equal(t, 1, holds)
	assert.Equal(t, models.ActionHold, rec.Top.Action)
}

// TestUnprofitableSwitchFallsBackToHold: a marginal improvement whose
// break-even exceeds the horizon degrades the candidate to the current yield,
// so the minimum risk-adjusted bar pushes the recommendation back to hold
// while the degraded candidate stays inspectable among the alternatives.
func TestUnprofitableSwitchFallsBackToHold(t *testing.T) {
	ev := newTestEvaluator(testConfig())
	snap := snapshotWithYield(9.0)
	opps := []models.SimpleOpportunity{
		{Protocol: "kamino", Pool: "main", Token: "USDC", APYPct: 9.5, Tier: models.RiskLow, LiquidityUSD: 5e6},
	}

	rec := ev.Evaluate(snap, opps, nil)
	assert.Equal(t, models.ActionHold, rec.Top.Action)

	var degraded *models.Candidate
	for i := range rec.Alternatives {
		if rec.Alternatives[i].Action == models.ActionDeposit {
			degraded = &rec.Alternatives[i]
			break
		}
	}
	require.NotNil(t, degraded, "degraded candidate must stay visible among alternatives")
	assert.InDelta(t, 9.0, degraded.NetYieldPct, 0.001)
	assert.InDelta(t, 0.0, degraded.RiskAdjusted, 0.001)
}

// TestProfitableSwitchRecommended is the end-to-end property: 3% blended,
// a 12% low-risk opportunity, healthy reserve, no breaker.
func TestProfitableSwitchRecommended(t *testing.T) {
	cfg := testConfig()
	cfg.MaxBreakEvenDays = 14 // 3% -> 12% on 10k pays back in ~12.4 days
	ev := newTestEvaluator(cfg)

	snap := snapshotWithYield(3.0)
	opps := []models.SimpleOpportunity{
		{Protocol: "kamino", Pool: "main", Token: "USDC", APYPct: 12.0, Tier: models.RiskLow, LiquidityUSD: 5e6},
	}

	rec := ev.Evaluate(snap, opps, nil)
	require.Equal(t, models.ActionDeposit, rec.Top.Action)
	assert.Greater(t, rec.Top.NetYieldPct, 3.0)
	assert.InDelta(t, 12.0, rec.Top.NetYieldPct, 0.001)
	assert.Greater(t, rec.Top.BreakEvenDays, 0.0)
	assert.LessOrEqual(t, rec.Top.BreakEvenDays, cfg.MaxBreakEvenDays)
	require.NotNil(t, rec.Top.Params.Deposit)
	assert.Equal(t, "kamino", rec.Top.Params.Deposit.Protocol)
	require.NotNil(t, rec.Top.Verdict)
	assert.True(t, rec.Top.Verdict.Approved)
}

// TestHighRiskTierExcluded: high-tier pools never become candidates no matter
// how good the advertised yield is.
func TestHighRiskTierExcluded(t *testing.T) {
	cfg := testConfig()
	cfg.MaxBreakEvenDays = 30
	ev := newTestEvaluator(cfg)

	snap := snapshotWithYield(3.0)
	opps := []models.SimpleOpportunity{
		{Protocol: "degen", Pool: "farm", Token: "USDC", APYPct: 45.0, Tier: models.RiskHigh},
		{Protocol: "kamino", Pool: "main", Token: "USDC", APYPct: 12.0, Tier: models.RiskLow},
	}

	rec := ev.Evaluate(snap, opps, nil)
	for _, c := range allCandidates(rec) {
		if c.Params.Deposit != nil {
			assert.NotEqual(t, "degen", c.Params.Deposit.Protocol)
		}
	}
}

// TestImplausibleRateExcluded: rate sanity rejects the opportunity before a
// candidate is even built.
func TestImplausibleRateExcluded(t *testing.T) {
	ev := newTestEvaluator(testConfig())
	snap := snapshotWithYield(3.0)
	opps := []models.SimpleOpportunity{
		{Protocol: "glitch", Pool: "bug", Token: "USDC", APYPct: 250.0, Tier: models.RiskLow},
	}

	rec := ev.Evaluate(snap, opps, nil)
	assert.Equal(t, models.ActionHold, rec.Top.Action)
	assert.Empty(t, rec.Alternatives)
}

// TestThinSpreadNeverRanked: a leveraged opportunity below the minimum spread
// never appears among ranked candidates, regardless of projected yield.
func TestThinSpreadNeverRanked(t *testing.T) {
	ev := newTestEvaluator(testConfig()) // min spread 2.0
	snap := snapshotWithYield(3.0)
	levs := []models.LeveragedOpportunity{
		{Market: "kamino", CollateralToken: "jupSOL", DebtToken: "SOL", StakeYieldPct: 9.0, BorrowCostPct: 7.5, MaxLTV: 0.8},
	}

	rec := ev.Evaluate(snap, nil, levs)
	for _, c := range allCandidates(rec) {
		assert.NotEqual(t, models.ActionOpenMultiply, c.Action)
	}
}

// TestLeveragedEntryShape checks target leverage and the leverage-increasing
// risk score.
func TestLeveragedEntryShape(t *testing.T) {
	cfg := testConfig() // balanced: preferred leverage 2.0, max 3.0
	ev := newTestEvaluator(cfg)
	snap := snapshotWithYield(3.0)
	levs := []models.LeveragedOpportunity{
		{Market: "kamino", CollateralToken: "jupSOL", DebtToken: "SOL", StakeYieldPct: 8.0, BorrowCostPct: 4.0, MaxLTV: 0.8},
	}

	rec := ev.Evaluate(snap, nil, levs)
	require.Equal(t, models.ActionOpenMultiply, rec.Top.Action)
	require.NotNil(t, rec.Top.Params.OpenMultiply)
	assert.Equal(t, 2.0, rec.Top.Params.OpenMultiply.Leverage)
	// net = 8*2 - 4*1 = 12, risk = 25 + 15*(2-1) = 40
	assert.InDelta(t, 12.0, rec.Top.NetYieldPct, 0.001)
	assert.InDelta(t, 40.0, rec.Top.RiskScore, 0.001)
	assert.InDelta(t, (12.0-3.0)/0.4, rec.Top.RiskAdjusted, 0.01)
}

// TestUnderwaterExitOutranks: a leveraged position with net yield below the
// floor always yields an exit candidate whose forced score 50 beats any
// computed alternative with risk > 0 and yield delta < 25.
func TestUnderwaterExitOutranks(t *testing.T) {
	ev := newTestEvaluator(testConfig())
	snap := snapshotWithYield(5.0)
	snap.Multiplies = []models.MultiplyPosition{
		{Market: "kamino", Address: "pos1", CollateralToken: "jupSOL", DebtToken: "SOL",
			NetValueUSD: 1000, Leverage: 2.0, LTV: 0.5, MaxLTV: 0.8,
			CollateralYield: 3.0, DebtCost: 6.0}, // net = 6 - 6 = 0% < 1% floor
	}
	snap.RecomputeBlendedYield()
	levs := []models.LeveragedOpportunity{
		{Market: "drift", CollateralToken: "mSOL", DebtToken: "SOL", StakeYieldPct: 8.0, BorrowCostPct: 4.0, MaxLTV: 0.8},
	}

	rec := ev.Evaluate(snap, nil, levs)
	require.Equal(t, models.ActionCloseMultiply, rec.Top.Action)
	require.NotNil(t, rec.Top.Params.CloseMultiply)
	assert.Equal(t, "pos1", rec.Top.Params.CloseMultiply.Address)
	assert.InDelta(t, 50.0, rec.Top.RiskAdjusted, 0.001)
	assert.InDelta(t, 5.0, rec.Top.RiskScore, 0.001)

	// the open_multiply alternative survives but ranks below the exit
	foundOpen := false
	for _, c := range rec.Alternatives {
		if c.Action == models.ActionOpenMultiply {
			foundOpen = true
			assert.Less(t, c.RiskAdjusted, rec.Top.RiskAdjusted)
		}
	}
	assert.True(t, foundOpen)
}

// TestHealthyPositionNoExit: positions above the floor never produce exits.
func TestHealthyPositionNoExit(t *testing.T) {
	ev := newTestEvaluator(testConfig())
	snap := snapshotWithYield(5.0)
	snap.Multiplies = []models.MultiplyPosition{
		{Market: "kamino", Address: "pos1", NetValueUSD: 1000, Leverage: 2.0, LTV: 0.5,
			CollateralYield: 8.0, DebtCost: 4.0}, // net = 12%
	}
	snap.RecomputeBlendedYield()

	rec := ev.Evaluate(snap, nil, nil)
	for _, c := range allCandidates(rec) {
		assert.NotEqual(t, models.ActionCloseMultiply, c.Action)
	}
}

// TestClassify exercises the market-condition thresholds directly.
func TestClassify(t *testing.T) {
	ev := newTestEvaluator(testConfig())

	simpleSet := func(yields ...float64) []models.SimpleOpportunity {
		out := make([]models.SimpleOpportunity, len(yields))
		for i, y := range yields {
			out[i] = models.SimpleOpportunity{Protocol: "p", Pool: "q", APYPct: y, Tier: models.RiskLow}
		}
		return out
	}
	wideSpreads := []models.LeveragedOpportunity{
		{StakeYieldPct: 8, BorrowCostPct: 4},
		{StakeYieldPct: 9, BorrowCostPct: 5},
	}

	// fewer than 3 opportunities
	assert.Equal(t, models.MarketUncertain, ev.classify(simpleSet(5, 6), wideSpreads))

	// tight cluster, wide spreads
	assert.Equal(t, models.MarketCalm, ev.classify(simpleSet(5.0, 5.2, 5.1, 4.9), wideSpreads))

	// heavy dispersion
	assert.Equal(t, models.MarketVolatile, ev.classify(simpleSet(1, 9, 2, 14), wideSpreads))

	// calm yields but compressed leveraged spreads
	compressed := []models.LeveragedOpportunity{{StakeYieldPct: 5, BorrowCostPct: 4.5}}
	assert.Equal(t, models.MarketVolatile, ev.classify(simpleSet(5.0, 5.2, 5.1, 4.9), compressed))

	// moderate dispersion: mean 6, stddev ~2.24, ratio between 0.3 and 0.5
	assert.Equal(t, models.MarketUncertain, ev.classify(simpleSet(3, 5, 7, 9), wideSpreads))
}
