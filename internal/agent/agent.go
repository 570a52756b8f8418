package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"solana-yield-bot-go/internal/decisionlog"
	"solana-yield-bot-go/internal/executor"
	"solana-yield-bot-go/internal/models"
	"solana-yield-bot-go/internal/observer"
	"solana-yield-bot-go/internal/risk"
	"solana-yield-bot-go/internal/strategy"

	"github.com/google/uuid"
	"github.com/jxskiss/base62"
	"go.uber.org/zap"
)

// Agent 是资本配置代理的编排器：以固定间隔运行观察-评估-裁定-执行的周期。
// 周期是严格串行的，风控闸门的单写者纪律由此保证。
type Agent struct {
	cfg       *models.Config
	observer  observer.Observer
	evaluator *strategy.Evaluator
	gate      *risk.Gate
	executor  executor.Executor
	decisions decisionlog.DecisionLog
	logger    *zap.SugaredLogger

	mutex        sync.Mutex
	isRunning    bool
	stopChannel  chan struct{}
	cycleCount   int
	lastSnapshot *models.PortfolioSnapshot
	lastHealth   *models.HealthReport
	lastDecision *models.Decision
}

// NewAgent 创建一个新的代理实例。
func NewAgent(cfg *models.Config, obs observer.Observer, gate *risk.Gate,
	evaluator *strategy.Evaluator, exec executor.Executor,
	decisions decisionlog.DecisionLog, logger *zap.SugaredLogger) *Agent {

	return &Agent{
		cfg:         cfg,
		observer:    obs,
		evaluator:   evaluator,
		gate:        gate,
		executor:    exec,
		decisions:   decisions,
		logger:      logger,
		stopChannel: make(chan struct{}),
	}
}

// Start 启动周期循环。生命周期是一次性的：Stop 之后不能再 Start，
// 代理的存活期与进程一致。
func (a *Agent) Start() error {
	a.mutex.Lock()
	if a.isRunning {
		a.mutex.Unlock()
		return fmt.Errorf("代理已在运行")
	}
	a.isRunning = true
	a.mutex.Unlock()

	go a.cycleLoop()
	a.logger.Infof("代理已启动, 周期间隔 %d 分钟, 模拟模式=%v", a.cfg.CycleIntervalMin, a.cfg.SimulationOnly)
	return nil
}

// Stop 停止周期循环。正在进行的周期会完整结束。
func (a *Agent) Stop() {
	a.mutex.Lock()
	if !a.isRunning {
		a.mutex.Unlock()
		return
	}
	a.isRunning = false
	close(a.stopChannel)
	a.mutex.Unlock()

	a.logger.Info("代理已停止")
}

// cycleLoop 按配置的间隔驱动周期；周期失败后用更短的冷却时间重试。
func (a *Agent) cycleLoop() {
	interval := time.Duration(a.cfg.CycleIntervalMin) * time.Minute
	cooldown := time.Duration(a.cfg.FailureCooldownMin) * time.Minute

	for {
		wait := interval
		if err := a.RunCycle(context.Background()); err != nil {
			a.logger.Errorf("决策周期失败: %v, %v 后重试", err, cooldown)
			wait = cooldown
		}

		timer := time.NewTimer(wait)
		select {
		case <-a.stopChannel:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// RunCycle 执行一个完整的决策周期：观察、评估、裁定、执行、记录。
// 决策在裁定阶段先落一次日志；附加执行结果后再落一次，
// 两条记录共享同一个决策ID。观察失败的周期不产生记录。
func (a *Agent) RunCycle(ctx context.Context) error {
	cycleID := uuid.NewString()

	// 观察
	snapshot, simples, levs, err := a.observer.Observe(ctx)
	if err != nil {
		return fmt.Errorf("观察失败: %v", err)
	}

	// 快照先发布，状态查询不需要等本周期跑完
	a.mutex.Lock()
	a.lastSnapshot = snapshot
	a.mutex.Unlock()

	// 评估
	health := a.gate.Health(snapshot)
	recommendation := a.evaluator.Evaluate(snapshot, simples, levs)
	a.logger.Infof("周期 %s: 总值 %.2f USD, 综合收益 %.2f%%, 健康 %s, 市场 %s, 推荐 %s",
		cycleID, snapshot.TotalValueUSD, snapshot.BlendedYieldPct,
		health.Status, recommendation.Condition, recommendation.Top.Action)
	for _, alt := range recommendation.Alternatives {
		a.logger.Debugf("周期 %s 备选: %s (风险调整分 %.2f)", cycleID, alt.ID, alt.RiskAdjusted)
	}

	// 裁定, 决策在执行之前先持久化一次
	decision := a.decide(cycleID, snapshot, health, recommendation)
	logErr := a.append(decision)

	// 执行, 结果附加后再持久化一次
	if decision.Action != models.ActionHold {
		a.act(ctx, snapshot, decision)
		if err := a.append(decision); err != nil && logErr == nil {
			logErr = err
		}
	}

	a.mutex.Lock()
	a.cycleCount++
	a.lastHealth = health
	a.lastDecision = decision
	a.mutex.Unlock()

	return logErr
}

func (a *Agent) append(decision *models.Decision) error {
	if err := a.decisions.Append(decision); err != nil {
		a.logger.Errorf("写入决策记录失败: %v", err)
		return fmt.Errorf("写入决策记录失败: %v", err)
	}
	return nil
}

// decide 把健康状况和推荐折算成本周期的最终决策。
// 优先级自上而下：熔断器 > 红色健康 > 推荐本身 > 裁定复核。
func (a *Agent) decide(cycleID string, snapshot *models.PortfolioSnapshot,
	health *models.HealthReport, rec *models.Recommendation) *models.Decision {

	decision := &models.Decision{
		ID:              newDecisionID(),
		CycleID:         cycleID,
		Timestamp:       time.Now().UTC(),
		CurrentYieldPct: snapshot.BlendedYieldPct,
		Condition:       rec.Condition,
		Simulated:       a.cfg.SimulationOnly,
	}

	top := rec.Top
	switch {
	case health.BreakerActive:
		decision.Action = models.ActionHold
		decision.TargetYieldPct = snapshot.BlendedYieldPct
		decision.Reason = fmt.Sprintf("circuit breaker active (daily loss %.2f%%), holding", health.DailyLossPct)

	case health.Status == "red" && top.Action != models.ActionCloseMultiply:
		decision.Action = models.ActionHold
		decision.TargetYieldPct = snapshot.BlendedYieldPct
		decision.Reason = "portfolio health red, only emergency actions allowed"

	case top.Action == models.ActionHold:
		decision.Action = models.ActionHold
		decision.TargetYieldPct = snapshot.BlendedYieldPct
		decision.Reason = top.Reason

	case top.Verdict == nil || !top.Verdict.Approved:
		// 评估器已经过滤过一轮，这里是对异常情况的兜底
		msg := "no verdict attached"
		if top.Verdict != nil {
			msg = top.Verdict.Message()
		}
		decision.Action = models.ActionHold
		decision.TargetYieldPct = snapshot.BlendedYieldPct
		decision.Reason = fmt.Sprintf("top candidate %s lost approval: %s", top.ID, msg)

	default:
		decision.Action = top.Action
		decision.TargetYieldPct = top.NetYieldPct
		decision.RiskScore = top.RiskScore
		decision.Params = top.Params
		decision.Reason = top.Reason
	}

	a.logger.Infof("决策 %s: action=%s reason=%q", decision.ID, decision.Action, decision.Reason)
	return decision
}

// act 执行一个非hold决策并把结果附加到决策记录上。
// 模拟模式下不触达执行端，记录保持 would-execute 形态。
// 执行失败是预期内的业务结果：保存在 outcome 里，不作为周期错误向上传播，
// 下一个周期按正常间隔继续。
func (a *Agent) act(ctx context.Context, snapshot *models.PortfolioSnapshot, decision *models.Decision) {
	outcome := &models.DecisionOutcome{
		ValueBeforeUSD: snapshot.TotalValueUSD,
		YieldBeforePct: snapshot.BlendedYieldPct,
		ExecutedAt:     time.Now().UTC(),
	}
	decision.Outcome = outcome

	if a.cfg.SimulationOnly {
		outcome.Success = true
		a.logger.Infof("模拟模式: 决策 %s 记录为 would-execute, 不提交执行", decision.ID)
		return
	}

	signature, err := a.executor.Execute(ctx, decision.Action, decision.Params)
	if err != nil {
		outcome.Success = false
		outcome.Error = err.Error()
		a.logger.Errorf("执行决策 %s 失败: %v", decision.ID, err)
		return
	}

	outcome.Success = true
	outcome.Signature = signature
}

// CycleCount 返回已完成的周期数。
func (a *Agent) CycleCount() int {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.cycleCount
}

// LastDecision 返回最近一次决策的副本。
func (a *Agent) LastDecision() *models.Decision {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if a.lastDecision == nil {
		return nil
	}
	d := *a.lastDecision
	return &d
}

// LastHealth 返回最近一次健康报告的副本。
func (a *Agent) LastHealth() *models.HealthReport {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if a.lastHealth == nil {
		return nil
	}
	h := *a.lastHealth
	return &h
}

// LastSnapshot 返回最近一次快照的副本。
func (a *Agent) LastSnapshot() *models.PortfolioSnapshot {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if a.lastSnapshot == nil {
		return nil
	}
	s := *a.lastSnapshot
	return &s
}

// newDecisionID 生成短小且按时间大致有序的决策ID。
func newDecisionID() string {
	return string(base62.FormatInt(time.Now().UTC().UnixNano()))
}
