package reporter

import (
	"fmt"
	"io"
	"os"

	"solana-yield-bot-go/internal/decisionlog"
	"solana-yield-bot-go/internal/models"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Summary 存储一次会话的汇总指标
type Summary struct {
	Cycles     int // 完成的决策周期数
	Held       int // hold 决策数
	Acted      int // 实际执行的动作数
	Simulated  int // 模拟模式下的 would-execute 决策数
	Failed     int // 执行失败的动作数
	FinalValue float64
	FinalYield float64
}

// PrintSession 在会话结束时打印决策明细与汇总报告。
func PrintSession(decisions decisionlog.DecisionLog, health *models.HealthReport,
	snapshot *models.PortfolioSnapshot, limit int) error {
	return writeSession(os.Stdout, decisions, health, snapshot, limit)
}

func writeSession(w io.Writer, decisions decisionlog.DecisionLog, health *models.HealthReport,
	snapshot *models.PortfolioSnapshot, limit int) error {

	recent, err := decisions.Recent(limit)
	if err != nil {
		return fmt.Errorf("读取决策记录失败: %v", err)
	}
	records := Dedupe(recent)

	fmt.Fprintln(w, "========== 会话报告 ==========")

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"时间 (UTC)", "动作", "当前%", "目标%", "风险", "结果", "原因"})
	// Recent 返回的是新到旧，报告按时间正序展示
	for i := len(records) - 1; i >= 0; i-- {
		d := records[i]
		t.AppendRow(table.Row{
			d.Timestamp.Format("01-02 15:04:05"),
			string(d.Action),
			fmt.Sprintf("%.2f", d.CurrentYieldPct),
			fmt.Sprintf("%.2f", d.TargetYieldPct),
			fmt.Sprintf("%.0f", d.RiskScore),
			outcomeCell(&d),
			truncate(d.Reason, 48),
		})
	}
	t.Render()

	s := Summarize(records)
	if snapshot != nil {
		s.FinalValue = snapshot.TotalValueUSD
		s.FinalYield = snapshot.BlendedYieldPct
	}

	fmt.Fprintf(w, "周期数:       %d\n", s.Cycles)
	fmt.Fprintf(w, "保持:         %d\n", s.Held)
	fmt.Fprintf(w, "执行:         %d (失败 %d)\n", s.Acted, s.Failed)
	fmt.Fprintf(w, "模拟执行:     %d\n", s.Simulated)
	if snapshot != nil {
		fmt.Fprintf(w, "期末总值:     %.2f USD\n", s.FinalValue)
		fmt.Fprintf(w, "期末综合收益: %.2f%%\n", s.FinalYield)
	}
	if health != nil {
		fmt.Fprintf(w, "健康状态:     %s (熔断=%v, 当日亏损 %.2f%%)\n",
			health.Status, health.BreakerActive, health.DailyLossPct)
	}
	fmt.Fprintln(w, "==============================")
	return nil
}

// Dedupe 按决策ID去重。带执行结果的记录是同一决策的第二次落盘，
// 输入按新到旧排列时保留的正是最终形态。
func Dedupe(records []models.Decision) []models.Decision {
	seen := make(map[string]bool, len(records))
	out := make([]models.Decision, 0, len(records))
	for _, d := range records {
		if seen[d.ID] {
			continue
		}
		seen[d.ID] = true
		out = append(out, d)
	}
	return out
}

// Summarize 把去重后的决策记录折算成汇总指标。
func Summarize(records []models.Decision) Summary {
	var s Summary
	s.Cycles = len(records)
	for _, d := range records {
		if d.Action == models.ActionHold {
			s.Held++
			continue
		}
		if d.Simulated {
			s.Simulated++
			continue
		}
		s.Acted++
		if d.Outcome != nil && !d.Outcome.Success {
			s.Failed++
		}
	}
	return s
}

func outcomeCell(d *models.Decision) string {
	switch {
	case d.Action == models.ActionHold:
		return "-"
	case d.Simulated:
		return "sim"
	case d.Outcome == nil:
		return "?"
	case d.Outcome.Success:
		return "ok"
	default:
		return "fail"
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
