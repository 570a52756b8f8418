package observer

import (
	"context"

	"solana-yield-bot-go/internal/models"
)

// Observer 是决策循环的观察端：每个周期提供一份投资组合快照
// 和当前可用的机会集。实现可以是链上实时数据，也可以是模拟数据源。
type Observer interface {
	// Observe 返回当前快照与机会集。快照获取失败时返回错误;
	// 机会集的局部获取失败应降级为空集而不是失败整个周期。
	Observe(ctx context.Context) (*models.PortfolioSnapshot, []models.SimpleOpportunity, []models.LeveragedOpportunity, error)
}
