package executor

import (
	"context"

	"solana-yield-bot-go/internal/models"
)

// Executor 是决策循环的执行端：把一个已获批准的动作提交上链，
// 返回交易签名。实现可以是交易中继，也可以是模拟执行器。
type Executor interface {
	// Execute 提交动作并等待确认。hold 动作不应被提交到执行端。
	Execute(ctx context.Context, action models.Action, params models.ActionParams) (signature string, err error)
}
