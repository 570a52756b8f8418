package executor

import (
	"context"
	"fmt"
	"sync"

	"solana-yield-bot-go/internal/models"

	"go.uber.org/zap"
)

// SimExecutor 记录动作但不触碰链上状态，返回可辨识的假签名。
type SimExecutor struct {
	logger *zap.SugaredLogger

	mu       sync.Mutex
	sequence int
	executed []models.Action
	failWith error
}

func NewSimExecutor(logger *zap.SugaredLogger) *SimExecutor {
	return &SimExecutor{logger: logger}
}

// FailWith 让后续的 Execute 全部失败，用于演练执行失败路径。
func (e *SimExecutor) FailWith(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failWith = err
}

// Executed 返回已记录的动作序列。
func (e *SimExecutor) Executed() []models.Action {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.Action, len(e.executed))
	copy(out, e.executed)
	return out
}

func (e *SimExecutor) Execute(_ context.Context, action models.Action, _ models.ActionParams) (string, error) {
	if action == models.ActionHold {
		return "", fmt.Errorf("hold 动作不应提交到执行端")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failWith != nil {
		return "", e.failWith
	}
	e.sequence++
	e.executed = append(e.executed, action)
	signature := fmt.Sprintf("SIM-%06d", e.sequence)
	e.logger.Infof("模拟执行动作: action=%s signature=%s", action, signature)
	return signature, nil
}
