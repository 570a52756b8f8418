package observer

import (
	"context"
	"fmt"
	"sync"

	"solana-yield-bot-go/internal/models"
)

// SimObserver 是可变的内存数据源，供模拟运行与测试使用。
// 所有字段都可以在周期之间改写。
type SimObserver struct {
	mu       sync.Mutex
	snapshot *models.PortfolioSnapshot
	simples  []models.SimpleOpportunity
	levs     []models.LeveragedOpportunity
	err      error
}

func NewSimObserver(snapshot *models.PortfolioSnapshot) *SimObserver {
	return &SimObserver{snapshot: snapshot}
}

// SetSnapshot 替换下一次 Observe 返回的快照。
func (s *SimObserver) SetSnapshot(snapshot *models.PortfolioSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = snapshot
}

// SetOpportunities 替换下一次 Observe 返回的机会集。
func (s *SimObserver) SetOpportunities(simples []models.SimpleOpportunity, levs []models.LeveragedOpportunity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.simples = simples
	s.levs = levs
}

// SetError 让下一次 Observe 失败，用于演练观察失败路径。
func (s *SimObserver) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *SimObserver) Observe(_ context.Context) (*models.PortfolioSnapshot, []models.SimpleOpportunity, []models.LeveragedOpportunity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, nil, nil, s.err
	}
	if s.snapshot == nil {
		return nil, nil, nil, fmt.Errorf("模拟数据源未设置快照")
	}
	snap := *s.snapshot
	simples := make([]models.SimpleOpportunity, len(s.simples))
	copy(simples, s.simples)
	levs := make([]models.LeveragedOpportunity, len(s.levs))
	copy(levs, s.levs)
	return &snap, simples, levs, nil
}
