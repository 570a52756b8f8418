package decisionlog

import (
	"sync"

	"solana-yield-bot-go/internal/models"
)

// MemoryLog is an in-memory DecisionLog for tests and simulation runs.
type MemoryLog struct {
	mu      sync.Mutex
	records []models.Decision
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

func (l *MemoryLog) Append(decision *models.Decision) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, *decision)
	return nil
}

func (l *MemoryLog) Recent(n int) ([]models.Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n > len(l.records) {
		n = len(l.records)
	}
	out := make([]models.Decision, 0, n)
	for i := len(l.records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, l.records[i])
	}
	return out, nil
}

func (l *MemoryLog) Close() error {
	return nil
}
