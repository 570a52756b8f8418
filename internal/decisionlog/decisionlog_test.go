package decisionlog

import (
	"fmt"
	"testing"
	"time"

	"solana-yield-bot-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDecision(id string, action models.Action) *models.Decision {
	return &models.Decision{
		ID:        id,
		CycleID:   "cycle-" + id,
		Timestamp: time.Now().UTC(),
		Action:    action,
		Reason:    "test",
		Simulated: true,
	}
}

func TestBadgerLogAppendAndRecent(t *testing.T) {
	log, err := NewBadgerLog(t.TempDir())
	require.NoError(t, err)
	defer log.Close()

	for i := 1; i <= 5; i++ {
		require.NoError(t, log.Append(sampleDecision(fmt.Sprintf("d%d", i), models.ActionHold)))
	}

	recent, err := log.Recent(3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "d5", recent[0].ID)
	assert.Equal(t, "d4", recent[1].ID)
	assert.Equal(t, "d3", recent[2].ID)

	all, err := log.Recent(100)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestBadgerLogSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	log, err := NewBadgerLog(dir)
	require.NoError(t, err)
	require.NoError(t, log.Append(sampleDecision("d1", models.ActionDeposit)))
	require.NoError(t, log.Close())

	reopened, err := NewBadgerLog(dir)
	require.NoError(t, err)
	defer reopened.Close()

	require.NoError(t, reopened.Append(sampleDecision("d2", models.ActionHold)))
	recent, err := reopened.Recent(10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "d2", recent[0].ID)
	assert.Equal(t, "d1", recent[1].ID)
}

func TestBadgerLogRecentZero(t *testing.T) {
	log, err := NewBadgerLog(t.TempDir())
	require.NoError(t, err)
	defer log.Close()

	recent, err := log.Recent(0)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestMemoryLogOrdering(t *testing.T) {
	log := NewMemoryLog()
	require.NoError(t, log.Append(sampleDecision("d1", models.ActionHold)))
	require.NoError(t, log.Append(sampleDecision("d2", models.ActionDeposit)))

	recent, err := log.Recent(1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "d2", recent[0].ID)
}
