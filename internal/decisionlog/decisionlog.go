package decisionlog

import "solana-yield-bot-go/internal/models"

// DecisionLog is the append-only audit trail of the control loop.
// Every cycle logs its decision when made, including hold and blocked cycles,
// and logs it again once an execution outcome is attached; the two records
// share the decision ID. The log answers "why did the agent (not) act" for
// any point in time. It abstracts the underlying storage mechanism
// (e.g., BadgerDB, in-memory) from the rest of the application.
type DecisionLog interface {
	// Append durably stores one decision record.
	Append(decision *models.Decision) error

	// Recent returns up to n most recent decisions, newest first.
	Recent(n int) ([]models.Decision, error)

	// Close gracefully closes the connection to the database.
	Close() error
}
