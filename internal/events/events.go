package events

import "time"

const (
	// LedgerEventsStream is the Redis Stream carrying post-commit ledger events.
	LedgerEventsStream = "ledger-events"

	TransactionApplied = "transaction.applied"
	BalanceUpdated     = "balance.updated"
)

// Event is the envelope written to the stream.
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// TransactionAppliedEvent announces a committed transaction. It is a
// notification only: by the time it is published the balance effect and the
// transaction record are already durable.
type TransactionAppliedEvent struct {
	TransactionID   string `json:"transactionId"`
	Type            string `json:"type"`
	SourceAccountID *int64 `json:"sourceAccountId,omitempty"`
	TargetAccountID *int64 `json:"targetAccountId,omitempty"`
	Amount          string `json:"amount"`
}

// BalanceUpdatedEvent announces the post-commit balance of one affected account.
type BalanceUpdatedEvent struct {
	AccountID  int64  `json:"accountId"`
	NewBalance string `json:"newBalance"`
}
