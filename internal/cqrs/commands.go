package cqrs

import (
	"github.com/eaglebank/ledger-service/internal/models"
	"github.com/shopspring/decimal"
)

// ApplyTransactionCommand is the single write-side entry point into the ledger.
// Source/target requirements depend on Type: DEPOSIT and REFUND need a target,
// WITHDRAW and PAYMENT need a source, TRANSFER needs both and they must differ.
type ApplyTransactionCommand struct {
	Type            models.TransactionType
	SourceAccountID *int64
	TargetAccountID *int64
	Amount          decimal.Decimal
	Description     string
}

// CreateAccountCommand opens a ledger account for an existing user. A positive
// InitialDeposit is applied through the ledger as a DEPOSIT transaction so the
// seed shows up in the transaction log like any other credit.
type CreateAccountCommand struct {
	OwnerID        int64
	CreditLimit    decimal.Decimal
	InitialDeposit decimal.Decimal
}
