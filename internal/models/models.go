package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a ledger operation. Debit types reduce the source
// account balance, credit types increase the target account balance; a transfer
// does both.
type TransactionType string

const (
	TypeDeposit  TransactionType = "DEPOSIT"
	TypeWithdraw TransactionType = "WITHDRAW"
	TypeTransfer TransactionType = "TRANSFER"
	TypePayment  TransactionType = "PAYMENT"
	TypeRefund   TransactionType = "REFUND"
)

// IsDebit reports whether the type removes money from a source account.
func (t TransactionType) IsDebit() bool {
	return t == TypeWithdraw || t == TypeTransfer || t == TypePayment
}

// IsCredit reports whether the type adds money to a target account.
func (t TransactionType) IsCredit() bool {
	return t == TypeDeposit || t == TypeTransfer || t == TypeRefund
}

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case TypeDeposit, TypeWithdraw, TypeTransfer, TypePayment, TypeRefund:
		return true
	}
	return false
}

// Account is the write model for a ledger account. Balance is an exact decimal
// and may go negative down to -CreditLimit; only the ledger command service is
// allowed to change it.
type Account struct {
	ID            int64           `json:"id"`
	OwnerID       int64           `json:"ownerId"`
	AccountNumber string          `json:"accountNumber"`
	Balance       decimal.Decimal `json:"balance"`
	CreditLimit   decimal.Decimal `json:"creditLimit"`
	CreatedAt     time.Time       `json:"createdTimestamp"`
}

// Transaction is an immutable record of a balance-affecting operation. Exactly
// one is appended per accepted mutation, in the same atomic unit as the balance
// change it describes. Corrections are new offsetting transactions, never edits.
type Transaction struct {
	ID              string          `json:"id"`
	Type            TransactionType `json:"type"`
	SourceAccountID *int64          `json:"sourceAccountId,omitempty"`
	TargetAccountID *int64          `json:"targetAccountId,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description,omitempty"`
	CreatedAt       time.Time       `json:"createdTimestamp"`
}

// References reports whether the transaction touches the given account, as
// source or as target.
func (t *Transaction) References(accountID int64) bool {
	if t.SourceAccountID != nil && *t.SourceAccountID == accountID {
		return true
	}
	return t.TargetAccountID != nil && *t.TargetAccountID == accountID
}
