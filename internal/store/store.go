// Package store defines the system of record for accounts and transactions.
// The Postgres implementations are authoritative; the in-memory implementations
// back tests and single-process development. The cache layer is never part of
// this package's contract.
package store

import (
	"context"

	"github.com/eaglebank/ledger-service/internal/models"
	"github.com/shopspring/decimal"
)

// AccountStore is the durable account record store. Get never blocks; the
// exclusive read used during mutation lives on LedgerTx so it can only happen
// inside a unit of work.
type AccountStore interface {
	// Get returns the account or xerrors.ErrAccountNotFound.
	Get(ctx context.Context, id int64) (*models.Account, error)
	// Create persists a new account and assigns its ID.
	Create(ctx context.Context, account *models.Account) error
	// ExistsByAccountNumber reports whether an account number is taken.
	ExistsByAccountNumber(ctx context.Context, accountNumber string) (bool, error)
	// ListByOwner returns all accounts belonging to an owner.
	ListByOwner(ctx context.Context, ownerID int64) ([]models.Account, error)
}

// TransactionLog is the append-only transaction record store. Appending happens
// through LedgerTx; no update or delete is exposed anywhere.
type TransactionLog interface {
	// FindByID returns the transaction or xerrors.ErrTransactionNotFound.
	FindByID(ctx context.Context, id string) (*models.Transaction, error)
	// FindByAccountID returns transactions referencing the account as source
	// or target, newest first.
	FindByAccountID(ctx context.Context, accountID int64) ([]models.Transaction, error)
	// FindAll returns every transaction, newest first.
	FindAll(ctx context.Context) ([]models.Transaction, error)
}

// LedgerTx is the view of one atomic unit of work. Everything staged through it
// commits together or not at all.
type LedgerTx interface {
	// GetAccountForUpdate reads the account with an exclusive row lock, so a
	// concurrent unit of work on the same account blocks until this one ends.
	GetAccountForUpdate(ctx context.Context, id int64) (*models.Account, error)
	// UpdateBalance stages the new balance for an account.
	UpdateBalance(ctx context.Context, id int64, balance decimal.Decimal) error
	// AppendTransaction stages an immutable transaction record, assigning its ID.
	AppendTransaction(ctx context.Context, txn *models.Transaction) error
}

// UnitOfWork runs fn inside one atomic unit. If fn returns an error the staged
// writes are rolled back and the error is returned unchanged; commit failures
// also roll back.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(tx LedgerTx) error) error
}
