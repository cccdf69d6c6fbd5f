package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/eaglebank/ledger-service/internal/models"
	"github.com/eaglebank/ledger-service/internal/xerrors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PostgresAccountStore is the authoritative account store.
type PostgresAccountStore struct {
	db *sql.DB
}

func NewPostgresAccountStore(db *sql.DB) *PostgresAccountStore {
	return &PostgresAccountStore{db: db}
}

func (s *PostgresAccountStore) Get(ctx context.Context, id int64) (*models.Account, error) {
	query := `
		SELECT id, owner_id, account_number, balance, credit_limit, created_at
		FROM accounts
		WHERE id = $1
	`
	var account models.Account
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&account.ID, &account.OwnerID, &account.AccountNumber,
		&account.Balance, &account.CreditLimit, &account.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, xerrors.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

func (s *PostgresAccountStore) Create(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (owner_id, account_number, balance, credit_limit, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		account.OwnerID, account.AccountNumber, account.Balance,
		account.CreditLimit, account.CreatedAt,
	).Scan(&account.ID)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (s *PostgresAccountStore) ExistsByAccountNumber(ctx context.Context, accountNumber string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM accounts WHERE account_number = $1)`
	var exists bool
	if err := s.db.QueryRowContext(ctx, query, accountNumber).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check account number: %w", err)
	}
	return exists, nil
}

func (s *PostgresAccountStore) ListByOwner(ctx context.Context, ownerID int64) ([]models.Account, error) {
	query := `
		SELECT id, owner_id, account_number, balance, credit_limit, created_at
		FROM accounts
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		var account models.Account
		if err := rows.Scan(
			&account.ID, &account.OwnerID, &account.AccountNumber,
			&account.Balance, &account.CreditLimit, &account.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// PostgresTransactionLog reads the append-only transactions table. Writes go
// through the unit of work only.
type PostgresTransactionLog struct {
	db *sql.DB
}

func NewPostgresTransactionLog(db *sql.DB) *PostgresTransactionLog {
	return &PostgresTransactionLog{db: db}
}

const transactionColumns = `id, type, source_account_id, target_account_id, amount, description, created_at`

func scanTransaction(scan func(dest ...any) error) (*models.Transaction, error) {
	var txn models.Transaction
	var description sql.NullString
	err := scan(
		&txn.ID, &txn.Type, &txn.SourceAccountID, &txn.TargetAccountID,
		&txn.Amount, &description, &txn.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	txn.Description = description.String
	return &txn, nil
}

func (l *PostgresTransactionLog) FindByID(ctx context.Context, id string) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	txn, err := scanTransaction(l.db.QueryRowContext(ctx, query, id).Scan)
	if err == sql.ErrNoRows {
		return nil, xerrors.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return txn, nil
}

func (l *PostgresTransactionLog) FindByAccountID(ctx context.Context, accountID int64) ([]models.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE source_account_id = $1 OR target_account_id = $1
		ORDER BY created_at DESC, id DESC
	`
	return l.queryTransactions(ctx, query, accountID)
}

func (l *PostgresTransactionLog) FindAll(ctx context.Context) ([]models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions ORDER BY created_at DESC, id DESC`
	return l.queryTransactions(ctx, query)
}

func (l *PostgresTransactionLog) queryTransactions(ctx context.Context, query string, args ...any) ([]models.Transaction, error) {
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []models.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *txn)
	}
	return transactions, rows.Err()
}

// PostgresUnitOfWork runs ledger mutations inside a single database
// transaction. A balance change and its transaction record commit together or
// roll back together.
type PostgresUnitOfWork struct {
	db *sql.DB
}

func NewPostgresUnitOfWork(db *sql.DB) *PostgresUnitOfWork {
	return &PostgresUnitOfWork{db: db}
}

func (u *PostgresUnitOfWork) WithinTx(ctx context.Context, fn func(tx LedgerTx) error) error {
	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&postgresLedgerTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type postgresLedgerTx struct {
	tx *sql.Tx
}

// GetAccountForUpdate takes a row-level lock, so a concurrent unit of work on
// the same account blocks here until this transaction commits or rolls back.
func (t *postgresLedgerTx) GetAccountForUpdate(ctx context.Context, id int64) (*models.Account, error) {
	query := `
		SELECT id, owner_id, account_number, balance, credit_limit, created_at
		FROM accounts
		WHERE id = $1
		FOR UPDATE
	`
	var account models.Account
	err := t.tx.QueryRowContext(ctx, query, id).Scan(
		&account.ID, &account.OwnerID, &account.AccountNumber,
		&account.Balance, &account.CreditLimit, &account.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, xerrors.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}
	return &account, nil
}

func (t *postgresLedgerTx) UpdateBalance(ctx context.Context, id int64, balance decimal.Decimal) error {
	query := `UPDATE accounts SET balance = $2 WHERE id = $1`
	result, err := t.tx.ExecContext(ctx, query, id, balance)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return xerrors.ErrAccountNotFound
	}
	return nil
}

func (t *postgresLedgerTx) AppendTransaction(ctx context.Context, txn *models.Transaction) error {
	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	query := `
		INSERT INTO transactions (id, type, source_account_id, target_account_id, amount, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := t.tx.ExecContext(ctx, query,
		txn.ID, txn.Type, txn.SourceAccountID, txn.TargetAccountID,
		txn.Amount, nullString(txn.Description), txn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}
