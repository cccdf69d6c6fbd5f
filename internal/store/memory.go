package store

import (
	"context"
	"sort"
	"sync"

	"github.com/eaglebank/ledger-service/internal/models"
	"github.com/eaglebank/ledger-service/internal/xerrors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemoryStore is an in-process system of record implementing AccountStore,
// TransactionLog and UnitOfWork. Units of work are serialized by a single
// mutex, which gives the same observable behavior as row-level locks: a
// concurrent unit of work touching any account blocks until the holder
// commits or rolls back, while plain reads never block behind each other.
type MemoryStore struct {
	mu       sync.Mutex
	nextID   int64
	accounts map[int64]models.Account
	byNumber map[string]int64
	log      []models.Transaction
	byTxnID  map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[int64]models.Account),
		byNumber: make(map[string]int64),
		byTxnID:  make(map[string]int),
	}
}

func (s *MemoryStore) Get(ctx context.Context, id int64) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return nil, xerrors.ErrAccountNotFound
	}
	return &account, nil
}

func (s *MemoryStore) Create(ctx context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byNumber[account.AccountNumber]; taken {
		return xerrors.ErrDuplicateAccountNumber
	}
	s.nextID++
	account.ID = s.nextID
	s.accounts[account.ID] = *account
	s.byNumber[account.AccountNumber] = account.ID
	return nil
}

func (s *MemoryStore) ExistsByAccountNumber(ctx context.Context, accountNumber string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byNumber[accountNumber]
	return ok, nil
}

func (s *MemoryStore) ListByOwner(ctx context.Context, ownerID int64) ([]models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var accounts []models.Account
	for _, account := range s.accounts {
		if account.OwnerID == ownerID {
			accounts = append(accounts, account)
		}
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	return accounts, nil
}

func (s *MemoryStore) FindByID(ctx context.Context, id string) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.byTxnID[id]
	if !ok {
		return nil, xerrors.ErrTransactionNotFound
	}
	txn := s.log[idx]
	return &txn, nil
}

func (s *MemoryStore) FindByAccountID(ctx context.Context, accountID int64) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var transactions []models.Transaction
	// The log is in append order; walk backwards for newest first.
	for i := len(s.log) - 1; i >= 0; i-- {
		if s.log[i].References(accountID) {
			transactions = append(transactions, s.log[i])
		}
	}
	return transactions, nil
}

func (s *MemoryStore) FindAll(ctx context.Context) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	transactions := make([]models.Transaction, 0, len(s.log))
	for i := len(s.log) - 1; i >= 0; i-- {
		transactions = append(transactions, s.log[i])
	}
	return transactions, nil
}

// WithinTx holds the store mutex for the duration of the unit of work and
// stages all writes, applying them only if fn succeeds.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx LedgerTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryLedgerTx{store: s, balances: make(map[int64]decimal.Decimal)}
	if err := fn(tx); err != nil {
		return err
	}

	for id, balance := range tx.balances {
		account := s.accounts[id]
		account.Balance = balance
		s.accounts[id] = account
	}
	for _, txn := range tx.appended {
		s.byTxnID[txn.ID] = len(s.log)
		s.log = append(s.log, txn)
	}
	return nil
}

type memoryLedgerTx struct {
	store    *MemoryStore
	balances map[int64]decimal.Decimal
	appended []models.Transaction
}

func (t *memoryLedgerTx) GetAccountForUpdate(ctx context.Context, id int64) (*models.Account, error) {
	account, ok := t.store.accounts[id]
	if !ok {
		return nil, xerrors.ErrAccountNotFound
	}
	if staged, ok := t.balances[id]; ok {
		account.Balance = staged
	}
	return &account, nil
}

func (t *memoryLedgerTx) UpdateBalance(ctx context.Context, id int64, balance decimal.Decimal) error {
	if _, ok := t.store.accounts[id]; !ok {
		return xerrors.ErrAccountNotFound
	}
	t.balances[id] = balance
	return nil
}

func (t *memoryLedgerTx) AppendTransaction(ctx context.Context, txn *models.Transaction) error {
	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	t.appended = append(t.appended, *txn)
	return nil
}
