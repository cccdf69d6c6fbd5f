package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eaglebank/ledger-service/internal/cache"
	"github.com/eaglebank/ledger-service/internal/cqrs"
	"github.com/eaglebank/ledger-service/internal/models"
	"github.com/eaglebank/ledger-service/internal/store"
	"github.com/eaglebank/ledger-service/internal/xerrors"
	"github.com/shopspring/decimal"
)

func seedStore(t *testing.T) (*store.MemoryStore, *models.Account, *models.Transaction) {
	t.Helper()
	memStore := store.NewMemoryStore()
	ctx := context.Background()

	account := &models.Account{
		OwnerID:       7,
		AccountNumber: "01234567",
		Balance:       decimal.NewFromInt(100),
		CreditLimit:   decimal.Zero,
		CreatedAt:     time.Now().UTC(),
	}
	if err := memStore.Create(ctx, account); err != nil {
		t.Fatalf("failed to seed account: %v", err)
	}

	var txn *models.Transaction
	err := memStore.WithinTx(ctx, func(tx store.LedgerTx) error {
		txn = &models.Transaction{
			Type:            models.TypeDeposit,
			TargetAccountID: &account.ID,
			Amount:          decimal.NewFromInt(100),
			CreatedAt:       time.Now().UTC(),
		}
		return tx.AppendTransaction(context.Background(), txn)
	})
	if err != nil {
		t.Fatalf("failed to seed transaction: %v", err)
	}
	return memStore, account, txn
}

func TestGetAccountReadThrough(t *testing.T) {
	memStore, account, _ := seedStore(t)
	memCache := cache.NewMemoryCache()
	service := NewAccountQueryService(memStore, memCache, time.Minute)
	ctx := context.Background()

	// Cold read populates the cache.
	got, err := service.GetAccount(ctx, cqrs.GetAccountQuery{AccountID: account.ID})
	if err != nil {
		t.Fatalf("cold read failed: %v", err)
	}
	if !got.Balance.Equal(account.Balance) {
		t.Errorf("expected balance %s, got %s", account.Balance, got.Balance)
	}
	if !memCache.Exists(ctx, cache.AccountKey(account.ID)) {
		t.Error("cold read did not populate the cache")
	}

	// Warm read returns the same view.
	warm, err := service.GetAccount(ctx, cqrs.GetAccountQuery{AccountID: account.ID})
	if err != nil {
		t.Fatalf("warm read failed: %v", err)
	}
	if warm.ID != got.ID || !warm.Balance.Equal(got.Balance) {
		t.Errorf("warm read differs from cold read: %+v vs %+v", warm, got)
	}
}

func TestGetAccountNotFound(t *testing.T) {
	memStore, _, _ := seedStore(t)
	service := NewAccountQueryService(memStore, cache.NewMemoryCache(), time.Minute)

	_, err := service.GetAccount(context.Background(), cqrs.GetAccountQuery{AccountID: 999})
	if !errors.Is(err, xerrors.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

// flakyCache drops every write and misses every read, standing in for a cache
// backend that is down.
type flakyCache struct{}

func (flakyCache) Get(ctx context.Context, key string, dest any) bool          { return false }
func (flakyCache) Set(ctx context.Context, key string, value any, ttl time.Duration) {}
func (flakyCache) Delete(ctx context.Context, key string)                      {}
func (flakyCache) Exists(ctx context.Context, key string) bool                 { return false }

func TestReadsUnaffectedByCacheOutage(t *testing.T) {
	memStore, account, txn := seedStore(t)
	accounts := NewAccountQueryService(memStore, flakyCache{}, time.Minute)
	transactions := NewTransactionQueryService(memStore, flakyCache{}, time.Minute)
	ctx := context.Background()

	got, err := accounts.GetAccount(ctx, cqrs.GetAccountQuery{AccountID: account.ID})
	if err != nil {
		t.Fatalf("account read failed without cache: %v", err)
	}
	if got.ID != account.ID {
		t.Errorf("expected account %d, got %d", account.ID, got.ID)
	}

	gotTxn, err := transactions.GetTransaction(ctx, cqrs.GetTransactionQuery{TransactionID: txn.ID})
	if err != nil {
		t.Fatalf("transaction read failed without cache: %v", err)
	}
	if gotTxn.ID != txn.ID {
		t.Errorf("expected transaction %s, got %s", txn.ID, gotTxn.ID)
	}
}

func TestListTransactionsNewestFirst(t *testing.T) {
	memStore, account, first := seedStore(t)
	ctx := context.Background()

	var second *models.Transaction
	err := memStore.WithinTx(ctx, func(tx store.LedgerTx) error {
		second = &models.Transaction{
			Type:            models.TypeWithdraw,
			SourceAccountID: &account.ID,
			Amount:          decimal.NewFromInt(30),
			CreatedAt:       time.Now().UTC(),
		}
		return tx.AppendTransaction(ctx, second)
	})
	if err != nil {
		t.Fatalf("failed to append second transaction: %v", err)
	}

	service := NewTransactionQueryService(memStore, cache.NewMemoryCache(), time.Minute)
	history, err := service.ListTransactions(ctx, cqrs.ListTransactionsQuery{AccountID: account.ID})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(history))
	}
	if history[0].ID != second.ID || history[1].ID != first.ID {
		t.Errorf("expected newest first, got [%s %s]", history[0].ID, history[1].ID)
	}

	// The warm path serves the cached list unchanged.
	cached, err := service.ListTransactions(ctx, cqrs.ListTransactionsQuery{AccountID: account.ID})
	if err != nil {
		t.Fatalf("cached list failed: %v", err)
	}
	if len(cached) != 2 || cached[0].ID != second.ID {
		t.Errorf("cached list differs: %+v", cached)
	}
}

func TestGetTransactionNotFound(t *testing.T) {
	memStore, _, _ := seedStore(t)
	service := NewTransactionQueryService(memStore, cache.NewMemoryCache(), time.Minute)

	_, err := service.GetTransaction(context.Background(), cqrs.GetTransactionQuery{TransactionID: "missing"})
	if !errors.Is(err, xerrors.ErrTransactionNotFound) {
		t.Fatalf("expected ErrTransactionNotFound, got %v", err)
	}
}
