package query

import (
	"context"
	"time"

	"github.com/eaglebank/ledger-service/internal/cache"
	"github.com/eaglebank/ledger-service/internal/cqrs"
	"github.com/eaglebank/ledger-service/internal/models"
	"github.com/eaglebank/ledger-service/internal/store"
)

// TransactionQueryService serves reads over the append-only transaction log.
type TransactionQueryService struct {
	log       store.TransactionLog
	viewCache cache.Cache
	ttl       time.Duration
}

func NewTransactionQueryService(log store.TransactionLog, viewCache cache.Cache, ttl time.Duration) *TransactionQueryService {
	return &TransactionQueryService{log: log, viewCache: viewCache, ttl: ttl}
}

func (s *TransactionQueryService) GetTransaction(ctx context.Context, q cqrs.GetTransactionQuery) (*models.Transaction, error) {
	key := cache.TransactionKey(q.TransactionID)

	var cached models.Transaction
	if s.viewCache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	txn, err := s.log.FindByID(ctx, q.TransactionID)
	if err != nil {
		return nil, err
	}
	s.viewCache.Set(ctx, key, txn, s.ttl)
	return txn, nil
}

// ListTransactions returns the account's history, newest first. The list is
// cached and invalidated by the write side after every mutation touching the
// account, so a stale window is bounded by the TTL only when invalidation is
// unavailable.
func (s *TransactionQueryService) ListTransactions(ctx context.Context, q cqrs.ListTransactionsQuery) ([]models.Transaction, error) {
	key := cache.AccountTransactionsKey(q.AccountID)

	var cached []models.Transaction
	if s.viewCache.Get(ctx, key, &cached) {
		return cached, nil
	}

	transactions, err := s.log.FindByAccountID(ctx, q.AccountID)
	if err != nil {
		return nil, err
	}
	s.viewCache.Set(ctx, key, transactions, s.ttl)
	return transactions, nil
}

// ListAllTransactions returns the full log, newest first. Unbounded and
// uncached; intended for operational inspection.
func (s *TransactionQueryService) ListAllTransactions(ctx context.Context) ([]models.Transaction, error) {
	return s.log.FindAll(ctx)
}
