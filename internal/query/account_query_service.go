package query

import (
	"context"
	"time"

	"github.com/eaglebank/ledger-service/internal/cache"
	"github.com/eaglebank/ledger-service/internal/cqrs"
	"github.com/eaglebank/ledger-service/internal/models"
	"github.com/eaglebank/ledger-service/internal/store"
)

// AccountQueryService serves account reads through the view cache. Cache
// content never influences the result of a read: a hit skips the store, a
// miss (for any reason) falls through to it, and the answer is the same
// either way.
type AccountQueryService struct {
	accounts  store.AccountStore
	viewCache cache.Cache
	ttl       time.Duration
}

func NewAccountQueryService(accounts store.AccountStore, viewCache cache.Cache, ttl time.Duration) *AccountQueryService {
	return &AccountQueryService{accounts: accounts, viewCache: viewCache, ttl: ttl}
}

func (s *AccountQueryService) GetAccount(ctx context.Context, q cqrs.GetAccountQuery) (*models.Account, error) {
	key := cache.AccountKey(q.AccountID)

	var cached models.Account
	if s.viewCache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	account, err := s.accounts.Get(ctx, q.AccountID)
	if err != nil {
		return nil, err
	}
	s.viewCache.Set(ctx, key, account, s.ttl)
	return account, nil
}

// ListAccounts always reads the store. Owner listings are not cached: they
// change on every account creation and are not on the hot path.
func (s *AccountQueryService) ListAccounts(ctx context.Context, q cqrs.ListAccountsQuery) ([]models.Account, error) {
	return s.accounts.ListByOwner(ctx, q.OwnerID)
}
