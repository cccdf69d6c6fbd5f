package query

import (
	"context"
	"encoding/json"
	"time"

	"github.com/eaglebank/ledger-service/internal/cache"
	"github.com/eaglebank/ledger-service/internal/events"
	"github.com/eaglebank/ledger-service/internal/store"
	"go.uber.org/zap"
)

// ViewRefresher re-warms the cached account view after a committed balance
// change, so the first read after a mutation is usually a hit. The write side
// already invalidated the stale view; this only shortens the cold window and
// is safe to skip or fail.
type ViewRefresher struct {
	accounts  store.AccountStore
	viewCache cache.Cache
	logger    *zap.Logger
	ttl       time.Duration
}

func NewViewRefresher(accounts store.AccountStore, viewCache cache.Cache, logger *zap.Logger, ttl time.Duration) *ViewRefresher {
	return &ViewRefresher{accounts: accounts, viewCache: viewCache, logger: logger, ttl: ttl}
}

// HandleEvent is the stream handler. Events other than balance.updated are
// acknowledged without action.
func (r *ViewRefresher) HandleEvent(ctx context.Context, event events.Event) error {
	if event.Type != events.BalanceUpdated {
		return nil
	}

	data, err := json.Marshal(event.Data)
	if err != nil {
		return err
	}
	var payload events.BalanceUpdatedEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}

	account, err := r.accounts.Get(ctx, payload.AccountID)
	if err != nil {
		// The account may be gone or the store briefly unavailable. The view
		// stays cold; a later read will populate it.
		r.logger.Debug("skipping view refresh",
			zap.Int64("accountId", payload.AccountID),
			zap.Error(err),
		)
		return nil
	}

	r.viewCache.Set(ctx, cache.AccountKey(account.ID), account, r.ttl)
	return nil
}
