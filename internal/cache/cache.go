// Package cache is the best-effort read accelerator in front of the store.
// It is never authoritative: a miss is indistinguishable from "never cached",
// and every failure is absorbed and logged rather than surfaced, since cache
// health is not part of the ledger's correctness contract.
package cache

import (
	"context"
	"fmt"
	"time"
)

// Cache is the read-through cache capability. Get reports false on miss,
// expiry, deserialization failure, or any backend error.
type Cache interface {
	Get(ctx context.Context, key string, dest any) bool
	Set(ctx context.Context, key string, value any, ttl time.Duration)
	Delete(ctx context.Context, key string)
	Exists(ctx context.Context, key string) bool
}

// Key helpers keep every cache key format in one place, so write-side
// invalidation and read-side lookups cannot drift apart.

func AccountKey(accountID int64) string {
	return fmt.Sprintf("account:view:%d", accountID)
}

func TransactionKey(transactionID string) string {
	return "transaction:view:" + transactionID
}

func AccountTransactionsKey(accountID int64) string {
	return fmt.Sprintf("transactions:account:%d", accountID)
}
