package command

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eaglebank/ledger-service/internal/cache"
	"github.com/eaglebank/ledger-service/internal/cqrs"
	"github.com/eaglebank/ledger-service/internal/events"
	"github.com/eaglebank/ledger-service/internal/lock"
	"github.com/eaglebank/ledger-service/internal/models"
	"github.com/eaglebank/ledger-service/internal/registry"
	"github.com/eaglebank/ledger-service/internal/store"
	"github.com/eaglebank/ledger-service/internal/xerrors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type testFixture struct {
	service *LedgerCommandService
	store   *store.MemoryStore
	locker  *countingLocker
	cache   *cache.MemoryCache
}

// countingLocker records TryAcquire calls so tests can assert that rejected
// requests never reach the locking phase.
type countingLocker struct {
	lock.KeyLocker
	acquireCalls atomic.Int64
}

func (l *countingLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	l.acquireCalls.Add(1)
	return l.KeyLocker.TryAcquire(ctx, key, ttl)
}

func newFixture() *testFixture {
	memStore := store.NewMemoryStore()
	locker := &countingLocker{KeyLocker: lock.NewMemoryLocker()}
	memCache := cache.NewMemoryCache()
	service := NewLedgerCommandService(
		memStore,
		memStore,
		locker,
		memCache,
		registry.NewStaticUserRegistry(1, 2),
		nil,
		zap.NewNop(),
		2*time.Second,
		10*time.Second,
	)
	return &testFixture{service: service, store: memStore, locker: locker, cache: memCache}
}

func (f *testFixture) seedAccount(t *testing.T, balance, creditLimit string) int64 {
	t.Helper()
	account := &models.Account{
		OwnerID:       1,
		AccountNumber: fmt.Sprintf("01%06d", time.Now().UnixNano()%1000000),
		Balance:       mustDecimal(t, balance),
		CreditLimit:   mustDecimal(t, creditLimit),
		CreatedAt:     time.Now().UTC(),
	}
	for attempt := 0; ; attempt++ {
		err := f.store.Create(context.Background(), account)
		if err == nil {
			return account.ID
		}
		if !errors.Is(err, xerrors.ErrDuplicateAccountNumber) || attempt > 5 {
			t.Fatalf("failed to seed account: %v", err)
		}
		account.AccountNumber = fmt.Sprintf("01%06d", (time.Now().UnixNano()+int64(attempt))%1000000)
	}
}

func (f *testFixture) balance(t *testing.T, accountID int64) decimal.Decimal {
	t.Helper()
	account, err := f.store.Get(context.Background(), accountID)
	if err != nil {
		t.Fatalf("failed to read account %d: %v", accountID, err)
	}
	return account.Balance
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func idPtr(id int64) *int64 { return &id }

func TestApplyTransactionValidation(t *testing.T) {
	f := newFixture()
	accountID := f.seedAccount(t, "100", "0")

	tests := []struct {
		name string
		cmd  cqrs.ApplyTransactionCommand
	}{
		{
			name: "unknown type",
			cmd:  cqrs.ApplyTransactionCommand{Type: "INVEST", TargetAccountID: idPtr(accountID), Amount: mustDecimal(t, "10")},
		},
		{
			name: "zero amount",
			cmd:  cqrs.ApplyTransactionCommand{Type: models.TypeDeposit, TargetAccountID: idPtr(accountID), Amount: decimal.Zero},
		},
		{
			name: "negative amount",
			cmd:  cqrs.ApplyTransactionCommand{Type: models.TypeDeposit, TargetAccountID: idPtr(accountID), Amount: mustDecimal(t, "-5")},
		},
		{
			name: "deposit without target",
			cmd:  cqrs.ApplyTransactionCommand{Type: models.TypeDeposit, Amount: mustDecimal(t, "10")},
		},
		{
			name: "deposit with source",
			cmd:  cqrs.ApplyTransactionCommand{Type: models.TypeDeposit, SourceAccountID: idPtr(accountID), TargetAccountID: idPtr(accountID), Amount: mustDecimal(t, "10")},
		},
		{
			name: "refund without target",
			cmd:  cqrs.ApplyTransactionCommand{Type: models.TypeRefund, Amount: mustDecimal(t, "10")},
		},
		{
			name: "withdraw without source",
			cmd:  cqrs.ApplyTransactionCommand{Type: models.TypeWithdraw, Amount: mustDecimal(t, "10")},
		},
		{
			name: "withdraw with target",
			cmd:  cqrs.ApplyTransactionCommand{Type: models.TypeWithdraw, SourceAccountID: idPtr(accountID), TargetAccountID: idPtr(accountID), Amount: mustDecimal(t, "10")},
		},
		{
			name: "payment without source",
			cmd:  cqrs.ApplyTransactionCommand{Type: models.TypePayment, Amount: mustDecimal(t, "10")},
		},
		{
			name: "transfer missing target",
			cmd:  cqrs.ApplyTransactionCommand{Type: models.TypeTransfer, SourceAccountID: idPtr(accountID), Amount: mustDecimal(t, "10")},
		},
		{
			name: "transfer to self",
			cmd:  cqrs.ApplyTransactionCommand{Type: models.TypeTransfer, SourceAccountID: idPtr(accountID), TargetAccountID: idPtr(accountID), Amount: mustDecimal(t, "10")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := f.locker.acquireCalls.Load()
			_, err := f.service.ApplyTransaction(context.Background(), tt.cmd)
			if !errors.Is(err, xerrors.ErrInvalidRequest) {
				t.Errorf("expected ErrInvalidRequest, got %v", err)
			}
			if got := f.locker.acquireCalls.Load(); got != before {
				t.Errorf("rejected request acquired locks: %d calls", got-before)
			}
		})
	}

	if got := f.balance(t, accountID); !got.Equal(mustDecimal(t, "100")) {
		t.Errorf("balance changed by rejected requests: %s", got)
	}
}

func TestApplyTransactionUnknownAccount(t *testing.T) {
	f := newFixture()
	before := f.locker.acquireCalls.Load()

	_, err := f.service.ApplyTransaction(context.Background(), cqrs.ApplyTransactionCommand{
		Type:            models.TypeDeposit,
		TargetAccountID: idPtr(999),
		Amount:          mustDecimal(t, "10"),
	})
	if !errors.Is(err, xerrors.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if got := f.locker.acquireCalls.Load(); got != before {
		t.Errorf("unknown-account request acquired locks: %d calls", got-before)
	}
}

func TestDepositIncreasesBalance(t *testing.T) {
	f := newFixture()
	accountID := f.seedAccount(t, "100", "0")

	txn, err := f.service.ApplyTransaction(context.Background(), cqrs.ApplyTransactionCommand{
		Type:            models.TypeDeposit,
		TargetAccountID: idPtr(accountID),
		Amount:          mustDecimal(t, "25.50"),
		Description:     "salary",
	})
	if err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if txn.ID == "" {
		t.Error("expected a transaction id to be assigned")
	}
	if got := f.balance(t, accountID); !got.Equal(mustDecimal(t, "125.50")) {
		t.Errorf("expected balance 125.50, got %s", got)
	}

	recorded, err := f.store.FindByID(context.Background(), txn.ID)
	if err != nil {
		t.Fatalf("transaction not in log: %v", err)
	}
	if recorded.Type != models.TypeDeposit || !recorded.Amount.Equal(mustDecimal(t, "25.50")) {
		t.Errorf("unexpected transaction record: %+v", recorded)
	}
}

func TestWithdrawWithinCreditLimit(t *testing.T) {
	tests := []struct {
		name        string
		balance     string
		creditLimit string
		amount      string
		wantErr     error
		wantBalance string
	}{
		{name: "exact balance", balance: "100", creditLimit: "0", amount: "100", wantBalance: "0"},
		{name: "into overdraft", balance: "50", creditLimit: "50", amount: "100", wantBalance: "-50"},
		{name: "beyond credit limit", balance: "50", creditLimit: "0", amount: "100", wantErr: xerrors.ErrInsufficientFunds, wantBalance: "50"},
		{name: "one cent over the line", balance: "0", creditLimit: "10", amount: "10.01", wantErr: xerrors.ErrInsufficientFunds, wantBalance: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			accountID := f.seedAccount(t, tt.balance, tt.creditLimit)

			_, err := f.service.ApplyTransaction(context.Background(), cqrs.ApplyTransactionCommand{
				Type:            models.TypeWithdraw,
				SourceAccountID: idPtr(accountID),
				Amount:          mustDecimal(t, tt.amount),
			})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				if logged, _ := f.store.FindByAccountID(context.Background(), accountID); len(logged) != 0 {
					t.Errorf("failed withdrawal left %d transactions in the log", len(logged))
				}
			} else if err != nil {
				t.Fatalf("withdrawal failed: %v", err)
			}
			if got := f.balance(t, accountID); !got.Equal(mustDecimal(t, tt.wantBalance)) {
				t.Errorf("expected balance %s, got %s", tt.wantBalance, got)
			}
		})
	}
}

func TestTransferMovesFunds(t *testing.T) {
	f := newFixture()
	sourceID := f.seedAccount(t, "200", "0")
	targetID := f.seedAccount(t, "10", "0")

	txn, err := f.service.ApplyTransaction(context.Background(), cqrs.ApplyTransactionCommand{
		Type:            models.TypeTransfer,
		SourceAccountID: idPtr(sourceID),
		TargetAccountID: idPtr(targetID),
		Amount:          mustDecimal(t, "75"),
	})
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if got := f.balance(t, sourceID); !got.Equal(mustDecimal(t, "125")) {
		t.Errorf("expected source balance 125, got %s", got)
	}
	if got := f.balance(t, targetID); !got.Equal(mustDecimal(t, "85")) {
		t.Errorf("expected target balance 85, got %s", got)
	}

	// Both sides see the single transfer record in their history.
	for _, id := range []int64{sourceID, targetID} {
		history, err := f.store.FindByAccountID(context.Background(), id)
		if err != nil {
			t.Fatalf("failed to list history for %d: %v", id, err)
		}
		if len(history) != 1 || history[0].ID != txn.ID {
			t.Errorf("account %d history = %+v, want the transfer record", id, history)
		}
	}
}

func TestConcurrentWithdrawalsRespectCreditLimit(t *testing.T) {
	f := newFixture()
	accountID := f.seedAccount(t, "100", "50")

	const workers = 20
	amount := mustDecimal(t, "20")

	var wg sync.WaitGroup
	var succeeded, insufficient atomic.Int64
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.ApplyTransaction(context.Background(), cqrs.ApplyTransactionCommand{
				Type:            models.TypeWithdraw,
				SourceAccountID: idPtr(accountID),
				Amount:          amount,
			})
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, xerrors.ErrInsufficientFunds):
				insufficient.Add(1)
			default:
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}

	// floor((100 + 50) / 20) withdrawals fit; the rest must be rejected.
	if got := succeeded.Load(); got != 7 {
		t.Errorf("expected exactly 7 successful withdrawals, got %d", got)
	}
	if got := insufficient.Load(); got != workers-7 {
		t.Errorf("expected %d insufficient-funds rejections, got %d", workers-7, got)
	}
	if got := f.balance(t, accountID); !got.Equal(mustDecimal(t, "-40")) {
		t.Errorf("expected final balance -40, got %s", got)
	}

	history, err := f.store.FindByAccountID(context.Background(), accountID)
	if err != nil {
		t.Fatalf("failed to list history: %v", err)
	}
	if len(history) != 7 {
		t.Errorf("expected 7 log entries, got %d", len(history))
	}
}

func TestOpposingConcurrentTransfersDoNotDeadlock(t *testing.T) {
	f := newFixture()
	aID := f.seedAccount(t, "1000", "0")
	bID := f.seedAccount(t, "1000", "0")

	const rounds = 25
	amount := mustDecimal(t, "1")

	var wg sync.WaitGroup
	errs := make(chan error, 2*rounds)
	transfer := func(source, target int64) {
		defer wg.Done()
		_, err := f.service.ApplyTransaction(context.Background(), cqrs.ApplyTransactionCommand{
			Type:            models.TypeTransfer,
			SourceAccountID: idPtr(source),
			TargetAccountID: idPtr(target),
			Amount:          amount,
		})
		if err != nil {
			errs <- err
		}
	}
	for i := 0; i < rounds; i++ {
		wg.Add(2)
		go transfer(aID, bID)
		go transfer(bID, aID)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		t.Fatal("opposing transfers deadlocked")
	}
	close(errs)
	for err := range errs {
		t.Errorf("transfer failed: %v", err)
	}

	// Equal flows in both directions; conservation holds and nothing moved net.
	if got := f.balance(t, aID); !got.Equal(mustDecimal(t, "1000")) {
		t.Errorf("expected account A balance 1000, got %s", got)
	}
	if got := f.balance(t, bID); !got.Equal(mustDecimal(t, "1000")) {
		t.Errorf("expected account B balance 1000, got %s", got)
	}
}

// failingAppendUOW forces AppendTransaction to fail so the balance write and
// the log write can be observed rolling back together.
type failingAppendUOW struct {
	inner store.UnitOfWork
}

type failingAppendTx struct {
	store.LedgerTx
}

func (u *failingAppendUOW) WithinTx(ctx context.Context, fn func(tx store.LedgerTx) error) error {
	return u.inner.WithinTx(ctx, func(tx store.LedgerTx) error {
		return fn(&failingAppendTx{LedgerTx: tx})
	})
}

func (t *failingAppendTx) AppendTransaction(ctx context.Context, txn *models.Transaction) error {
	return errors.New("log write refused")
}

func TestBalanceAndLogCommitAtomically(t *testing.T) {
	f := newFixture()
	accountID := f.seedAccount(t, "100", "0")

	service := NewLedgerCommandService(
		f.store,
		&failingAppendUOW{inner: f.store},
		lock.NewMemoryLocker(),
		cache.NewMemoryCache(),
		registry.NewStaticUserRegistry(1),
		nil,
		zap.NewNop(),
		time.Second,
		10*time.Second,
	)

	_, err := service.ApplyTransaction(context.Background(), cqrs.ApplyTransactionCommand{
		Type:            models.TypeDeposit,
		TargetAccountID: idPtr(accountID),
		Amount:          mustDecimal(t, "10"),
	})
	if !errors.Is(err, xerrors.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if got := f.balance(t, accountID); !got.Equal(mustDecimal(t, "100")) {
		t.Errorf("balance updated despite failed log append: %s", got)
	}
	if logged, _ := f.store.FindByAccountID(context.Background(), accountID); len(logged) != 0 {
		t.Errorf("log has %d entries despite append failure", len(logged))
	}
}

func TestLockTimeoutIsRetryable(t *testing.T) {
	f := newFixture()
	accountID := f.seedAccount(t, "100", "0")

	// Short wait so contention on a stuck lock surfaces fast.
	service := NewLedgerCommandService(
		f.store, f.store, f.locker, f.cache,
		registry.NewStaticUserRegistry(1),
		nil, zap.NewNop(),
		50*time.Millisecond, 10*time.Second,
	)

	ok, err := f.locker.TryAcquire(context.Background(), fmt.Sprintf("account:%d", accountID), time.Minute)
	if err != nil || !ok {
		t.Fatalf("failed to pre-acquire lock: ok=%v err=%v", ok, err)
	}

	_, err = service.ApplyTransaction(context.Background(), cqrs.ApplyTransactionCommand{
		Type:            models.TypeDeposit,
		TargetAccountID: idPtr(accountID),
		Amount:          mustDecimal(t, "10"),
	})
	if !errors.Is(err, xerrors.ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}
	if got := f.balance(t, accountID); !got.Equal(mustDecimal(t, "100")) {
		t.Errorf("balance changed despite lock timeout: %s", got)
	}

	// Once the holder releases, the same request goes through.
	if err := f.locker.Release(context.Background(), fmt.Sprintf("account:%d", accountID)); err != nil {
		t.Fatalf("failed to release lock: %v", err)
	}
	if _, err := service.ApplyTransaction(context.Background(), cqrs.ApplyTransactionCommand{
		Type:            models.TypeDeposit,
		TargetAccountID: idPtr(accountID),
		Amount:          mustDecimal(t, "10"),
	}); err != nil {
		t.Fatalf("retry after release failed: %v", err)
	}
}

func TestLocksReleasedAfterMutation(t *testing.T) {
	f := newFixture()
	accountID := f.seedAccount(t, "100", "0")

	if _, err := f.service.ApplyTransaction(context.Background(), cqrs.ApplyTransactionCommand{
		Type:            models.TypeWithdraw,
		SourceAccountID: idPtr(accountID),
		Amount:          mustDecimal(t, "10"),
	}); err != nil {
		t.Fatalf("withdrawal failed: %v", err)
	}

	ok, err := f.locker.TryAcquire(context.Background(), fmt.Sprintf("account:%d", accountID), time.Second)
	if err != nil {
		t.Fatalf("TryAcquire failed: %v", err)
	}
	if !ok {
		t.Error("lock still held after the mutation finished")
	}
}

func TestMutationInvalidatesCachedViews(t *testing.T) {
	f := newFixture()
	accountID := f.seedAccount(t, "100", "0")
	ctx := context.Background()

	f.cache.Set(ctx, cache.AccountKey(accountID), map[string]string{"stale": "view"}, time.Minute)
	f.cache.Set(ctx, cache.AccountTransactionsKey(accountID), []string{"stale"}, time.Minute)

	if _, err := f.service.ApplyTransaction(ctx, cqrs.ApplyTransactionCommand{
		Type:            models.TypeDeposit,
		TargetAccountID: idPtr(accountID),
		Amount:          mustDecimal(t, "10"),
	}); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}

	if f.cache.Exists(ctx, cache.AccountKey(accountID)) {
		t.Error("account view not invalidated")
	}
	if f.cache.Exists(ctx, cache.AccountTransactionsKey(accountID)) {
		t.Error("account transactions view not invalidated")
	}
}

type capturingPublisher struct {
	mu       sync.Mutex
	applied  []events.TransactionAppliedEvent
	balances []events.BalanceUpdatedEvent
	fail     bool
}

func (p *capturingPublisher) PublishTransactionApplied(ctx context.Context, event events.TransactionAppliedEvent) error {
	if p.fail {
		return errors.New("stream unavailable")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applied = append(p.applied, event)
	return nil
}

func (p *capturingPublisher) PublishBalanceUpdated(ctx context.Context, event events.BalanceUpdatedEvent) error {
	if p.fail {
		return errors.New("stream unavailable")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.balances = append(p.balances, event)
	return nil
}

func TestCommitPublishesTypedEvents(t *testing.T) {
	f := newFixture()
	sourceID := f.seedAccount(t, "200", "0")
	targetID := f.seedAccount(t, "0", "0")

	publisher := &capturingPublisher{}
	service := NewLedgerCommandService(
		f.store, f.store, lock.NewMemoryLocker(), cache.NewMemoryCache(),
		registry.NewStaticUserRegistry(1),
		publisher, zap.NewNop(),
		time.Second, 10*time.Second,
	)

	txn, err := service.ApplyTransaction(context.Background(), cqrs.ApplyTransactionCommand{
		Type:            models.TypeTransfer,
		SourceAccountID: idPtr(sourceID),
		TargetAccountID: idPtr(targetID),
		Amount:          mustDecimal(t, "75"),
	})
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}

	if len(publisher.applied) != 1 {
		t.Fatalf("expected 1 transaction.applied event, got %d", len(publisher.applied))
	}
	applied := publisher.applied[0]
	if applied.TransactionID != txn.ID || applied.Type != string(models.TypeTransfer) || applied.Amount != "75" {
		t.Errorf("unexpected transaction.applied payload: %+v", applied)
	}

	if len(publisher.balances) != 2 {
		t.Fatalf("expected 2 balance.updated events, got %d", len(publisher.balances))
	}
	byAccount := make(map[int64]string, 2)
	for _, b := range publisher.balances {
		byAccount[b.AccountID] = b.NewBalance
	}
	if byAccount[sourceID] != "125" || byAccount[targetID] != "75" {
		t.Errorf("unexpected balance.updated payloads: %v", byAccount)
	}
}

func TestPublishFailureDoesNotFailMutation(t *testing.T) {
	f := newFixture()
	accountID := f.seedAccount(t, "100", "0")

	service := NewLedgerCommandService(
		f.store, f.store, lock.NewMemoryLocker(), cache.NewMemoryCache(),
		registry.NewStaticUserRegistry(1),
		&capturingPublisher{fail: true}, zap.NewNop(),
		time.Second, 10*time.Second,
	)

	if _, err := service.ApplyTransaction(context.Background(), cqrs.ApplyTransactionCommand{
		Type:            models.TypeDeposit,
		TargetAccountID: idPtr(accountID),
		Amount:          mustDecimal(t, "10"),
	}); err != nil {
		t.Fatalf("mutation failed because of publish error: %v", err)
	}
	if got := f.balance(t, accountID); !got.Equal(mustDecimal(t, "110")) {
		t.Errorf("expected balance 110, got %s", got)
	}
}

func TestCreateAccount(t *testing.T) {
	t.Run("unknown user", func(t *testing.T) {
		f := newFixture()
		_, err := f.service.CreateAccount(context.Background(), cqrs.CreateAccountCommand{
			OwnerID: 999,
		})
		if !errors.Is(err, xerrors.ErrUserNotFound) {
			t.Fatalf("expected ErrUserNotFound, got %v", err)
		}
	})

	t.Run("negative credit limit", func(t *testing.T) {
		f := newFixture()
		_, err := f.service.CreateAccount(context.Background(), cqrs.CreateAccountCommand{
			OwnerID:     1,
			CreditLimit: mustDecimal(t, "-1"),
		})
		if !errors.Is(err, xerrors.ErrInvalidRequest) {
			t.Fatalf("expected ErrInvalidRequest, got %v", err)
		}
	})

	t.Run("without initial deposit", func(t *testing.T) {
		f := newFixture()
		account, err := f.service.CreateAccount(context.Background(), cqrs.CreateAccountCommand{
			OwnerID:     1,
			CreditLimit: mustDecimal(t, "100"),
		})
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
		if !account.Balance.IsZero() {
			t.Errorf("expected zero opening balance, got %s", account.Balance)
		}
		if !account.CreditLimit.Equal(mustDecimal(t, "100")) {
			t.Errorf("expected credit limit 100, got %s", account.CreditLimit)
		}
	})

	t.Run("initial deposit goes through the ledger", func(t *testing.T) {
		f := newFixture()
		account, err := f.service.CreateAccount(context.Background(), cqrs.CreateAccountCommand{
			OwnerID:        2,
			InitialDeposit: mustDecimal(t, "500"),
		})
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
		if !account.Balance.Equal(mustDecimal(t, "500")) {
			t.Errorf("expected balance 500, got %s", account.Balance)
		}

		history, err := f.store.FindByAccountID(context.Background(), account.ID)
		if err != nil {
			t.Fatalf("failed to list history: %v", err)
		}
		if len(history) != 1 || history[0].Type != models.TypeDeposit {
			t.Fatalf("expected a single deposit record, got %+v", history)
		}
		if history[0].Description != "Initial deposit" {
			t.Errorf("unexpected description %q", history[0].Description)
		}
	})
}
