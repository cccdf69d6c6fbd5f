package command

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/eaglebank/ledger-service/internal/cache"
	"github.com/eaglebank/ledger-service/internal/cqrs"
	"github.com/eaglebank/ledger-service/internal/events"
	"github.com/eaglebank/ledger-service/internal/lock"
	"github.com/eaglebank/ledger-service/internal/models"
	"github.com/eaglebank/ledger-service/internal/registry"
	"github.com/eaglebank/ledger-service/internal/store"
	"github.com/eaglebank/ledger-service/internal/utils"
	"github.com/eaglebank/ledger-service/internal/xerrors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const lockPollInterval = 20 * time.Millisecond

// EventPublisher is the post-commit notification sink. Publishing is
// best-effort; failures are logged and never affect the result of a mutation.
type EventPublisher interface {
	PublishTransactionApplied(ctx context.Context, event events.TransactionAppliedEvent) error
	PublishBalanceUpdated(ctx context.Context, event events.BalanceUpdatedEvent) error
}

// LedgerCommandService is the balance mutation engine: the only component
// allowed to change an account balance. Every accepted operation acquires
// per-account locks in ascending account-id order, re-reads the authoritative
// balances under an exclusive row lock, enforces the credit-limit invariant,
// and persists the balance change(s) together with the transaction record as
// one atomic unit.
type LedgerCommandService struct {
	accounts  store.AccountStore
	uow       store.UnitOfWork
	locker    lock.KeyLocker
	viewCache cache.Cache
	users     registry.UserRegistry
	publisher EventPublisher
	logger    *zap.Logger

	lockWait time.Duration
	lockTTL  time.Duration
}

func NewLedgerCommandService(
	accounts store.AccountStore,
	uow store.UnitOfWork,
	locker lock.KeyLocker,
	viewCache cache.Cache,
	users registry.UserRegistry,
	publisher EventPublisher,
	logger *zap.Logger,
	lockWait, lockTTL time.Duration,
) *LedgerCommandService {
	return &LedgerCommandService{
		accounts:  accounts,
		uow:       uow,
		locker:    locker,
		viewCache: viewCache,
		users:     users,
		publisher: publisher,
		logger:    logger,
		lockWait:  lockWait,
		lockTTL:   lockTTL,
	}
}

type balanceUpdate struct {
	accountID  int64
	newBalance decimal.Decimal
}

// ApplyTransaction validates and executes one ledger operation, returning the
// persisted transaction record.
//
// Retries are the caller's concern: there is no idempotency key, so a caller
// retrying after a timeout can produce a duplicate transaction. Cancellation
// before lock acquisition has no side effects; after the atomic unit has
// committed, the operation is durable regardless of cancellation.
func (s *LedgerCommandService) ApplyTransaction(ctx context.Context, cmd cqrs.ApplyTransactionCommand) (*models.Transaction, error) {
	if err := validateApply(cmd); err != nil {
		return nil, err
	}

	accountIDs := involvedAccountIDs(cmd)

	// Fail fast on unknown accounts before taking any lock. Existence is
	// re-checked under lock by GetAccountForUpdate.
	for _, id := range accountIDs {
		if _, err := s.accounts.Get(ctx, id); err != nil {
			return nil, err
		}
	}

	held, err := s.acquireLocks(ctx, accountIDs)
	if err != nil {
		return nil, err
	}
	// Locks must be freed on every exit path, including cancellation.
	defer s.releaseLocks(context.WithoutCancel(ctx), held)

	var txn *models.Transaction
	var updates []balanceUpdate
	err = s.uow.WithinTx(ctx, func(tx store.LedgerTx) error {
		updates = updates[:0]

		// Exclusive reads in the same ascending order as the locks above.
		locked := make(map[int64]*models.Account, len(accountIDs))
		for _, id := range accountIDs {
			account, err := tx.GetAccountForUpdate(ctx, id)
			if err != nil {
				return err
			}
			locked[id] = account
		}

		if cmd.Type.IsDebit() {
			source := locked[*cmd.SourceAccountID]
			newBalance := source.Balance.Sub(cmd.Amount)
			if newBalance.LessThan(source.CreditLimit.Neg()) {
				return xerrors.ErrInsufficientFunds
			}
			updates = append(updates, balanceUpdate{source.ID, newBalance})
		}
		if cmd.Type.IsCredit() {
			target := locked[*cmd.TargetAccountID]
			updates = append(updates, balanceUpdate{target.ID, target.Balance.Add(cmd.Amount)})
		}

		for _, u := range updates {
			if err := tx.UpdateBalance(ctx, u.accountID, u.newBalance); err != nil {
				return err
			}
		}

		txn = &models.Transaction{
			Type:            cmd.Type,
			SourceAccountID: cmd.SourceAccountID,
			TargetAccountID: cmd.TargetAccountID,
			Amount:          cmd.Amount,
			Description:     cmd.Description,
			CreatedAt:       time.Now().UTC(),
		}
		return tx.AppendTransaction(ctx, txn)
	})
	if err != nil {
		switch {
		case errors.Is(err, xerrors.ErrInsufficientFunds),
			errors.Is(err, xerrors.ErrAccountNotFound),
			errors.Is(err, context.Canceled),
			errors.Is(err, context.DeadlineExceeded):
			return nil, err
		default:
			s.logger.Error("ledger unit of work failed",
				zap.String("type", string(cmd.Type)),
				zap.Error(err),
			)
			return nil, fmt.Errorf("%w: %v", xerrors.ErrPersistence, err)
		}
	}

	s.invalidateViews(ctx, accountIDs)
	s.publishApplied(ctx, txn, updates)

	s.logger.Info("transaction applied",
		zap.String("transactionId", txn.ID),
		zap.String("type", string(txn.Type)),
		zap.String("amount", txn.Amount.String()),
	)
	return txn, nil
}

// CreateAccount opens an account for an existing user. A positive initial
// deposit is applied through ApplyTransaction so the seed is recorded in the
// transaction log like any other credit.
func (s *LedgerCommandService) CreateAccount(ctx context.Context, cmd cqrs.CreateAccountCommand) (*models.Account, error) {
	if cmd.CreditLimit.Sign() < 0 {
		return nil, fmt.Errorf("%w: credit limit must not be negative", xerrors.ErrInvalidRequest)
	}
	if cmd.InitialDeposit.Sign() < 0 {
		return nil, fmt.Errorf("%w: initial deposit must not be negative", xerrors.ErrInvalidRequest)
	}

	known, err := s.users.Exists(ctx, cmd.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", xerrors.ErrPersistence, err)
	}
	if !known {
		return nil, xerrors.ErrUserNotFound
	}

	accountNumber, err := s.uniqueAccountNumber(ctx)
	if err != nil {
		return nil, err
	}

	account := &models.Account{
		OwnerID:       cmd.OwnerID,
		AccountNumber: accountNumber,
		Balance:       decimal.Zero,
		CreditLimit:   cmd.CreditLimit,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, xerrors.ErrDuplicateAccountNumber) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", xerrors.ErrPersistence, err)
	}

	if cmd.InitialDeposit.Sign() > 0 {
		_, err := s.ApplyTransaction(ctx, cqrs.ApplyTransactionCommand{
			Type:            models.TypeDeposit,
			TargetAccountID: &account.ID,
			Amount:          cmd.InitialDeposit,
			Description:     "Initial deposit",
		})
		if err != nil {
			return nil, err
		}
		return s.accounts.Get(ctx, account.ID)
	}
	return account, nil
}

func (s *LedgerCommandService) uniqueAccountNumber(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		number := utils.GenerateAccountNumber()
		taken, err := s.accounts.ExistsByAccountNumber(ctx, number)
		if err != nil {
			return "", fmt.Errorf("%w: %v", xerrors.ErrPersistence, err)
		}
		if !taken {
			return number, nil
		}
	}
	return "", xerrors.ErrDuplicateAccountNumber
}

// validateApply enforces the fail-fast preconditions. Nothing is locked or
// written before it passes.
func validateApply(cmd cqrs.ApplyTransactionCommand) error {
	if !cmd.Type.Valid() {
		return fmt.Errorf("%w: unknown transaction type %q", xerrors.ErrInvalidRequest, cmd.Type)
	}
	if cmd.Amount.Sign() <= 0 {
		return fmt.Errorf("%w: amount must be positive", xerrors.ErrInvalidRequest)
	}
	switch cmd.Type {
	case models.TypeDeposit, models.TypeRefund:
		if cmd.TargetAccountID == nil {
			return fmt.Errorf("%w: %s requires a target account", xerrors.ErrInvalidRequest, cmd.Type)
		}
		if cmd.SourceAccountID != nil {
			return fmt.Errorf("%w: %s must not name a source account", xerrors.ErrInvalidRequest, cmd.Type)
		}
	case models.TypeWithdraw, models.TypePayment:
		if cmd.SourceAccountID == nil {
			return fmt.Errorf("%w: %s requires a source account", xerrors.ErrInvalidRequest, cmd.Type)
		}
		if cmd.TargetAccountID != nil {
			return fmt.Errorf("%w: %s must not name a target account", xerrors.ErrInvalidRequest, cmd.Type)
		}
	case models.TypeTransfer:
		if cmd.SourceAccountID == nil || cmd.TargetAccountID == nil {
			return fmt.Errorf("%w: transfer requires source and target accounts", xerrors.ErrInvalidRequest)
		}
		if *cmd.SourceAccountID == *cmd.TargetAccountID {
			return fmt.Errorf("%w: transfer source and target must differ", xerrors.ErrInvalidRequest)
		}
	}
	return nil
}

// involvedAccountIDs returns the deduplicated account ids in ascending order.
// This fixed global order is the sole deadlock-avoidance mechanism: two
// concurrent transfers over the same pair always contend on the lower id
// first, whichever direction they run in.
func involvedAccountIDs(cmd cqrs.ApplyTransactionCommand) []int64 {
	ids := make([]int64, 0, 2)
	if cmd.SourceAccountID != nil {
		ids = append(ids, *cmd.SourceAccountID)
	}
	if cmd.TargetAccountID != nil && (cmd.SourceAccountID == nil || *cmd.TargetAccountID != *cmd.SourceAccountID) {
		ids = append(ids, *cmd.TargetAccountID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func lockKey(accountID int64) string {
	return fmt.Sprintf("account:%d", accountID)
}

// acquireLocks takes the per-account locks in order, waiting up to lockWait
// for each. On any failure it frees what it already holds and reports
// ErrLockTimeout so the caller can retry with backoff.
func (s *LedgerCommandService) acquireLocks(ctx context.Context, accountIDs []int64) ([]string, error) {
	held := make([]string, 0, len(accountIDs))
	for _, id := range accountIDs {
		key := lockKey(id)
		ok, err := s.tryAcquireWithWait(ctx, key)
		if err != nil || !ok {
			s.releaseLocks(context.WithoutCancel(ctx), held)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return nil, err
				}
				return nil, fmt.Errorf("%w: %v", xerrors.ErrLockTimeout, err)
			}
			return nil, xerrors.ErrLockTimeout
		}
		held = append(held, key)
	}
	return held, nil
}

func (s *LedgerCommandService) tryAcquireWithWait(ctx context.Context, key string) (bool, error) {
	deadline := time.Now().Add(s.lockWait)
	for {
		ok, err := s.locker.TryAcquire(ctx, key, s.lockTTL)
		if err != nil || ok {
			return ok, err
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}

// releaseLocks frees held locks in reverse acquisition order.
func (s *LedgerCommandService) releaseLocks(ctx context.Context, held []string) {
	for i := len(held) - 1; i >= 0; i-- {
		if err := s.locker.Release(ctx, held[i]); err != nil {
			s.logger.Warn("failed to release lock", zap.String("key", held[i]), zap.Error(err))
		}
	}
}

// invalidateViews deletes (never overwrites) the cached account views and
// per-account transaction lists for every affected account.
func (s *LedgerCommandService) invalidateViews(ctx context.Context, accountIDs []int64) {
	for _, id := range accountIDs {
		s.viewCache.Delete(ctx, cache.AccountKey(id))
		s.viewCache.Delete(ctx, cache.AccountTransactionsKey(id))
	}
}

func (s *LedgerCommandService) publishApplied(ctx context.Context, txn *models.Transaction, updates []balanceUpdate) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishTransactionApplied(ctx, events.TransactionAppliedEvent{
		TransactionID:   txn.ID,
		Type:            string(txn.Type),
		SourceAccountID: txn.SourceAccountID,
		TargetAccountID: txn.TargetAccountID,
		Amount:          txn.Amount.String(),
	})
	if err != nil {
		s.logger.Warn("failed to publish transaction.applied event", zap.Error(err))
	}
	for _, u := range updates {
		err := s.publisher.PublishBalanceUpdated(ctx, events.BalanceUpdatedEvent{
			AccountID:  u.accountID,
			NewBalance: u.newBalance.String(),
		})
		if err != nil {
			s.logger.Warn("failed to publish balance.updated event", zap.Error(err))
		}
	}
}
