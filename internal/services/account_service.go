package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"atmbank/internal/balance"
	"atmbank/internal/db"
	"atmbank/internal/money"
	"atmbank/internal/websocket"

	"github.com/jmoiron/sqlx"
)

// AccountService covers the single-account money paths. Deposits and
// withdrawals go through the account's guard first and then persist the
// same delta; a failed persist compensates the guard so the cache never
// drifts from the store.
type AccountService struct {
	txRunner    db.TxRunner
	accounts    AccountStore
	audit       AuditStore
	guards      *balance.Table
	hub         BalanceHub
	readTimeout time.Duration
}

func NewAccountService(txRunner db.TxRunner, accounts AccountStore, audit AuditStore, guards *balance.Table, hub BalanceHub, readTimeout time.Duration) *AccountService {
	if readTimeout <= 0 {
		readTimeout = balance.DefaultReadTimeout
	}
	return &AccountService{
		txRunner:    txRunner,
		accounts:    accounts,
		audit:       audit,
		guards:      guards,
		hub:         hub,
		readTimeout: readTimeout,
	}
}

// Balance reads the account balance through its guard. The optimistic
// path costs nothing when no writer interleaves; under contention the
// read is bounded and surfaces ErrConcurrencyTimeout rather than
// blocking indefinitely.
func (s *AccountService) Balance(ctx context.Context, accountID string) (int64, error) {
	guard, err := s.guardFor(ctx, accountID)
	if err != nil {
		return 0, err
	}
	value, err := guard.Read(s.readTimeout)
	if errors.Is(err, balance.ErrReadTimeout) {
		return 0, ErrConcurrencyTimeout
	}
	if err != nil {
		return 0, err
	}
	return value, nil
}

func (s *AccountService) Deposit(ctx context.Context, accountID string, amountMinor int64) (int64, error) {
	if amountMinor <= 0 {
		return 0, ErrInvalidAmount
	}
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return 0, notFoundOr(err)
	}
	if !account.Enabled {
		return 0, ErrAccountDisabled
	}
	guard := s.guards.Acquire(accountID, account.Balance)
	updated := guard.AddAndGet(amountMinor)
	if err := s.persist(ctx, accountID, amountMinor,
		fmt.Sprintf("deposit %s", money.FormatMinor(amountMinor))); err != nil {
		guard.AddAndGet(-amountMinor)
		return 0, fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}
	s.hub.BroadcastBalance(accountID, websocket.BalanceUpdate{
		AccountID: accountID,
		Balance:   money.FormatMinor(updated),
	})
	return updated, nil
}

// Withdraw uses compare-and-set as the only funds-check primitive: the
// sufficiency check and the debit are one atomic step, so two
// concurrent withdrawals can never both spend the same balance. The
// CAS loser gets ErrBalanceConflict with the account untouched and may
// resubmit.
func (s *AccountService) Withdraw(ctx context.Context, accountID string, amountMinor int64) (int64, error) {
	if amountMinor <= 0 {
		return 0, ErrInvalidAmount
	}
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return 0, notFoundOr(err)
	}
	if !account.Enabled {
		return 0, ErrAccountDisabled
	}
	guard := s.guards.Acquire(accountID, account.Balance)
	current, err := guard.Read(s.readTimeout)
	if errors.Is(err, balance.ErrReadTimeout) {
		return 0, ErrConcurrencyTimeout
	}
	if err != nil {
		return 0, err
	}
	if current < amountMinor {
		return 0, ErrInsufficientFunds
	}
	updated := current - amountMinor
	if !guard.CompareAndSet(current, updated) {
		return 0, ErrBalanceConflict
	}
	if err := s.persist(ctx, accountID, -amountMinor,
		fmt.Sprintf("withdraw %s", money.FormatMinor(amountMinor))); err != nil {
		guard.AddAndGet(amountMinor)
		return 0, fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}
	s.hub.BroadcastBalance(accountID, websocket.BalanceUpdate{
		AccountID: accountID,
		Balance:   money.FormatMinor(updated),
	})
	return updated, nil
}

// persist applies the delta in SQL so concurrent commits commute; the
// store converges on the same total the guard holds no matter which
// transaction lands first.
func (s *AccountService) persist(ctx context.Context, accountID string, delta int64, operation string) error {
	return s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		affected, err := s.accounts.AdjustBalance(ctx, tx, accountID, delta)
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrAccountNotFound
		}
		_, err = s.audit.Log(ctx, tx, accountID, operation)
		return err
	})
}

func (s *AccountService) guardFor(ctx context.Context, accountID string) (*balance.Guard, error) {
	if guard, ok := s.guards.Get(accountID); ok {
		return guard, nil
	}
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return s.guards.Acquire(accountID, account.Balance), nil
}
