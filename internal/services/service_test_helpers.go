package services

import (
	"context"
	"fmt"
	"sync"

	"atmbank/internal/models"
	"atmbank/internal/store"
	"atmbank/internal/websocket"

	"github.com/jmoiron/sqlx"
)

type fakeTxRunner struct {
	err      error
	beginErr error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.beginErr != nil {
		return f.beginErr
	}
	if err := fn(nil); err != nil {
		return err
	}
	return f.err
}

// hookTxRunner commits like fakeTxRunner but invokes afterCommit once,
// after the transaction function succeeds and before WithTx returns.
// That window is where another operation can complete in full.
type hookTxRunner struct {
	afterCommit func()
}

func (r *hookTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if err := fn(nil); err != nil {
		return err
	}
	if r.afterCommit != nil {
		hook := r.afterCommit
		r.afterCommit = nil
		hook()
	}
	return nil
}

// memAccountStore keeps accounts in memory and records the order in
// which row locks were taken.
type memAccountStore struct {
	mu        sync.Mutex
	accounts  map[string]models.Account
	lockOrder []string
	updateErr error
}

func newMemAccountStore(accounts ...models.Account) *memAccountStore {
	s := &memAccountStore{accounts: make(map[string]models.Account)}
	for _, account := range accounts {
		s.accounts[account.ID] = account
	}
	return s
}

func (s *memAccountStore) GetByID(ctx context.Context, accountID string) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[accountID]
	if !ok {
		return models.Account{}, store.ErrNotFound
	}
	return account, nil
}

func (s *memAccountStore) GetForUpdate(ctx context.Context, tx store.Getter, accountID string) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[accountID]
	if !ok {
		return models.Account{}, store.ErrNotFound
	}
	s.lockOrder = append(s.lockOrder, accountID)
	return account, nil
}

func (s *memAccountStore) UpdateBalance(ctx context.Context, tx store.Execer, accountID string, balance int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	account := s.accounts[accountID]
	account.Balance = balance
	s.accounts[accountID] = account
	return nil
}

func (s *memAccountStore) AdjustBalance(ctx context.Context, tx store.Execer, accountID string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return 0, s.updateErr
	}
	account, ok := s.accounts[accountID]
	if !ok {
		return 0, nil
	}
	account.Balance += delta
	s.accounts[accountID] = account
	return 1, nil
}

func (s *memAccountStore) balanceOf(accountID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[accountID].Balance
}

type memTransferStore struct {
	mu        sync.Mutex
	records   []models.TransferRecord
	createErr error
}

func (s *memTransferStore) Create(ctx context.Context, tx store.Execer, record models.TransferRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.records = append(s.records, record)
	return nil
}

type memAuditStore struct {
	mu      sync.Mutex
	entries []models.AuditLogEntry
	logErr  error
	nextID  int
}

func (s *memAuditStore) Log(ctx context.Context, tx store.Execer, subjectID, operation string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.logErr != nil {
		return "", s.logErr
	}
	s.nextID++
	entry := models.AuditLogEntry{
		ID:        fmt.Sprintf("log-%d", s.nextID),
		SubjectID: subjectID,
		Operation: operation,
	}
	s.entries = append(s.entries, entry)
	return entry.ID, nil
}

// rollbackTxRunner mimics the real runner's all-or-nothing semantics
// against the in-memory account store: on failure every balance is
// restored to its pre-transaction value.
type rollbackTxRunner struct {
	accounts *memAccountStore
}

func (r rollbackTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	r.accounts.mu.Lock()
	snapshot := make(map[string]models.Account, len(r.accounts.accounts))
	for id, account := range r.accounts.accounts {
		snapshot[id] = account
	}
	r.accounts.mu.Unlock()
	if err := fn(nil); err != nil {
		r.accounts.mu.Lock()
		r.accounts.accounts = snapshot
		r.accounts.mu.Unlock()
		return err
	}
	return nil
}

type nopHub struct{}

func (nopHub) BroadcastBalance(accountID string, update websocket.BalanceUpdate) {}
