package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"atmbank/internal/balance"
	"atmbank/internal/db"
	"atmbank/internal/models"
	"atmbank/internal/money"
	"atmbank/internal/store"
	"atmbank/internal/websocket"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type AccountStore interface {
	GetByID(ctx context.Context, accountID string) (models.Account, error)
	GetForUpdate(ctx context.Context, tx store.Getter, accountID string) (models.Account, error)
	UpdateBalance(ctx context.Context, tx store.Execer, accountID string, balance int64) error
	AdjustBalance(ctx context.Context, tx store.Execer, accountID string, delta int64) (int64, error)
}

type TransferStore interface {
	Create(ctx context.Context, tx store.Execer, record models.TransferRecord) error
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, subjectID, operation string) (string, error)
}

type BalanceHub interface {
	BroadcastBalance(accountID string, update websocket.BalanceUpdate)
}

// TransferService is the only path allowed to move funds between two
// accounts. Each transfer is one serializable database transaction:
// both rows are locked in canonical order, checked, mutated, and the
// audit entry and transfer record are written before commit. Any
// failure rolls the whole unit back; no record survives a rolled-back
// attempt and no retry happens here.
type TransferService struct {
	txRunner  db.TxRunner
	accounts  AccountStore
	transfers TransferStore
	audit     AuditStore
	guards    *balance.Table
	hub       BalanceHub
}

func NewTransferService(txRunner db.TxRunner, accounts AccountStore, transfers TransferStore, audit AuditStore, guards *balance.Table, hub BalanceHub) *TransferService {
	return &TransferService{
		txRunner:  txRunner,
		accounts:  accounts,
		transfers: transfers,
		audit:     audit,
		guards:    guards,
		hub:       hub,
	}
}

type TransferRequest struct {
	FromAccountID string
	ToAccountID   string
	AmountMinor   int64
	Remark        string
}

func (s *TransferService) Transfer(ctx context.Context, req TransferRequest) (models.TransferRecord, error) {
	if req.AmountMinor <= 0 {
		return models.TransferRecord{}, ErrInvalidAmount
	}
	if req.FromAccountID == req.ToAccountID {
		return models.TransferRecord{}, ErrSameAccountTransfer
	}
	var record models.TransferRecord
	var fromAfter, toAfter int64
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		fromAccount, toAccount, err := lockTwoAccounts(ctx, tx, s.accounts, req.FromAccountID, req.ToAccountID)
		if err != nil {
			return err
		}
		if !fromAccount.Enabled || !toAccount.Enabled {
			return ErrAccountDisabled
		}
		if fromAccount.Balance < req.AmountMinor {
			return ErrInsufficientFunds
		}
		fromAfter = fromAccount.Balance - req.AmountMinor
		toAfter = toAccount.Balance + req.AmountMinor
		if err := s.accounts.UpdateBalance(ctx, tx, req.FromAccountID, fromAfter); err != nil {
			return err
		}
		if err := s.accounts.UpdateBalance(ctx, tx, req.ToAccountID, toAfter); err != nil {
			return err
		}
		logID, err := s.audit.Log(ctx, tx, fromAccount.ID,
			fmt.Sprintf("transfer %s to account %s", money.FormatMinor(req.AmountMinor), toAccount.ID))
		if err != nil {
			return err
		}
		record = models.TransferRecord{
			ID:                  uuid.NewString(),
			FromAccountID:       req.FromAccountID,
			ToAccountID:         req.ToAccountID,
			Amount:              req.AmountMinor,
			Remark:              req.Remark,
			Status:              models.TransferStatusSuccess,
			PermissionsSnapshot: fromAccount.Permissions,
			AuditLogID:          logID,
			CreatedAt:           time.Now().UTC(),
		}
		return s.transfers.Create(ctx, tx, record)
	})
	if err != nil {
		return models.TransferRecord{}, err
	}

	// The guards cache committed state only, so they are refreshed
	// after commit, never inside the transaction. The refresh applies
	// the transfer as a delta: an absolute write here could erase a
	// deposit or withdrawal that slipped in between our commit and this
	// point, while deltas commute with those paths.
	fromBalance := s.guards.ApplyDelta(req.FromAccountID, -req.AmountMinor, fromAfter)
	toBalance := s.guards.ApplyDelta(req.ToAccountID, req.AmountMinor, toAfter)

	s.hub.BroadcastBalance(req.FromAccountID, websocket.BalanceUpdate{
		AccountID: req.FromAccountID,
		Balance:   money.FormatMinor(fromBalance),
	})
	s.hub.BroadcastBalance(req.ToAccountID, websocket.BalanceUpdate{
		AccountID: req.ToAccountID,
		Balance:   money.FormatMinor(toBalance),
	})
	return record, nil
}

// lockTwoAccounts takes both row locks in a canonical order, lower id
// first, regardless of transfer direction. Two concurrent
// opposite-direction transfers between the same pair therefore agree
// on lock order and cannot deadlock each other.
func lockTwoAccounts(ctx context.Context, tx store.Getter, accounts AccountStore, firstID, secondID string) (models.Account, models.Account, error) {
	leftID, rightID := orderedIDs(firstID, secondID)
	leftAccount, err := accounts.GetForUpdate(ctx, tx, leftID)
	if err != nil {
		return models.Account{}, models.Account{}, notFoundOr(err)
	}
	rightAccount, err := accounts.GetForUpdate(ctx, tx, rightID)
	if err != nil {
		return models.Account{}, models.Account{}, notFoundOr(err)
	}
	if firstID == leftID {
		return leftAccount, rightAccount, nil
	}
	return rightAccount, leftAccount, nil
}

func orderedIDs(firstID, secondID string) (string, string) {
	if firstID <= secondID {
		return firstID, secondID
	}
	return secondID, firstID
}

func notFoundOr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrAccountNotFound
	}
	return err
}
