package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"atmbank/internal/balance"
	"atmbank/internal/config"
	"atmbank/internal/models"
	"atmbank/internal/services"
	"atmbank/internal/session"
	"atmbank/internal/store"
	"atmbank/internal/websocket"

	"github.com/jmoiron/sqlx"
)

type fakeTxRunner struct {
	err error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.err != nil {
		return f.err
	}
	return fn(nil)
}

type stubAccountStore struct {
	createFn         func(ctx context.Context, tx store.Execer, account models.Account) error
	getByIDFn        func(ctx context.Context, accountID string) (models.Account, error)
	getByUsernameFn  func(ctx context.Context, username string) (models.Account, error)
	updatePasswordFn func(ctx context.Context, tx store.Execer, accountID, passwordHash string) error
	setEnabledFn     func(ctx context.Context, tx store.Execer, accountID string, enabled bool) error
	setPermissionsFn func(ctx context.Context, tx store.Execer, accountID string, permissions models.PermissionMask) error
	deleteFn         func(ctx context.Context, tx store.Execer, accountID string) error
	listFn           func(ctx context.Context, limit, offset int) ([]models.Account, error)
}

func (s stubAccountStore) Create(ctx context.Context, tx store.Execer, account models.Account) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, account)
}

func (s stubAccountStore) GetByID(ctx context.Context, accountID string) (models.Account, error) {
	if s.getByIDFn == nil {
		return models.Account{}, store.ErrNotFound
	}
	return s.getByIDFn(ctx, accountID)
}

func (s stubAccountStore) GetByUsername(ctx context.Context, username string) (models.Account, error) {
	if s.getByUsernameFn == nil {
		return models.Account{}, store.ErrNotFound
	}
	return s.getByUsernameFn(ctx, username)
}

func (s stubAccountStore) UpdatePassword(ctx context.Context, tx store.Execer, accountID, passwordHash string) error {
	if s.updatePasswordFn == nil {
		return nil
	}
	return s.updatePasswordFn(ctx, tx, accountID, passwordHash)
}

func (s stubAccountStore) SetEnabled(ctx context.Context, tx store.Execer, accountID string, enabled bool) error {
	if s.setEnabledFn == nil {
		return nil
	}
	return s.setEnabledFn(ctx, tx, accountID, enabled)
}

func (s stubAccountStore) SetPermissions(ctx context.Context, tx store.Execer, accountID string, permissions models.PermissionMask) error {
	if s.setPermissionsFn == nil {
		return nil
	}
	return s.setPermissionsFn(ctx, tx, accountID, permissions)
}

func (s stubAccountStore) Delete(ctx context.Context, tx store.Execer, accountID string) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, tx, accountID)
}

func (s stubAccountStore) List(ctx context.Context, limit, offset int) ([]models.Account, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, limit, offset)
}

type stubAdminStore struct {
	getByUsernameFn func(ctx context.Context, username string) (models.Admin, error)
}

func (s stubAdminStore) Create(ctx context.Context, tx store.Execer, admin models.Admin) error {
	return nil
}

func (s stubAdminStore) GetByUsername(ctx context.Context, username string) (models.Admin, error) {
	if s.getByUsernameFn == nil {
		return models.Admin{}, store.ErrNotFound
	}
	return s.getByUsernameFn(ctx, username)
}

func (s stubAdminStore) GetByID(ctx context.Context, adminID string) (models.Admin, error) {
	return models.Admin{ID: adminID}, nil
}

func (s stubAdminStore) HasAny(ctx context.Context) (bool, error) {
	return true, nil
}

type stubTransferStore struct {
	getByIDFn func(ctx context.Context, recordID string) (models.TransferRecord, error)
	listFn    func(ctx context.Context, accountID string, limit, offset int) ([]models.TransferRecord, error)
	correctFn func(ctx context.Context, tx store.Execer, recordID, status string) error
	totalFn   func(ctx context.Context) (int64, error)
}

func (s stubTransferStore) GetByID(ctx context.Context, recordID string) (models.TransferRecord, error) {
	if s.getByIDFn == nil {
		return models.TransferRecord{}, store.ErrNotFound
	}
	return s.getByIDFn(ctx, recordID)
}

func (s stubTransferStore) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]models.TransferRecord, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, accountID, limit, offset)
}

func (s stubTransferStore) CorrectStatus(ctx context.Context, tx store.Execer, recordID, status string) error {
	if s.correctFn == nil {
		return nil
	}
	return s.correctFn(ctx, tx, recordID, status)
}

func (s stubTransferStore) TotalAmount(ctx context.Context) (int64, error) {
	if s.totalFn == nil {
		return 0, nil
	}
	return s.totalFn(ctx)
}

type stubAuditStore struct {
	logFn       func(ctx context.Context, tx store.Execer, subjectID, operation string) (string, error)
	listFn      func(ctx context.Context, subjectID string, limit, offset int) ([]models.AuditLogEntry, error)
	listRangeFn func(ctx context.Context, subjectID string, from, to time.Time) ([]models.AuditLogEntry, error)
}

func (s stubAuditStore) Log(ctx context.Context, tx store.Execer, subjectID, operation string) (string, error) {
	if s.logFn == nil {
		return "log-1", nil
	}
	return s.logFn(ctx, tx, subjectID, operation)
}

func (s stubAuditStore) List(ctx context.Context, subjectID string, limit, offset int) ([]models.AuditLogEntry, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, subjectID, limit, offset)
}

func (s stubAuditStore) ListRange(ctx context.Context, subjectID string, from, to time.Time) ([]models.AuditLogEntry, error) {
	if s.listRangeFn == nil {
		return nil, nil
	}
	return s.listRangeFn(ctx, subjectID, from, to)
}

type stubAccountService struct {
	balanceFn  func(ctx context.Context, accountID string) (int64, error)
	depositFn  func(ctx context.Context, accountID string, amountMinor int64) (int64, error)
	withdrawFn func(ctx context.Context, accountID string, amountMinor int64) (int64, error)
}

func (s stubAccountService) Balance(ctx context.Context, accountID string) (int64, error) {
	if s.balanceFn == nil {
		return 0, nil
	}
	return s.balanceFn(ctx, accountID)
}

func (s stubAccountService) Deposit(ctx context.Context, accountID string, amountMinor int64) (int64, error) {
	if s.depositFn == nil {
		return amountMinor, nil
	}
	return s.depositFn(ctx, accountID, amountMinor)
}

func (s stubAccountService) Withdraw(ctx context.Context, accountID string, amountMinor int64) (int64, error) {
	if s.withdrawFn == nil {
		return 0, nil
	}
	return s.withdrawFn(ctx, accountID, amountMinor)
}

type stubTransferService struct {
	transferFn func(ctx context.Context, req services.TransferRequest) (models.TransferRecord, error)
}

func (s stubTransferService) Transfer(ctx context.Context, req services.TransferRequest) (models.TransferRecord, error) {
	if s.transferFn == nil {
		return models.TransferRecord{ID: "rec-1", Status: models.TransferStatusSuccess}, nil
	}
	return s.transferFn(ctx, req)
}

type handlerFixture struct {
	handler  *Handler
	sessions *session.Store
	guards   *balance.Table
}

type fixtureOptions struct {
	accounts stubAccountStore
	admins   stubAdminStore
	transfer stubTransferService
	account  stubAccountService
	store    stubTransferStore
	audit    stubAuditStore
	txRunner fakeTxRunner
}

func newFixture(opts fixtureOptions) handlerFixture {
	cfg := config.Config{
		MaxTransferAmount: 100000000,
	}
	sessions := session.NewStore(time.Hour, 3)
	guards := balance.NewTable()
	handler := New(opts.txRunner, cfg, opts.accounts, opts.admins, opts.store, opts.audit,
		opts.account, opts.transfer, sessions, guards, websocket.NewHub())
	return handlerFixture{handler: handler, sessions: sessions, guards: guards}
}

func (f handlerFixture) userRequest(method, target, body, accountID string) (*httptest.ResponseRecorder, *http.Request) {
	token := f.sessions.Issue(accountID, session.KindUser, "test")
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	return rr, req
}
