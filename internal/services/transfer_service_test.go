package services

import (
	"context"
	"errors"
	"testing"

	"atmbank/internal/balance"
	"atmbank/internal/models"
)

func newTransferFixture(accounts ...models.Account) (*TransferService, *memAccountStore, *memTransferStore, *memAuditStore, *balance.Table) {
	accountStore := newMemAccountStore(accounts...)
	transferStore := &memTransferStore{}
	auditStore := &memAuditStore{}
	guards := balance.NewTable()
	service := NewTransferService(fakeTxRunner{}, accountStore, transferStore, auditStore, guards, nopHub{})
	return service, accountStore, transferStore, auditStore, guards
}

func enabledAccount(id string, balanceMinor int64) models.Account {
	return models.Account{
		ID:          id,
		Username:    "user-" + id,
		Enabled:     true,
		Balance:     balanceMinor,
		Permissions: models.PermAll,
	}
}

func TestTransferSuccess(t *testing.T) {
	service, accounts, transfers, audit, guards := newTransferFixture(
		enabledAccount("acc-a", 1000),
		enabledAccount("acc-b", 0),
	)
	record, err := service.Transfer(context.Background(), TransferRequest{
		FromAccountID: "acc-a",
		ToAccountID:   "acc-b",
		AmountMinor:   500,
		Remark:        "rent",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.Status != models.TransferStatusSuccess {
		t.Fatalf("expected SUCCESS, got %s", record.Status)
	}
	if record.PermissionsSnapshot != models.PermAll {
		t.Fatalf("expected sender's permission mask snapshot, got %d", record.PermissionsSnapshot)
	}
	if record.AuditLogID == "" {
		t.Fatal("expected record to reference its audit entry")
	}
	if record.Remark != "rent" {
		t.Fatalf("unexpected remark %q", record.Remark)
	}
	if got := accounts.balanceOf("acc-a"); got != 500 {
		t.Fatalf("expected source at 500, got %d", got)
	}
	if got := accounts.balanceOf("acc-b"); got != 500 {
		t.Fatalf("expected destination at 500, got %d", got)
	}
	if len(transfers.records) != 1 {
		t.Fatalf("expected one transfer record, got %d", len(transfers.records))
	}
	if len(audit.entries) != 1 || audit.entries[0].SubjectID != "acc-a" {
		t.Fatalf("expected one audit entry for the debiting subject, got %#v", audit.entries)
	}
	guard, ok := guards.Get("acc-a")
	if !ok {
		t.Fatal("expected source guard refreshed after commit")
	}
	if value, _ := guard.Read(balance.DefaultReadTimeout); value != 500 {
		t.Fatalf("expected guard cache at 500, got %d", value)
	}
}

func TestTransferInsufficientFunds(t *testing.T) {
	service, accounts, transfers, audit, _ := newTransferFixture(
		enabledAccount("acc-a", 400),
		enabledAccount("acc-b", 0),
	)
	_, err := service.Transfer(context.Background(), TransferRequest{
		FromAccountID: "acc-a",
		ToAccountID:   "acc-b",
		AmountMinor:   500,
	})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if got := accounts.balanceOf("acc-a"); got != 400 {
		t.Fatalf("expected source untouched at 400, got %d", got)
	}
	if len(transfers.records) != 0 {
		t.Fatal("no transfer record may exist for a failed attempt")
	}
	if len(audit.entries) != 0 {
		t.Fatal("no audit entry may survive a rolled back attempt")
	}
}

func TestTransferAccountNotFound(t *testing.T) {
	service, _, _, _, _ := newTransferFixture(enabledAccount("acc-a", 1000))
	_, err := service.Transfer(context.Background(), TransferRequest{
		FromAccountID: "acc-a",
		ToAccountID:   "acc-missing",
		AmountMinor:   100,
	})
	if !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestTransferDisabledAccount(t *testing.T) {
	disabled := enabledAccount("acc-b", 0)
	disabled.Enabled = false
	service, _, transfers, _, _ := newTransferFixture(enabledAccount("acc-a", 1000), disabled)
	_, err := service.Transfer(context.Background(), TransferRequest{
		FromAccountID: "acc-a",
		ToAccountID:   "acc-b",
		AmountMinor:   100,
	})
	if !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}
	if len(transfers.records) != 0 {
		t.Fatal("no record for a rejected transfer")
	}
}

func TestTransferRejectsBadRequests(t *testing.T) {
	service, _, _, _, _ := newTransferFixture(enabledAccount("acc-a", 1000))
	if _, err := service.Transfer(context.Background(), TransferRequest{
		FromAccountID: "acc-a",
		ToAccountID:   "acc-a",
		AmountMinor:   100,
	}); !errors.Is(err, ErrSameAccountTransfer) {
		t.Fatalf("expected ErrSameAccountTransfer, got %v", err)
	}
	if _, err := service.Transfer(context.Background(), TransferRequest{
		FromAccountID: "acc-a",
		ToAccountID:   "acc-b",
		AmountMinor:   0,
	}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestTransferLocksInCanonicalOrder(t *testing.T) {
	service, accounts, _, _, _ := newTransferFixture(
		enabledAccount("acc-a", 1000),
		enabledAccount("acc-b", 1000),
	)
	// Opposite-direction transfers must agree on lock order.
	if _, err := service.Transfer(context.Background(), TransferRequest{
		FromAccountID: "acc-b",
		ToAccountID:   "acc-a",
		AmountMinor:   100,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := service.Transfer(context.Background(), TransferRequest{
		FromAccountID: "acc-a",
		ToAccountID:   "acc-b",
		AmountMinor:   100,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"acc-a", "acc-b", "acc-a", "acc-b"}
	if len(accounts.lockOrder) != len(want) {
		t.Fatalf("expected %d lock acquisitions, got %v", len(want), accounts.lockOrder)
	}
	for i, id := range want {
		if accounts.lockOrder[i] != id {
			t.Fatalf("lock order %v, want %v", accounts.lockOrder, want)
		}
	}
}

func TestTransferRollbackLeavesNoTrace(t *testing.T) {
	accountStore := newMemAccountStore(
		enabledAccount("acc-a", 1000),
		enabledAccount("acc-b", 0),
	)
	transferStore := &memTransferStore{createErr: errors.New("record insert failed")}
	auditStore := &memAuditStore{}
	guards := balance.NewTable()
	guards.Acquire("acc-a", 1000)
	// The real runner rolls the whole unit of work back; the in-memory
	// store mimics that by restoring balances when fn fails.
	service := NewTransferService(rollbackTxRunner{accounts: accountStore}, accountStore, transferStore, auditStore, guards, nopHub{})

	_, err := service.Transfer(context.Background(), TransferRequest{
		FromAccountID: "acc-a",
		ToAccountID:   "acc-b",
		AmountMinor:   500,
	})
	if err == nil {
		t.Fatal("expected the injected failure to surface")
	}
	if got := accountStore.balanceOf("acc-a"); got != 1000 {
		t.Fatalf("expected source restored to 1000, got %d", got)
	}
	if got := accountStore.balanceOf("acc-b"); got != 0 {
		t.Fatalf("expected destination restored to 0, got %d", got)
	}
	if len(transferStore.records) != 0 {
		t.Fatal("no transfer record may exist for a rolled back attempt")
	}
	guard, _ := guards.Get("acc-a")
	if value, _ := guard.Read(balance.DefaultReadTimeout); value != 1000 {
		t.Fatalf("guard must still reflect committed state 1000, got %d", value)
	}
}

func TestTransferGuardRefreshPreservesConcurrentDeposit(t *testing.T) {
	accountStore := newMemAccountStore(
		enabledAccount("acc-a", 1000),
		enabledAccount("acc-b", 0),
	)
	transferStore := &memTransferStore{}
	auditStore := &memAuditStore{}
	guards := balance.NewTable()
	accountService := NewAccountService(fakeTxRunner{}, accountStore, auditStore, guards, nopHub{}, 0)
	runner := &hookTxRunner{}
	transferService := NewTransferService(runner, accountStore, transferStore, auditStore, guards, nopHub{})

	// Materialize the source guard before the transfer starts.
	if _, err := accountService.Balance(context.Background(), "acc-a"); err != nil {
		t.Fatalf("warm guard: %v", err)
	}
	// A deposit runs to completion between the transfer's commit and
	// its cache refresh.
	runner.afterCommit = func() {
		if _, err := accountService.Deposit(context.Background(), "acc-a", 100); err != nil {
			t.Fatalf("deposit: %v", err)
		}
	}
	if _, err := transferService.Transfer(context.Background(), TransferRequest{
		FromAccountID: "acc-a",
		ToAccountID:   "acc-b",
		AmountMinor:   500,
	}); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	// 1000 - 500 + 100: the interleaved deposit must survive the
	// refresh in both the store and the cache.
	if got := accountStore.balanceOf("acc-a"); got != 600 {
		t.Fatalf("stored balance = %d, want 600", got)
	}
	value, err := accountService.Balance(context.Background(), "acc-a")
	if err != nil {
		t.Fatalf("read balance: %v", err)
	}
	if value != 600 {
		t.Fatalf("cached balance = %d, want 600", value)
	}
}
