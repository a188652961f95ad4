package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"atmbank/internal/balance"
	"atmbank/internal/models"
)

func newAccountFixture(accounts ...models.Account) (*AccountService, *memAccountStore, *memAuditStore, *balance.Table) {
	accountStore := newMemAccountStore(accounts...)
	auditStore := &memAuditStore{}
	guards := balance.NewTable()
	service := NewAccountService(fakeTxRunner{}, accountStore, auditStore, guards, nopHub{}, 100*time.Millisecond)
	return service, accountStore, auditStore, guards
}

func TestBalanceReadsCommittedValue(t *testing.T) {
	service, _, _, _ := newAccountFixture(enabledAccount("acc-a", 1234))
	value, err := service.Balance(context.Background(), "acc-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != 1234 {
		t.Fatalf("expected 1234, got %d", value)
	}
}

func TestBalanceUnknownAccount(t *testing.T) {
	service, _, _, _ := newAccountFixture()
	if _, err := service.Balance(context.Background(), "acc-x"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestDepositPersistsAndAudits(t *testing.T) {
	service, accounts, audit, _ := newAccountFixture(enabledAccount("acc-a", 1000))
	updated, err := service.Deposit(context.Background(), "acc-a", 250)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated != 1250 {
		t.Fatalf("expected 1250, got %d", updated)
	}
	if got := accounts.balanceOf("acc-a"); got != 1250 {
		t.Fatalf("expected persisted balance 1250, got %d", got)
	}
	if len(audit.entries) != 1 {
		t.Fatalf("expected one audit entry, got %d", len(audit.entries))
	}
}

func TestConcurrentDepositsSumExactly(t *testing.T) {
	service, accounts, _, _ := newAccountFixture(enabledAccount("acc-a", 0))
	const workers = 40
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(delta int64) {
			defer wg.Done()
			if _, err := service.Deposit(context.Background(), "acc-a", delta); err != nil {
				t.Errorf("deposit failed: %v", err)
			}
		}(int64(i + 1))
	}
	wg.Wait()
	// 1 + 2 + ... + workers
	want := int64(workers * (workers + 1) / 2)
	value, err := service.Balance(context.Background(), "acc-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != want {
		t.Fatalf("expected %d after concurrent deposits, got %d", want, value)
	}
	if got := accounts.balanceOf("acc-a"); got != want {
		t.Fatalf("expected persisted %d, got %d", want, got)
	}
}

func TestWithdrawHappyPath(t *testing.T) {
	service, accounts, _, _ := newAccountFixture(enabledAccount("acc-a", 1000))
	updated, err := service.Withdraw(context.Background(), "acc-a", 600)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated != 400 {
		t.Fatalf("expected 400, got %d", updated)
	}
	if got := accounts.balanceOf("acc-a"); got != 400 {
		t.Fatalf("expected persisted 400, got %d", got)
	}
}

func TestWithdrawInsufficientFunds(t *testing.T) {
	service, accounts, _, _ := newAccountFixture(enabledAccount("acc-a", 100))
	if _, err := service.Withdraw(context.Background(), "acc-a", 600); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if got := accounts.balanceOf("acc-a"); got != 100 {
		t.Fatalf("expected balance untouched at 100, got %d", got)
	}
}

func TestNoDoubleSpend(t *testing.T) {
	service, _, _, _ := newAccountFixture(enabledAccount("acc-a", 1000))
	start := make(chan struct{})
	results := make(chan error, 2)
	withdraw := func(amount int64) {
		<-start
		_, err := service.Withdraw(context.Background(), "acc-a", amount)
		results <- err
	}
	go withdraw(600)
	go withdraw(500)
	close(start)
	first, second := <-results, <-results

	failures := 0
	for _, err := range []error{first, second} {
		if err != nil {
			failures++
			if !errors.Is(err, ErrInsufficientFunds) && !errors.Is(err, ErrBalanceConflict) {
				t.Fatalf("loser got unexpected error: %v", err)
			}
		}
	}
	if failures != 1 {
		t.Fatalf("expected exactly one withdrawal to fail, got %d failures", failures)
	}
	value, err := service.Balance(context.Background(), "acc-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != 400 && value != 500 {
		t.Fatalf("expected final balance 400 or 500, got %d", value)
	}
}

func TestWithdrawCompensatesGuardOnPersistFailure(t *testing.T) {
	accountStore := newMemAccountStore(enabledAccount("acc-a", 1000))
	accountStore.updateErr = errors.New("store rejected update")
	guards := balance.NewTable()
	service := NewAccountService(fakeTxRunner{}, accountStore, &memAuditStore{}, guards, nopHub{}, 100*time.Millisecond)

	_, err := service.Withdraw(context.Background(), "acc-a", 600)
	if !errors.Is(err, ErrTransactionFailed) {
		t.Fatalf("expected ErrTransactionFailed, got %v", err)
	}
	guard, ok := guards.Get("acc-a")
	if !ok {
		t.Fatal("expected guard to exist")
	}
	if value, _ := guard.Read(balance.DefaultReadTimeout); value != 1000 {
		t.Fatalf("expected guard compensated back to 1000, got %d", value)
	}
}

func TestDepositRejectsDisabledAccount(t *testing.T) {
	disabled := enabledAccount("acc-a", 0)
	disabled.Enabled = false
	service, _, _, _ := newAccountFixture(disabled)
	if _, err := service.Deposit(context.Background(), "acc-a", 100); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}
	if _, err := service.Withdraw(context.Background(), "acc-a", 100); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}
}

func TestDepositRejectsNonPositiveAmount(t *testing.T) {
	service, _, _, _ := newAccountFixture(enabledAccount("acc-a", 0))
	if _, err := service.Deposit(context.Background(), "acc-a", 0); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := service.Withdraw(context.Background(), "acc-a", -5); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}
