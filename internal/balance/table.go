package balance

import "sync"

// Table maps account ids to their guards. Guards are created lazily on
// first use so unrelated accounts never share a lock.
type Table struct {
	mu     sync.Mutex
	guards map[string]*Guard
}

func NewTable() *Table {
	return &Table{guards: make(map[string]*Guard)}
}

// Get returns the guard for accountID if one has been materialized.
func (t *Table) Get(accountID string) (*Guard, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	guard, ok := t.guards[accountID]
	return guard, ok
}

// Acquire returns the existing guard for accountID, or creates one
// seeded with the committed balance. An existing guard is returned
// untouched: its in-memory value is already derived from committed
// state and must not be clobbered by a stale read.
func (t *Table) Acquire(accountID string, committed int64) *Guard {
	t.mu.Lock()
	defer t.mu.Unlock()
	guard, ok := t.guards[accountID]
	if !ok {
		guard = NewGuard(committed)
		t.guards[accountID] = guard
	}
	return guard
}

// ApplyDelta folds a committed balance change into the account's guard
// and returns the resulting value. When no guard exists yet it is
// seeded with the committed post-change balance instead. Deltas commute,
// so concurrent committed changes to the same account converge on the
// same value no matter which order they land in.
func (t *Table) ApplyDelta(accountID string, delta, committed int64) int64 {
	t.mu.Lock()
	guard, ok := t.guards[accountID]
	if !ok {
		guard = NewGuard(committed)
		t.guards[accountID] = guard
		t.mu.Unlock()
		return committed
	}
	t.mu.Unlock()
	return guard.AddAndGet(delta)
}

// Reset installs a guard holding the committed balance, replacing any
// existing guard. Used after out-of-band balance corrections.
func (t *Table) Reset(accountID string, committed int64) *Guard {
	t.mu.Lock()
	defer t.mu.Unlock()
	guard := NewGuard(committed)
	t.guards[accountID] = guard
	return guard
}

// Drop forgets the guard for a deleted account.
func (t *Table) Drop(accountID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.guards, accountID)
}
