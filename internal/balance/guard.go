package balance

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrReadTimeout is returned when the fallback shared lock cannot be
// acquired within the configured bound. Callers should treat it as
// retryable.
var ErrReadTimeout = errors.New("balance read timed out")

// DefaultReadTimeout bounds the pessimistic fallback of Read.
const DefaultReadTimeout = 100 * time.Millisecond

const spinInterval = 50 * time.Microsecond

// Guard is a concurrency-safe holder for one account's balance in minor
// units. Reads are optimistic: a version stamp is taken, the value read,
// and the stamp re-validated; only when a writer interleaves does the
// reader fall back to a bounded-wait shared lock. All mutation goes
// through the exclusive lock, so Write, AddAndGet and CompareAndSet are
// strictly ordered per account.
//
// The guard caches committed state; it is not a second source of truth.
type Guard struct {
	mu sync.RWMutex
	// version is even at rest and odd while a write is in flight.
	version atomic.Uint64
	value   atomic.Int64
}

func NewGuard(initial int64) *Guard {
	g := &Guard{}
	g.value.Store(initial)
	return g
}

// Read returns the current balance. The optimistic path never blocks;
// if validation fails it retries under a shared lock, giving up with
// ErrReadTimeout once timeout elapses.
func (g *Guard) Read(timeout time.Duration) (int64, error) {
	stamp := g.version.Load()
	if stamp%2 == 0 {
		value := g.value.Load()
		if g.version.Load() == stamp {
			return value, nil
		}
	}
	deadline := time.Now().Add(timeout)
	for {
		if g.mu.TryRLock() {
			value := g.value.Load()
			g.mu.RUnlock()
			return value, nil
		}
		if time.Now().After(deadline) {
			return 0, ErrReadTimeout
		}
		time.Sleep(spinInterval)
	}
}

// Write unconditionally overwrites the balance. Writes block until the
// exclusive lock is acquired; they are expected to be short.
func (g *Guard) Write(value int64) {
	g.mu.Lock()
	g.version.Add(1)
	g.value.Store(value)
	g.version.Add(1)
	g.mu.Unlock()
}

// AddAndGet applies delta under the exclusive lock and returns the
// post-update balance. Sign and bounds of delta are the caller's
// responsibility; the guard only guarantees atomicity.
func (g *Guard) AddAndGet(delta int64) int64 {
	g.mu.Lock()
	g.version.Add(1)
	updated := g.value.Load() + delta
	g.value.Store(updated)
	g.version.Add(1)
	g.mu.Unlock()
	return updated
}

// CompareAndSet installs updated only if the current balance equals
// expected, reporting whether it did. This is the primitive for
// "withdraw if sufficient funds": the check and the mutation happen
// under one critical section, so no lost update can slip between them.
func (g *Guard) CompareAndSet(expected, updated int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.value.Load() != expected {
		return false
	}
	g.version.Add(1)
	g.value.Store(updated)
	g.version.Add(1)
	return true
}
