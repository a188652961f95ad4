package session

import (
	"context"
	"crypto/rand"
	"log"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Kind separates the two independent token namespaces.
type Kind int

const (
	KindUser Kind = iota
	KindAdmin
)

const tokenPrefix = "atk-"

// DefaultSweepInterval is how often expired sessions are reaped.
const DefaultSweepInterval = 5 * time.Minute

// Session binds an opaque token to a subject until it expires, is
// logged out, or is evicted by the device cap.
type Session struct {
	Token      string
	SubjectID  string
	Kind       Kind
	DeviceInfo string
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

func (s Session) expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Store holds all live sessions in process memory. USER and ADMIN
// tokens live in separate maps; a per-user index of active tokens in
// issue order enforces the device cap with deterministic FIFO eviction.
// Losing the store on restart invalidates every session, which is
// acceptable for this system.
type Store struct {
	tokenTTL   time.Duration
	maxDevices int

	users  *shard
	admins *shard

	// now is swappable for tests.
	now func() time.Time
}

func NewStore(tokenTTL time.Duration, maxDevicesPerUser int) *Store {
	return &Store{
		tokenTTL:   tokenTTL,
		maxDevices: maxDevicesPerUser,
		users:      newShard(),
		admins:     newShard(),
		now:        time.Now,
	}
}

func (s *Store) shardFor(kind Kind) *shard {
	if kind == KindAdmin {
		return s.admins
	}
	return s.users
}

// Issue creates a session for the subject and returns its token. For
// USER subjects exceeding the device cap, the least-recently-issued
// token for that user is evicted. The count check and the insertion
// happen under the shard lock, so concurrent logins for one user
// cannot overshoot the cap.
func (s *Store) Issue(subjectID string, kind Kind, deviceInfo string) string {
	now := s.now()
	sess := Session{
		Token:     newToken(now),
		SubjectID: subjectID,
		Kind:      kind,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.tokenTTL),
	}
	if kind == KindUser {
		sess.DeviceInfo = deviceInfo
	}
	limit := 0
	if kind == KindUser {
		limit = s.maxDevices
	}
	if evicted := s.shardFor(kind).insert(sess, limit); evicted != "" {
		log.Printf("session: device cap reached for subject %s, evicted oldest token", subjectID)
	}
	return sess.Token
}

// Validate resolves a token to its subject. Expired tokens are removed
// on sight. A missing or expired token both surface as "no valid
// session"; callers are not told which.
func (s *Store) Validate(token string, kind Kind) (string, bool) {
	if token == "" || !strings.HasPrefix(token, tokenPrefix) {
		return "", false
	}
	sh := s.shardFor(kind)
	sess, ok := sh.get(token)
	if !ok {
		return "", false
	}
	if sess.expired(s.now()) {
		sh.remove(token)
		return "", false
	}
	return sess.SubjectID, true
}

// Remove destroys a token in both namespaces. Removing a token that is
// already gone is a no-op.
func (s *Store) Remove(token string) {
	s.users.remove(token)
	s.admins.remove(token)
}

// RemoveAllForSubject ends every live session a subject holds in the
// given namespace. Used when access is revoked, so the tokens die with
// it instead of lingering until expiry.
func (s *Store) RemoveAllForSubject(subjectID string, kind Kind) int {
	return s.shardFor(kind).removeAllForSubject(subjectID)
}

// Sweep drops every expired session and reports how many were removed.
// Each shard is swept one entry at a time so Validate is never blocked
// for longer than a single entry check.
func (s *Store) Sweep() int {
	now := s.now()
	return s.users.sweep(now) + s.admins.sweep(now)
}

// ActiveCount reports the number of live tokens a subject holds.
func (s *Store) ActiveCount(subjectID string, kind Kind) int {
	return s.shardFor(kind).countFor(subjectID)
}

// Run sweeps at the given interval until ctx is cancelled. It is meant
// to run on its own goroutine, independent of request handling.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.Sweep(); removed > 0 {
				log.Printf("session: swept %d expired sessions", removed)
			}
		}
	}
}

// newToken builds an opaque token. ULIDs are unique and ordered by
// issue time, which makes eviction order auditable from the token
// alone.
func newToken(now time.Time) string {
	id := ulid.MustNew(ulid.Timestamp(now), rand.Reader)
	return tokenPrefix + strings.ToLower(id.String())
}
