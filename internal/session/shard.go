package session

import (
	"sync"
	"time"
)

// shard is one token namespace: token → session plus a per-subject
// index of tokens in issue order. All mutation happens under mu;
// critical sections touch at most a handful of entries.
type shard struct {
	mu        sync.RWMutex
	sessions  map[string]Session
	bySubject map[string][]string
}

func newShard() *shard {
	return &shard{
		sessions:  make(map[string]Session),
		bySubject: make(map[string][]string),
	}
}

func (sh *shard) get(token string) (Session, bool) {
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	sess, ok := sh.sessions[token]
	return sess, ok
}

// insert stores the session and, when limit > 0 and the subject now
// holds more than limit tokens, evicts the oldest one. Returns the
// evicted token, if any.
func (sh *shard) insert(sess Session, limit int) string {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.sessions[sess.Token] = sess
	tokens := append(sh.bySubject[sess.SubjectID], sess.Token)
	if limit > 0 && len(tokens) > limit {
		oldest := tokens[0]
		tokens = tokens[1:]
		delete(sh.sessions, oldest)
		sh.bySubject[sess.SubjectID] = tokens
		return oldest
	}
	sh.bySubject[sess.SubjectID] = tokens
	return ""
}

func (sh *shard) remove(token string) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.removeLocked(token)
}

func (sh *shard) removeLocked(token string) {
	sess, ok := sh.sessions[token]
	if !ok {
		return
	}
	delete(sh.sessions, token)
	tokens := sh.bySubject[sess.SubjectID]
	for i, t := range tokens {
		if t == token {
			tokens = append(tokens[:i], tokens[i+1:]...)
			break
		}
	}
	if len(tokens) == 0 {
		delete(sh.bySubject, sess.SubjectID)
	} else {
		sh.bySubject[sess.SubjectID] = tokens
	}
}

func (sh *shard) removeAllForSubject(subjectID string) int {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	tokens := sh.bySubject[subjectID]
	for _, token := range tokens {
		delete(sh.sessions, token)
	}
	delete(sh.bySubject, subjectID)
	return len(tokens)
}

// sweep removes expired sessions. Candidates are collected under the
// read lock, then each is re-checked and removed in its own short
// write-lock section so concurrent validates stay responsive.
func (sh *shard) sweep(now time.Time) int {
	sh.mu.RLock()
	var candidates []string
	for token, sess := range sh.sessions {
		if sess.expired(now) {
			candidates = append(candidates, token)
		}
	}
	sh.mu.RUnlock()

	removed := 0
	for _, token := range candidates {
		sh.mu.Lock()
		if sess, ok := sh.sessions[token]; ok && sess.expired(now) {
			sh.removeLocked(token)
			removed++
		}
		sh.mu.Unlock()
	}
	return removed
}

func (sh *shard) countFor(subjectID string) int {
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return len(sh.bySubject[subjectID])
}
