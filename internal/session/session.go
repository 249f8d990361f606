// Package session holds transaction drafts awaiting confirmation. Drafts are
// keyed by an opaque token and expire after a TTL so an abandoned
// confirmation never records anything.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"finanzas/internal/core"
	"finanzas/internal/log"
)

const DefaultTTL = 10 * time.Minute

type entry struct {
	draft     core.TransactionCandidate
	expiresAt time.Time
}

type Store struct {
	ttl    time.Duration
	clock  core.Clock
	logger *log.Logger

	mu      sync.Mutex
	entries map[string]entry
}

func NewStore(ttl time.Duration, clock core.Clock, logger *log.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &Store{
		ttl:     ttl,
		clock:   clock,
		logger:  logger,
		entries: make(map[string]entry),
	}
}

// Put stores a draft and returns its confirmation token.
func (s *Store) Put(draft core.TransactionCandidate) string {
	token := uuid.NewString()
	s.mu.Lock()
	s.entries[token] = entry{draft: draft, expiresAt: s.clock.Now().Add(s.ttl)}
	s.mu.Unlock()
	return token
}

// Take removes and returns the draft for a token. A token can be taken once;
// expired or unknown tokens report false.
func (s *Store) Take(token string) (core.TransactionCandidate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[token]
	if !ok {
		return core.TransactionCandidate{}, false
	}
	delete(s.entries, token)
	if s.clock.Now().After(e.expiresAt) {
		return core.TransactionCandidate{}, false
	}
	return e.draft, true
}

// Discard drops a draft without recording it.
func (s *Store) Discard(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[token]; !ok {
		return false
	}
	delete(s.entries, token)
	return true
}

// Len reports live drafts, expired ones included until evicted.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Run evicts expired drafts periodically until the context ends.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.evictExpired(); n > 0 {
				s.logger.Debug("expired drafts evicted", "count", n)
			}
		}
	}
}

func (s *Store) evictExpired() int {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for token, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, token)
			n++
		}
	}
	return n
}
