package statestore

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyPending guards the in-memory store against unbounded growth
// when states are requested but never consumed.
var ErrTooManyPending = errors.New("too many pending oauth states")

const defaultMaxPending = 10000

// MemoryStore keeps pending anti-CSRF states in a process-local map with
// per-state expiry and a hard cap. Suitable for a single instance only:
// multi-instance deployments need the redis store.
type MemoryStore struct {
	mu         sync.Mutex
	pending    map[string]time.Time // state -> expiry
	maxPending int
}

func NewMemoryStore(maxPending int) *MemoryStore {
	if maxPending <= 0 {
		maxPending = defaultMaxPending
	}
	return &MemoryStore{
		pending:    make(map[string]time.Time),
		maxPending: maxPending,
	}
}

// Save marks the state pending for ttl. Expired entries are swept lazily on
// every save, and the store refuses new states once the cap is reached.
func (s *MemoryStore) Save(ctx context.Context, state string, ttl time.Duration) error {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for st, expiry := range s.pending {
		if expiry.Before(now) {
			delete(s.pending, st)
		}
	}

	if len(s.pending) >= s.maxPending {
		return ErrTooManyPending
	}

	s.pending[state] = now.Add(ttl)
	return nil
}

// Consume removes the state whether or not it was pending and reports
// whether it was found unexpired. A state can never be consumed twice.
func (s *MemoryStore) Consume(ctx context.Context, state string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, ok := s.pending[state]
	delete(s.pending, state)

	return ok && expiry.After(time.Now()), nil
}

// Len reports the number of pending states, expired included
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
