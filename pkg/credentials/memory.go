package credentials

import (
	"sync"
	"time"
)

// MemoryStore is an in-process token cache. Expired tokens are evicted
// on read.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]Token
	now    func() time.Time
}

type MemoryOption func(*MemoryStore)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		tokens: make(map[string]Token),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Get(key string) (Token, bool) {
	s.mu.RLock()
	token, ok := s.tokens[key]
	s.mu.RUnlock()

	if !ok {
		return Token{}, false
	}
	if token.Expired(s.now()) {
		s.mu.Lock()
		delete(s.tokens, key)
		s.mu.Unlock()
		return Token{}, false
	}
	return token, true
}

func (s *MemoryStore) Put(key string, token Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[key] = token
	return nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, key)
	return nil
}
