package memory

import (
	"context"
	"sync"
)

// CredentialStore keeps the session token and its companion keys in process memory.
type CredentialStore struct {
	mu       sync.RWMutex
	tokenKey string
	values   map[string]string
	clears   int
}

// NewCredentialStore creates a store with an optional initial token.
func NewCredentialStore(tokenKey, token string) *CredentialStore {
	s := &CredentialStore{
		tokenKey: tokenKey,
		values:   make(map[string]string),
	}
	if token != "" {
		s.values[tokenKey] = token
	}
	return s
}

func (s *CredentialStore) Get(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[s.tokenKey], nil
}

func (s *CredentialStore) Set(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[s.tokenKey] = token
	return nil
}

// Put stores a companion value (user name, role) cleared together with the token.
func (s *CredentialStore) Put(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Value returns a companion value.
func (s *CredentialStore) Value(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *CredentialStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[string]string)
	s.clears++
	return nil
}

// Clears returns how many times Clear was called.
func (s *CredentialStore) Clears() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clears
}
