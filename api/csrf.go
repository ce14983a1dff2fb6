package api

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// csrfStore issues and validates single-origin tokens with a fixed
// lifetime. Validation does not consume the token, a browser session
// reuses it until expiry.
type csrfStore struct {
	ttl time.Duration

	mu     sync.Mutex
	tokens map[string]time.Time
}

func newCSRFStore(ttl time.Duration) *csrfStore {
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &csrfStore{ttl: ttl, tokens: make(map[string]time.Time)}
}

// Issue creates a new token valid for the store lifetime.
func (s *csrfStore) Issue() string {
	buf := make([]byte, 32)
	_, _ = rand.Read(buf)
	token := hex.EncodeToString(buf)

	now := time.Now()

	s.mu.Lock()
	for t, exp := range s.tokens {
		if now.After(exp) {
			delete(s.tokens, t)
		}
	}
	s.tokens[token] = now.Add(s.ttl)
	s.mu.Unlock()

	return token
}

// Validate reports whether token was issued and has not expired.
func (s *csrfStore) Validate(token string) bool {
	if token == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.tokens[token]
	if !ok {
		return false
	}

	if time.Now().After(exp) {
		delete(s.tokens, token)
		return false
	}

	return true
}
