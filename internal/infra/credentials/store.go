package credentials

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"studio/internal/domain"
)

const (
	BackendBria   = "bria"
	BackendFal    = "fal"
	BackendGoogle = "google"
)

// Source tells where a resolved credential came from.
type Source string

const (
	SourceNone    Source = ""
	SourceSession Source = "session"
	SourceEnv     Source = "env"
)

var ErrUnknownBackend = errors.New("credentials: unknown backend")

var knownBackends = []string{BackendBria, BackendFal, BackendGoogle}

// Store resolves per-backend API keys for one session. A key entered in the
// session always wins over the process environment.
type Store struct {
	mu      sync.RWMutex
	env     map[string]string
	session map[string]string
}

// NewStore copies env so later changes to the caller's map are not observed.
func NewStore(env map[string]string) *Store {
	copied := make(map[string]string, len(env))
	for k, v := range env {
		if v = strings.TrimSpace(v); v != "" {
			copied[k] = v
		}
	}
	return &Store{env: copied, session: map[string]string{}}
}

// Token returns the effective key or a domain.AuthError when none is set.
func (s *Store) Token(backend string) (string, error) {
	key, _ := s.resolve(backend)
	if key == "" {
		return "", domain.MissingCredential(backend)
	}
	return key, nil
}

// Set stores a session key. Blank input clears the session override.
func (s *Store) Set(backend, key string) error {
	if !isKnown(backend) {
		return fmt.Errorf("%w: %s", ErrUnknownBackend, backend)
	}
	key = strings.TrimSpace(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if key == "" {
		delete(s.session, backend)
		return nil
	}
	s.session[backend] = key
	return nil
}

func (s *Store) Clear(backend string) {
	s.mu.Lock()
	delete(s.session, backend)
	s.mu.Unlock()
}

// Sources reports, per backend, where the effective key comes from. Keys
// themselves are never exposed.
func (s *Store) Sources() map[string]Source {
	out := make(map[string]Source, len(knownBackends))
	for _, b := range knownBackends {
		_, src := s.resolve(b)
		out[b] = src
	}
	return out
}

func (s *Store) resolve(backend string) (string, Source) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v := s.session[backend]; v != "" {
		return v, SourceSession
	}
	if v := s.env[backend]; v != "" {
		return v, SourceEnv
	}
	return "", SourceNone
}

func isKnown(backend string) bool {
	for _, b := range knownBackends {
		if b == backend {
			return true
		}
	}
	return false
}
