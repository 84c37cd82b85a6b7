package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	ErrNotFound = errors.New("storage: blob not found")
	ErrFull     = errors.New("storage: capacity exceeded")
)

// Blob is a stored payload with its content type.
type Blob struct {
	Key       string
	MIME      string
	Data      []byte
	CreatedAt time.Time
}

// MemoryStore keeps generated media (Veo clips) in process memory. Contents
// live as long as the process; nothing is written to disk.
type MemoryStore struct {
	mu       sync.RWMutex
	blobs    map[string]Blob
	used     int64
	maxBytes int64
}

// NewMemoryStore creates a store capped at maxBytes; zero means unbounded.
func NewMemoryStore(maxBytes int64) *MemoryStore {
	return &MemoryStore{blobs: map[string]Blob{}, maxBytes: maxBytes}
}

// Write stores data under the cleaned key and returns that key. Writing an
// existing key replaces it.
func (s *MemoryStore) Write(ctx context.Context, key, mime string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := int64(len(s.blobs[cleanKey].Data))
	next := s.used - prev + int64(len(data))
	if s.maxBytes > 0 && next > s.maxBytes {
		return "", fmt.Errorf("%w: %d of %d bytes", ErrFull, next, s.maxBytes)
	}
	s.blobs[cleanKey] = Blob{Key: cleanKey, MIME: mime, Data: data, CreatedAt: time.Now()}
	s.used = next
	return cleanKey, nil
}

func (s *MemoryStore) Read(ctx context.Context, key string) (Blob, error) {
	if err := ctx.Err(); err != nil {
		return Blob{}, err
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return Blob{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[cleanKey]
	if !ok {
		return Blob{}, ErrNotFound
	}
	return b, nil
}

// DeletePrefix drops every blob under prefix, e.g. all media of a session.
func (s *MemoryStore) DeletePrefix(prefix string) int {
	prefix = strings.TrimSuffix(strings.TrimLeft(prefix, "/"), "/") + "/"
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for k, b := range s.blobs {
		if strings.HasPrefix(k, prefix) {
			s.used -= int64(len(b.Data))
			delete(s.blobs, k)
			removed++
		}
	}
	return removed
}

// Keys lists stored keys under prefix in lexical order.
func (s *MemoryStore) Keys(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k := range s.blobs {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Used reports the stored byte count.
func (s *MemoryStore) Used() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.used
}

// sanitizeKey normalizes a key and prevents escaping the key space.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}
