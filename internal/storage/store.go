package storage

import (
	"errors"
	"sync"
)

// ErrKeyNotFound is returned when a key doesn't exist in the store
var ErrKeyNotFound = errors.New("key not found")

// ErrCompareFailed is returned when a compare-and-swap precondition
// doesn't hold
var ErrCompareFailed = errors.New("compare failed")

// RegisterStore is an in-memory key-value store with compare-and-swap,
// used as the linearizable stand-in for the real cluster in tests. Because
// every fake node shares one RegisterStore behind a single mutex, the fake
// cluster is trivially linearizable and a correct checker must accept its
// histories.
type RegisterStore struct {
	mu   sync.Mutex        // Serializes all operations
	data map[string]string // Key-value storage
}

// NewRegisterStore creates an empty store
func NewRegisterStore() *RegisterStore {
	return &RegisterStore{
		data: make(map[string]string),
	}
}

// Get retrieves a value by key
// Returns ErrKeyNotFound if the key doesn't exist
func (s *RegisterStore) Get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, exists := s.data[key]
	if !exists {
		return "", ErrKeyNotFound
	}
	return value, nil
}

// Set stores a value unconditionally, overwriting any existing value
func (s *RegisterStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = value
	return nil
}

// CompareAndSwap atomically replaces the value for key with new iff the
// current value equals old. Returns ErrKeyNotFound if the key doesn't
// exist and ErrCompareFailed if the precondition doesn't hold.
func (s *RegisterStore) CompareAndSwap(key, old, new string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.data[key]
	if !exists {
		return ErrKeyNotFound
	}
	if current != old {
		return ErrCompareFailed
	}
	s.data[key] = new
	return nil
}

// Keys returns all keys in the store
// Order is not guaranteed
func (s *RegisterStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.data))
	for key := range s.data {
		keys = append(keys, key)
	}
	return keys
}
