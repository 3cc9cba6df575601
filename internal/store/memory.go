package store

import "sync"

// MemoryStore keeps encoded records in a map. Values are stored encoded so
// callers never share mutable state with the store.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]byte)}
}

// Get implements Store.
func (s *MemoryStore) Get(key string, v any) (bool, error) {
	if err := validKey(key); err != nil {
		return false, err
	}

	s.mu.RLock()
	data, ok := s.records[key]
	s.mu.RUnlock()

	if !ok {
		return false, nil
	}
	if err := JSONDecode(data, v); err != nil {
		return false, storeError("decode", key, err)
	}
	return true, nil
}

// Put implements Store.
func (s *MemoryStore) Put(key string, v any) error {
	if err := validKey(key); err != nil {
		return err
	}

	data, err := JSONEncode(v)
	if err != nil {
		return storeError("encode", key, err)
	}

	s.mu.Lock()
	s.records[key] = data
	s.mu.Unlock()
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(key string) error {
	if err := validKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.records, key)
	s.mu.Unlock()
	return nil
}

// Keys returns the stored keys. Order is unspecified.
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	return keys
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}
