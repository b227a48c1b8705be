package store

import (
	"context"
	"sort"
	"strconv"
	"sync"
)

// MemoryStore is an in-process Store used in tests and for local
// development without a configured backend.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]Record
	seq   uint64
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: map[string]Record{}}
}

func (s *MemoryStore) Get(_ context.Context, key string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.items[key]
	if !ok {
		return Record{}, ErrNotFound
	}
	return copyRecord(rec), nil
}

func (s *MemoryStore) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.write(key, value)
	return nil
}

func (s *MemoryStore) PutIf(_ context.Context, key string, value []byte, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, exists := s.items[key]
	if version == "" {
		if exists {
			return ErrConflict
		}
	} else if !exists || cur.Version != version {
		return ErrConflict
	}
	s.write(key, value)
	return nil
}

func (s *MemoryStore) List(_ context.Context, prefix string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for key, rec := range s.items {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			out = append(out, copyRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// write assumes s.mu is held.
func (s *MemoryStore) write(key string, value []byte) {
	s.seq++
	v := make([]byte, len(value))
	copy(v, value)
	s.items[key] = Record{Key: key, Value: v, Version: strconv.FormatUint(s.seq, 10)}
}

func copyRecord(rec Record) Record {
	v := make([]byte, len(rec.Value))
	copy(v, rec.Value)
	rec.Value = v
	return rec
}
