package source

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore is a process-local Store. Each operation is atomic on its own;
// a Get followed by an Add is not.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// Get returns a copy of the record for id.
func (s *MemoryStore) Get(_ context.Context, id string) (Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, false, nil
	}
	return rec.clone(), true, nil
}

// Add stores rec under id, replacing any previous record.
func (s *MemoryStore) Add(_ context.Context, id string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[id] = rec.clone()
	return nil
}

// Delete removes the record for id. Deleting a missing id is a no-op.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, id)
	return nil
}

func (r Record) clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}
