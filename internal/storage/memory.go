package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryGrantStore implementa GrantStore sobre un map con RWMutex.
// Referencia para tests y desarrollo; producción usa Redis o Postgres.
type MemoryGrantStore struct {
	mu     sync.RWMutex
	grants map[string]*PersistedGrant
}

func NewMemoryGrantStore() *MemoryGrantStore {
	return &MemoryGrantStore{grants: make(map[string]*PersistedGrant)}
}

func (s *MemoryGrantStore) Store(ctx context.Context, grant *PersistedGrant) error {
	cp := *grant
	s.mu.Lock()
	s.grants[grant.Key] = &cp
	s.mu.Unlock()
	return nil
}

func (s *MemoryGrantStore) Get(ctx context.Context, key string) (*PersistedGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.grants[key]
	if !ok {
		return nil, nil
	}
	cp := *g
	return &cp, nil
}

// Take borra y retorna bajo el mismo lock: dos llamadas concurrentes sobre la
// misma key nunca reciben el grant las dos.
func (s *MemoryGrantStore) Take(ctx context.Context, key string) (*PersistedGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grants[key]
	if !ok {
		return nil, nil
	}
	delete(s.grants, key)
	cp := *g
	return &cp, nil
}

func (s *MemoryGrantStore) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.grants, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryGrantStore) GetAll(ctx context.Context, filter Filter) ([]*PersistedGrant, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*PersistedGrant
	for _, g := range s.grants {
		if filter.Matches(g) {
			cp := *g
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryGrantStore) RemoveAll(ctx context.Context, filter Filter) error {
	if err := filter.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, g := range s.grants {
		if filter.Matches(g) {
			delete(s.grants, k)
		}
	}
	return nil
}

func (s *MemoryGrantStore) RemoveExpired(ctx context.Context) (int, error) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, g := range s.grants {
		if g.Expired(now) {
			delete(s.grants, k)
			n++
		}
	}
	return n, nil
}
