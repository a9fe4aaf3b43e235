package users

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemStore is an in-process Store, used in tests and in deployments that
// don't configure a Postgres repository.
type MemStore struct {
	mu      sync.RWMutex
	byID    map[string]User
	byFold  map[string]string // case-folded name -> id
}

// NewMemStore returns an empty in-memory Store.
func NewMemStore() *MemStore {
	return &MemStore{
		byID:   make(map[string]User),
		byFold: make(map[string]string),
	}
}

func (m *MemStore) GetOrCreateByName(ctx context.Context, name string) (User, error) {
	fold := FoldName(name)

	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.byFold[fold]; ok {
		return m.byID[id], nil
	}

	u := User{ID: uuid.New().String(), Name: name}
	m.byID[u.ID] = u
	m.byFold[fold] = u.ID
	return u, nil
}

// GetOrCreateByID upserts a user keyed by a caller-supplied id (used by
// Connect, spec section 4.C, which is given an id the gateway must honor
// literally rather than re-deriving from the name).
func (m *MemStore) GetOrCreateByID(ctx context.Context, id, name string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u, ok := m.byID[id]; ok {
		return u, nil
	}

	u := User{ID: id, Name: name}
	m.byID[u.ID] = u
	m.byFold[FoldName(name)] = u.ID
	return u, nil
}

func (m *MemStore) GetByID(ctx context.Context, id string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.byID[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *MemStore) Close() error { return nil }
