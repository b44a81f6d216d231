package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/layer-3/vaultgate/core"
	"github.com/layer-3/vaultgate/ports"
)

// MemoryStore is an in-memory implementation of the IdentityStore interface
type MemoryStore struct {
	byID      map[int64]*core.Identity
	byAddress map[string]int64
	lastID    int64
	mu        sync.RWMutex
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() ports.IdentityStore {
	return &MemoryStore{
		byID:      make(map[int64]*core.Identity),
		byAddress: make(map[string]int64),
	}
}

// FindByAddress looks an identity up by its normalized address
func (s *MemoryStore) FindByAddress(ctx context.Context, address string) (*core.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byAddress[address]
	if !ok {
		return nil, core.ErrNotFound
	}
	return s.byID[id].Clone(), nil
}

// Create stores a new identity and assigns its id
func (s *MemoryStore) Create(ctx context.Context, identity *core.Identity) (*core.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byAddress[identity.Address]; exists {
		return nil, fmt.Errorf("identity %s: %w", identity.Address, core.ErrConflict)
	}

	s.lastID++
	stored := identity.Clone()
	stored.ID = s.lastID
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}

	s.byID[stored.ID] = stored
	s.byAddress[stored.Address] = stored.ID

	return stored.Clone(), nil
}

// UpdateNonce replaces the nonce of the identity with the given id
func (s *MemoryStore) UpdateNonce(ctx context.Context, id int64, nonce uint64) (*core.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.byID[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	identity.Nonce = nonce

	return identity.Clone(), nil
}
