package prover

import (
	"context"
	"sync"
)

// Store is the result cache seam. Completed proof sets are immutable, so
// implementations never need invalidation beyond the administrative Delete
// and Clear escape hatches. Get returns (nil, nil) on a miss.
type Store interface {
	Get(ctx context.Context, txid string) (*ProofSet, error)
	Put(ctx context.Context, proof *ProofSet) error
	Delete(ctx context.Context, txid string) error
	Clear(ctx context.Context) error
}

// memoryStore is the default process-local store.
type memoryStore struct {
	mu     sync.RWMutex
	proofs map[string]*ProofSet
}

// NewMemoryStore returns an in-memory Store with process-lifetime retention.
func NewMemoryStore() Store {
	return &memoryStore{proofs: make(map[string]*ProofSet)}
}

func (m *memoryStore) Get(_ context.Context, txid string) (*ProofSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.proofs[txid], nil
}

func (m *memoryStore) Put(_ context.Context, proof *ProofSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.proofs[proof.TxID.String()] = proof
	return nil
}

func (m *memoryStore) Delete(_ context.Context, txid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.proofs, txid)
	return nil
}

func (m *memoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.proofs = make(map[string]*ProofSet)
	return nil
}
