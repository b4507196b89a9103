package memory

import (
	"context"
	"sync"
)

// Repository is the load/save boundary for the persisted index.
type Repository interface {
	Load(ctx context.Context) (*Index, error)
	Save(ctx context.Context, idx *Index) error
}

// Locker is implemented by repositories that can serialize read-modify-write
// cycles across processes. The returned func releases the lock.
type Locker interface {
	Lock(ctx context.Context) (func() error, error)
}

// MemoryRepository keeps the index in process memory.
type MemoryRepository struct {
	mu    sync.RWMutex
	index *Index
	saves int
}

// NewMemoryRepository creates a repository, optionally seeded with an index.
func NewMemoryRepository(seed *Index) *MemoryRepository {
	r := &MemoryRepository{}
	if seed != nil {
		r.index = seed.Clone()
	}
	return r
}

func (r *MemoryRepository) Load(ctx context.Context) (*Index, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.index == nil {
		return nil, ErrIndexNotFound
	}
	if r.index.Version != SchemaVersion {
		return nil, ErrVersionMismatch
	}

	idx := r.index.Clone()
	idx.normalize()
	return idx, nil
}

func (r *MemoryRepository) Save(ctx context.Context, idx *Index) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.index = idx.Clone()
	r.saves++
	return nil
}

// Saves returns how many times Save has been called.
func (r *MemoryRepository) Saves() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.saves
}
