package course

import (
	"context"
	"sync"
)

// Repository is the source of truth for course aggregates. Save overwrites the
// whole document; there is no partial update.
type Repository interface {
	FindByID(ctx context.Context, id string) (*Course, error)
	Find(ctx context.Context) ([]*Course, error)
	Create(ctx context.Context, c *Course) error
	Save(ctx context.Context, c *Course) error
}

var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository keeps aggregates in process. Every read and write copies the
// document so callers never share memory with the store.
type MemoryRepository struct {
	mu      sync.RWMutex
	courses map[string]*Course
	order   []string
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{courses: make(map[string]*Course)}
}

func (r *MemoryRepository) FindByID(ctx context.Context, id string) (*Course, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.courses[id]
	if !ok {
		return nil, ErrAggregateNotFound
	}
	return c.Clone(), nil
}

func (r *MemoryRepository) Find(ctx context.Context) ([]*Course, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Course, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.courses[id].Clone())
	}
	return out, nil
}

func (r *MemoryRepository) Create(ctx context.Context, c *Course) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.courses[c.ID]; ok {
		return ErrIdentityConflict
	}
	r.courses[c.ID] = c.Clone()
	r.order = append(r.order, c.ID)
	return nil
}

func (r *MemoryRepository) Save(ctx context.Context, c *Course) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.courses[c.ID]; !ok {
		return ErrAggregateNotFound
	}
	r.courses[c.ID] = c.Clone()
	return nil
}
