package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	updatedomain "investor-portal/internal/update/domain"

	"github.com/google/uuid"
)

type memoryUpdateRepository struct {
	mu      sync.RWMutex
	updates map[string]updatedomain.Update
}

func NewMemoryUpdateRepository() UpdateRepository {
	return &memoryUpdateRepository{updates: make(map[string]updatedomain.Update)}
}

func (r *memoryUpdateRepository) Create(_ context.Context, u *updatedomain.Update) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	r.updates[u.ID] = *u
	return nil
}

func (r *memoryUpdateRepository) Get(_ context.Context, id string) (*updatedomain.Update, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.updates[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *memoryUpdateRepository) RecordDelivery(_ context.Context, id string, d updatedomain.Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.updates[id]
	if !ok {
		return fmt.Errorf("update %s not found", id)
	}
	u.EmailSent, u.SentCount, u.FailedCount = d.EmailSent, d.Sent, d.Failed
	r.updates[id] = u
	return nil
}

func (r *memoryUpdateRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.updates, id)
	return nil
}

func (r *memoryUpdateRepository) ListRecent(_ context.Context, limit int) ([]*updatedomain.Update, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*updatedomain.Update, 0, len(r.updates))
	for _, u := range r.updates {
		u := u
		out = append(out, &u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
