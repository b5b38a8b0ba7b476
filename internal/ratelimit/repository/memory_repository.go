package repository

import (
	"context"
	"sync"
	"time"

	"investor-portal/internal/ratelimit/domain"
)

type memoryRateLimitRepository struct {
	mu      sync.Mutex
	records map[string]domain.Record
}

func NewMemoryRateLimitRepository() RateLimitRepository {
	return &memoryRateLimitRepository{records: make(map[string]domain.Record)}
}

func (r *memoryRateLimitRepository) Mutate(_ context.Context, key string, fn Mutation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var cur *domain.Record
	if rec, ok := r.records[key]; ok {
		cur = &rec
	}
	next, err := fn(cur)
	if err != nil || next == nil {
		return err
	}
	next.Key = key
	r.records[key] = *next
	return nil
}

func (r *memoryRateLimitRepository) DeleteStale(_ context.Context, cutoff time.Time, limit int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for key, rec := range r.records {
		if limit > 0 && n >= limit {
			break
		}
		if rec.LastRequest.Before(cutoff) {
			delete(r.records, key)
			n++
		}
	}
	return n, nil
}
