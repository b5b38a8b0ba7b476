package repository

import (
	"context"
	"time"

	"investor-portal/internal/ratelimit/domain"
)

// Mutation computes the next record from the stored one (nil when absent).
// Returning nil leaves the store untouched. It may run more than once.
type Mutation func(cur *domain.Record) (*domain.Record, error)

type RateLimitRepository interface {
	// Mutate runs fn as one atomic read-modify-write on key.
	Mutate(ctx context.Context, key string, fn Mutation) error
	// DeleteStale removes up to limit records whose last request is before
	// cutoff and reports how many were removed.
	DeleteStale(ctx context.Context, cutoff time.Time, limit int) (int, error)
}
