package usecase

import (
	"context"
	"time"

	"investor-portal/internal/ratelimit/domain"
	"investor-portal/internal/ratelimit/repository"
	"investor-portal/pkg/metrics"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

const (
	DefaultRetention    = 24 * time.Hour
	DefaultCleanupBatch = 500
)

// Limiter is a fixed-window counter per principal. It fails open: a store
// error admits the request with a full allowance.
type Limiter struct {
	repo         repository.RateLimitRepository
	metrics      *metrics.Metrics
	logger       kitlog.Logger
	now          func() time.Time
	retention    time.Duration
	cleanupBatch int
}

type Option func(*Limiter)

func WithClock(now func() time.Time) Option { return func(l *Limiter) { l.now = now } }
func WithMetrics(m *metrics.Metrics) Option { return func(l *Limiter) { l.metrics = m } }

func WithRetention(retention time.Duration, batch int) Option {
	return func(l *Limiter) {
		if retention > 0 {
			l.retention = retention
		}
		if batch > 0 {
			l.cleanupBatch = batch
		}
	}
}

func NewLimiter(repo repository.RateLimitRepository, logger kitlog.Logger, opts ...Option) *Limiter {
	l := &Limiter{
		repo:         repo,
		logger:       kitlog.With(logger, "component", "ratelimit"),
		now:          time.Now,
		retention:    DefaultRetention,
		cleanupBatch: DefaultCleanupBatch,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Limiter) Check(ctx context.Context, principal string, max int, window time.Duration) domain.Decision {
	now := l.now()

	var decision domain.Decision
	err := l.repo.Mutate(ctx, principal, func(cur *domain.Record) (*domain.Record, error) {
		var next *domain.Record
		next, decision = domain.Apply(cur, principal, now, max, window)
		return next, nil
	})
	if err != nil {
		level.Error(l.logger).Log("msg", "rate limit check failed, allowing request", "principal", principal, "err", err)
		decision = domain.Decision{Allowed: true, Remaining: max, ResetAt: now.Add(window)}
	}

	l.metrics.RateLimitDecision(decision.Allowed)
	return decision
}

// Cleanup removes one page of records idle for longer than the retention.
func (l *Limiter) Cleanup(ctx context.Context) (int, error) {
	n, err := l.repo.DeleteStale(ctx, l.now().Add(-l.retention), l.cleanupBatch)
	if err != nil {
		return 0, err
	}
	l.metrics.CleanupDeleted(n)
	return n, nil
}
