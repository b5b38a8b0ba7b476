package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"investor-portal/internal/ratelimit/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisRepo(t *testing.T) (RateLimitRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisRateLimitRepository(client, 24*time.Hour), mr
}

func admit(repo RateLimitRepository, key string, now time.Time, max int) (bool, error) {
	var d domain.Decision
	err := repo.Mutate(context.Background(), key, func(cur *domain.Record) (*domain.Record, error) {
		var next *domain.Record
		next, d = domain.Apply(cur, key, now, max, time.Hour)
		return next, nil
	})
	return d.Allowed, err
}

func TestRedisRepository_RoundTrip(t *testing.T) {
	repo, mr := newRedisRepo(t)
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		ok, err := admit(repo, "admin", now, 2)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := admit(repo, "admin", now, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, "2", mr.HGet("ratelimit:admin", "count"))
	assert.True(t, mr.TTL("ratelimit:admin") > 0)
}

func TestRedisRepository_ConcurrentSingleSlot(t *testing.T) {
	repo, _ := newRedisRepo(t)
	now := time.Now()

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := admit(repo, "admin", now, 1)
			if err == nil && ok {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), admitted.Load())
}

func TestRedisRepository_DeleteStale(t *testing.T) {
	repo, mr := newRedisRepo(t)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := admit(repo, "old-1", base, 5)
	require.NoError(t, err)
	_, err = admit(repo, "old-2", base.Add(time.Minute), 5)
	require.NoError(t, err)
	_, err = admit(repo, "fresh", base.Add(48*time.Hour), 5)
	require.NoError(t, err)

	n, err := repo.DeleteStale(context.Background(), base.Add(24*time.Hour), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = repo.DeleteStale(context.Background(), base.Add(24*time.Hour), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.False(t, mr.Exists("ratelimit:old-1"))
	assert.False(t, mr.Exists("ratelimit:old-2"))
	assert.True(t, mr.Exists("ratelimit:fresh"))
}
