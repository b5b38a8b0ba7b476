package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"investor-portal/internal/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "ratelimit:"
	redisIndexKey  = "ratelimit:index"
	maxTxRetries   = 100
)

var ErrTooMuchContention = errors.New("rate limit record contended")

// redisRateLimitRepository keeps one hash per principal and a sorted set of
// principals scored by last request, used by DeleteStale.
type redisRateLimitRepository struct {
	client    *redis.Client
	retention time.Duration
}

// NewRedisRateLimitRepository expires idle records after retention on top of
// the scheduled sweep.
func NewRedisRateLimitRepository(client *redis.Client, retention time.Duration) RateLimitRepository {
	return &redisRateLimitRepository{client: client, retention: retention}
}

func (r *redisRateLimitRepository) Mutate(ctx context.Context, key string, fn Mutation) error {
	hashKey := redisKeyPrefix + key

	txf := func(tx *redis.Tx) error {
		vals, err := tx.HGetAll(ctx, hashKey).Result()
		if err != nil {
			return err
		}
		cur, err := decodeHash(key, vals)
		if err != nil {
			return err
		}

		next, err := fn(cur)
		if err != nil || next == nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, hashKey,
				"count", next.Count,
				"window_start", next.WindowStart.UnixMilli(),
				"last_request", next.LastRequest.UnixMilli())
			if r.retention > 0 {
				pipe.PExpire(ctx, hashKey, r.retention)
			}
			pipe.ZAdd(ctx, redisIndexKey, redis.Z{Score: float64(next.LastRequest.UnixMilli()), Member: key})
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := r.client.Watch(ctx, txf, hashKey)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrTooMuchContention
}

func decodeHash(key string, vals map[string]string) (*domain.Record, error) {
	if len(vals) == 0 {
		return nil, nil
	}
	count, err := strconv.Atoi(vals["count"])
	if err != nil {
		return nil, fmt.Errorf("decode count for %s: %w", key, err)
	}
	start, err := strconv.ParseInt(vals["window_start"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode window_start for %s: %w", key, err)
	}
	last, err := strconv.ParseInt(vals["last_request"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode last_request for %s: %w", key, err)
	}
	return &domain.Record{
		Key:         key,
		Count:       count,
		WindowStart: time.UnixMilli(start),
		LastRequest: time.UnixMilli(last),
	}, nil
}

func (r *redisRateLimitRepository) DeleteStale(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	keys, err := r.client.ZRangeByScore(ctx, redisIndexKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   "(" + strconv.FormatInt(cutoff.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil || len(keys) == 0 {
		return 0, err
	}

	hashKeys := make([]string, len(keys))
	members := make([]interface{}, len(keys))
	for i, k := range keys {
		hashKeys[i] = redisKeyPrefix + k
		members[i] = k
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, hashKeys...)
	removed := pipe.ZRem(ctx, redisIndexKey, members...)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return int(removed.Val()), nil
}
