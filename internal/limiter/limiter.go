// Package limiter provides the pre-credential login throttle. The redis
// variant is shared across processes; the local variant is a per-process
// fallback for deployments without redis.
package limiter

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

var errRedisUnavailable = errors.New("throttle redis unavailable")

// RedisThrottle counts attempts per identifier and per source IP inside a
// rolling window using INCR+EXPIRE.
type RedisThrottle struct {
	redis       *redis.Client
	maxAttempts int64
	window      time.Duration
}

func NewRedisThrottle(redisClient *redis.Client, maxAttempts int, window time.Duration) *RedisThrottle {
	return &RedisThrottle{
		redis:       redisClient,
		maxAttempts: int64(maxAttempts),
		window:      window,
	}
}

func (t *RedisThrottle) Allow(ctx context.Context, identifier, ip string) (bool, error) {
	if ok, err := t.allowKey(ctx, "login:id:"+identifier); err != nil || !ok {
		return ok, err
	}
	if ip != "" {
		return t.allowKey(ctx, "login:ip:"+ip)
	}
	return true, nil
}

func (t *RedisThrottle) allowKey(ctx context.Context, key string) (bool, error) {
	count, err := t.redis.Incr(ctx, key).Result()
	if err != nil {
		return false, errors.Wrapf(errRedisUnavailable, "%v", err)
	}
	if count == 1 {
		if err := t.redis.Expire(ctx, key, t.window).Err(); err != nil {
			return false, errors.Wrapf(errRedisUnavailable, "%v", err)
		}
	}
	return count <= t.maxAttempts, nil
}

// LocalThrottle keeps a token bucket per identifier in process memory.
type LocalThrottle struct {
	limit    rate.Limit
	burst    int
	buckets  map[string]*rate.Limiter
	lastSeen map[string]time.Time
	lock     sync.Mutex
}

func NewLocalThrottle(perMinute int) *LocalThrottle {
	return &LocalThrottle{
		limit:    rate.Limit(float64(perMinute) / 60.0),
		burst:    perMinute,
		buckets:  make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
	}
}

func (t *LocalThrottle) Allow(_ context.Context, identifier, _ string) (bool, error) {
	t.lock.Lock()
	defer t.lock.Unlock()

	bucket, ok := t.buckets[identifier]
	if !ok {
		bucket = rate.NewLimiter(t.limit, t.burst)
		t.buckets[identifier] = bucket
	}
	t.lastSeen[identifier] = time.Now()
	t.sweep()
	return bucket.Allow(), nil
}

// sweep drops buckets idle for over an hour; called under the lock.
func (t *LocalThrottle) sweep() {
	if len(t.buckets) < 10000 {
		return
	}
	cutoff := time.Now().Add(-time.Hour)
	for id, seen := range t.lastSeen {
		if seen.Before(cutoff) {
			delete(t.buckets, id)
			delete(t.lastSeen, id)
		}
	}
}
