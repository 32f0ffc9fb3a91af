package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// RateLimiter for chat messages. Counts in a shared Redis window and falls
// back to a per-process token bucket when Redis is absent or failing.
type RateLimiter struct {
	redis  *redis.Client
	limit  int
	window time.Duration
	now    func() time.Time

	mu        sync.Mutex
	local     map[uuid.UUID]*localBucket
	lastSweep time.Time
}

type localBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(redisClient *redis.Client, limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 30
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		redis:  redisClient,
		limit:  limit,
		window: window,
		now:    time.Now,
		local:  make(map[uuid.UUID]*localBucket),
	}
}

// Allow checks if user can send message
func (rl *RateLimiter) Allow(ctx context.Context, userID uuid.UUID) bool {
	if rl.redis == nil {
		return rl.allowLocal(userID)
	}

	key := fmt.Sprintf("ratelimit:chat:%s", userID)

	count, err := rl.redis.Incr(ctx, key).Result()
	if err != nil {
		log.Warn().Err(err).Msg("Chat rate limiter falling back to local bucket")
		return rl.allowLocal(userID)
	}

	if count == 1 {
		rl.redis.Expire(ctx, key, rl.window)
	}

	return count <= int64(rl.limit)
}

func (rl *RateLimiter) allowLocal(userID uuid.UUID) bool {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.sweep(now)
	b, ok := rl.local[userID]
	if !ok {
		every := rl.window / time.Duration(rl.limit)
		b = &localBucket{limiter: rate.NewLimiter(rate.Every(every), rl.limit)}
		rl.local[userID] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// sweep drops buckets idle for a full window. Such a bucket has refilled
// completely, so a fresh one behaves the same. Caller holds rl.mu.
func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < rl.window {
		return
	}
	rl.lastSweep = now
	for id, b := range rl.local {
		if now.Sub(b.lastSeen) >= rl.window {
			delete(rl.local, id)
		}
	}
}
