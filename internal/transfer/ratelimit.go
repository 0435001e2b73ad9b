package transfer

import (
	"context"
	"time"

	"tng-backend/internal/ledger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RateLimiter caps transfers per sender in a fixed window. The counter
// lives in Redis so every server instance sees the same window; an
// in-process map cannot be shared across instances.
type RateLimiter struct {
	Rdb    *redis.Client
	Limit  int64
	Window time.Duration
}

// Allow increments the sender's window counter and rejects with
// RATE_LIMITED once the cap is hit. Redis faults fail open: rate limiting
// protects throughput, it is not a correctness invariant.
func (r *RateLimiter) Allow(ctx context.Context, userID uuid.UUID) error {
	key := "ratelimit:transfer:" + userID.String()
	n, err := r.Rdb.Incr(ctx, key).Result()
	if err != nil {
		log.Warn().Err(err).Msg("rate limit counter unavailable, allowing request")
		return nil
	}
	if n == 1 {
		if err := r.Rdb.Expire(ctx, key, r.Window).Err(); err != nil {
			log.Warn().Err(err).Msg("rate limit expiry not set")
		}
	}
	if n > r.Limit {
		return ledger.E(ledger.CodeRateLimited, "too many transfers, slow down")
	}
	return nil
}
