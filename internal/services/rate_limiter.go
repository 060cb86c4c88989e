package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"trendscope-pipeline/internal/models"
	"trendscope-pipeline/internal/pkg/logger"
)

// RateLimiter counts accepted commands per requester over a rolling
// window. The counter is read before scheduling and incremented only
// once a job has actually been accepted.
type RateLimiter struct {
	cache  CacheClient
	limit  int
	ttl    time.Duration
	logger *logger.Logger
}

func NewRateLimiter(cache CacheClient, limit int, ttl time.Duration, log *logger.Logger) *RateLimiter {
	return &RateLimiter{cache: cache, limit: limit, ttl: ttl, logger: log}
}

// Check returns a rate-limit error when the requester has exhausted the
// window. Cache read failures fail open: a broken cache should not take
// the command surface down.
func (r *RateLimiter) Check(ctx context.Context, userID string) error {
	value, found, err := r.cache.Get(ctx, RateLimitKey(userID))
	if err != nil {
		r.logger.WithError(err).Warn("rate limit read failed, allowing request")
		return nil
	}
	if !found {
		return nil
	}

	count, err := strconv.Atoi(value)
	if err != nil {
		r.logger.Warn("rate limit counter corrupt, allowing request", "value", value)
		return nil
	}

	if count >= r.limit {
		return models.NewRateLimitError(
			"RATE_LIMIT_EXCEEDED",
			fmt.Sprintf("Rate limit exceeded. Maximum %d requests per hour.", r.limit),
		)
	}
	return nil
}

// Record charges one accepted command against the requester's window.
func (r *RateLimiter) Record(ctx context.Context, userID string) {
	if _, err := r.cache.Increment(ctx, RateLimitKey(userID), r.ttl); err != nil {
		r.logger.WithError(err).Warn("rate limit increment failed")
	}
}
