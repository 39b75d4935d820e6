// Package ratelimit wraps golang.org/x/time/rate into the token-bucket
// shape §4.1 specifies for per-job crawl throttling: capacity equal to
// maxRequestsPerMinute, refilling at maxRequestsPerMinute/60 per second.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Bucket rate-limits a single crawl job's outbound requests. One Bucket is
// constructed per job and shared across that job's bounded worker pool.
type Bucket struct {
	limiter *rate.Limiter
}

// New returns a Bucket configured for maxPerMinute requests per minute.
// maxPerMinute must be in 1..300 per §4.1; callers validate that range
// before construction.
func New(maxPerMinute int) *Bucket {
	if maxPerMinute <= 0 {
		maxPerMinute = 1
	}
	ratePerSecond := rate.Limit(float64(maxPerMinute) / 60.0)
	return &Bucket{limiter: rate.NewLimiter(ratePerSecond, maxPerMinute)}
}

// Wait blocks until a token is available or ctx is done.
func (b *Bucket) Wait(ctx context.Context) error {
	return b.limiter.Wait(ctx)
}
