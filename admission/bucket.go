package admission

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// BucketLimiter caps total throughput across all clients with a token bucket.
// It protects the process from floods spread over many client keys.
type BucketLimiter struct {
	limiter *rate.Limiter
	timeNow func() time.Time
}

// NewBucketLimiter allows unitsPerSecond sustained with bursts up to burst units
func NewBucketLimiter(unitsPerSecond float64, burst int) *BucketLimiter {
	return NewBucketLimiterWithClock(unitsPerSecond, burst, time.Now)
}

// NewBucketLimiterWithClock creates a bucket limiter with injectable clock (for testing)
func NewBucketLimiterWithClock(unitsPerSecond float64, burst int, timeNow func() time.Time) *BucketLimiter {
	return &BucketLimiter{
		limiter: rate.NewLimiter(rate.Limit(unitsPerSecond), burst),
		timeNow: timeNow,
	}
}

// Evaluate implements Gate
func (b *BucketLimiter) Evaluate(_ context.Context, _ Request, cost int) (Decision, error) {
	if !b.limiter.AllowN(b.timeNow(), cost) {
		return Deny("global rate limit exceeded"), nil
	}
	return Allowed, nil
}
