// Package ratelimiter bounds how often a single key (here: an authenticated
// user on the sync channel) may perform an operation, using one token bucket
// per key with idle-entry expiry.
package ratelimiter

import (
	"errors"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"
	"code.cloudfoundry.org/lager/v3"
	"golang.org/x/time/rate"
)

const (
	defaultBucketCapacity      = 20
	defaultExpireDuration      = 10 * time.Minute
	defaultExpireCheckInterval = 30 * time.Second
)

type Limiter interface {
	ExceedsLimit(key string) bool
}

type RateLimiter struct {
	bucketCapacity      int
	maxAmount           int
	validDuration       time.Duration
	expireDuration      time.Duration
	expireCheckInterval time.Duration
	clock               clock.Clock
	logger              lager.Logger

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	limiter   *rate.Limiter
	expiredAt time.Time
}

// DefaultRateLimiter allows maxAmount operations per validDuration per key.
func DefaultRateLimiter(maxAmount int, validDuration time.Duration, clock clock.Clock, logger lager.Logger) *RateLimiter {
	return NewRateLimiter(defaultBucketCapacity, maxAmount, validDuration, defaultExpireDuration, defaultExpireCheckInterval, clock, logger)
}

func NewRateLimiter(bucketCapacity int, maxAmount int, validDuration time.Duration,
	expireDuration time.Duration, expireCheckInterval time.Duration, clock clock.Clock, logger lager.Logger) *RateLimiter {
	rl := &RateLimiter{
		bucketCapacity:      bucketCapacity,
		maxAmount:           maxAmount,
		validDuration:       validDuration,
		expireDuration:      expireDuration,
		expireCheckInterval: expireCheckInterval,
		clock:               clock,
		logger:              logger.Session("rate-limiter"),
		buckets:             make(map[string]*bucket),
	}
	go rl.expiryCycle()
	return rl
}

func (rl *RateLimiter) ExceedsLimit(key string) bool {
	return rl.increment(key) != nil
}

func (rl *RateLimiter) increment(key string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok {
		limit := rate.Limit(float64(rl.maxAmount) / rl.validDuration.Seconds())
		b = &bucket{limiter: rate.NewLimiter(limit, rl.bucketCapacity)}
		rl.buckets[key] = b
	}
	b.expiredAt = rl.clock.Now().Add(rl.expireDuration)

	if !b.limiter.Allow() {
		return errors.New("empty bucket")
	}
	return nil
}

func (rl *RateLimiter) expiryCycle() {
	ticker := rl.clock.NewTicker(rl.expireCheckInterval)
	for range ticker.C() {
		rl.mu.Lock()
		now := rl.clock.Now()
		for key, b := range rl.buckets {
			if now.After(b.expiredAt) {
				rl.logger.Debug("removing-expired-key", lager.Data{"key": key})
				delete(rl.buckets, key)
			}
		}
		rl.mu.Unlock()
	}
}
