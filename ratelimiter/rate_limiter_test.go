package ratelimiter_test

import (
	"time"

	"github.com/tarikbc/accountmonitor/ratelimiter"

	"code.cloudfoundry.org/clock/fakeclock"
	"code.cloudfoundry.org/lager/v3/lagertest"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("RateLimiter", func() {
	var (
		limiter *ratelimiter.RateLimiter
		fclock  *fakeclock.FakeClock
	)

	BeforeEach(func() {
		fclock = fakeclock.NewFakeClock(time.Now())
		logger := lagertest.NewTestLogger("rate-limiter-test")
		// capacity 2, refill 1 per second
		limiter = ratelimiter.NewRateLimiter(2, 1, time.Second, 10*time.Minute, 30*time.Second, fclock, logger)
	})

	It("allows requests within the bucket capacity", func() {
		Expect(limiter.ExceedsLimit("user-1")).To(BeFalse())
		Expect(limiter.ExceedsLimit("user-1")).To(BeFalse())
	})

	It("rejects requests once the bucket is empty", func() {
		Expect(limiter.ExceedsLimit("user-1")).To(BeFalse())
		Expect(limiter.ExceedsLimit("user-1")).To(BeFalse())
		Expect(limiter.ExceedsLimit("user-1")).To(BeTrue())
	})

	It("tracks keys independently", func() {
		Expect(limiter.ExceedsLimit("user-1")).To(BeFalse())
		Expect(limiter.ExceedsLimit("user-1")).To(BeFalse())
		Expect(limiter.ExceedsLimit("user-1")).To(BeTrue())
		Expect(limiter.ExceedsLimit("user-2")).To(BeFalse())
	})
})
