package github

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/time/rate"
)

var _ = Describe("newLimiter", func() {
	It("is disabled for a zero rate", func() {
		Expect(newLimiter(0, 5)).To(BeNil())
	})

	It("raises a burst below one to one", func() {
		limiter := newLimiter(10, 0)
		Expect(limiter.Burst()).To(Equal(1))
		Expect(limiter.Limit()).To(Equal(rate.Limit(10)))
	})

	It("serves the burst immediately and then paces", func() {
		now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		limiter := newLimiter(10, 2)

		Expect(limiter.ReserveN(now, 1).DelayFrom(now)).To(BeZero())
		Expect(limiter.ReserveN(now, 1).DelayFrom(now)).To(BeZero())
		Expect(limiter.ReserveN(now, 1).DelayFrom(now)).To(BeNumerically("~", 100*time.Millisecond, time.Millisecond))
		Expect(limiter.ReserveN(now, 1).DelayFrom(now)).To(BeNumerically("~", 200*time.Millisecond, time.Millisecond))
	})

	It("refills over time up to the burst", func() {
		now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		limiter := newLimiter(10, 2)
		limiter.ReserveN(now, 1)
		limiter.ReserveN(now, 1)

		later := now.Add(time.Minute)
		Expect(limiter.ReserveN(later, 1).DelayFrom(later)).To(BeZero())
		Expect(limiter.ReserveN(later, 1).DelayFrom(later)).To(BeZero())
		Expect(limiter.ReserveN(later, 1).DelayFrom(later)).To(BeNumerically(">", 0))
	})

	It("stops waiting when the context is cancelled", func() {
		limiter := newLimiter(0.001, 1)
		Expect(limiter.Allow()).To(BeTrue())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		Expect(limiter.Wait(ctx)).To(MatchError(context.Canceled))
	})
})

var _ = Describe("Client pacing", func() {
	It("reports a NetworkError when the context ends while waiting for a token", func() {
		client, err := NewClient(Config{
			BaseURL:   "http://127.0.0.1:1",
			Token:     "t",
			RateLimit: 0.001,
			RateBurst: 1,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(client.limiter.Allow()).To(BeTrue())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = client.Fetch(ctx, "/users/octocat/events")

		var netErr *NetworkError
		Expect(err).To(BeAssignableToTypeOf(netErr))
	})
})
