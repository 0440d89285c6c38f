package github

import "golang.org/x/time/rate"

// newLimiter paces requests shared by all workers of a cycle. It returns nil
// when perSecond is zero; Fetch skips pacing for a nil limiter.
func newLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}
