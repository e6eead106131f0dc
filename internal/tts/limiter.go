package tts

import (
	"context"
	"fmt"
	"time"

	"github.com/book-expert/tts-cache/internal/core"
	"golang.org/x/time/rate"
)

// RateLimited spaces calls to an inner synthesizer to a fixed request rate.
type RateLimited struct {
	inner   core.Synthesizer
	limiter *rate.Limiter
}

// NewRateLimited allows requestsPerMinute calls per minute with a burst of
// one. A non-positive rate disables limiting.
func NewRateLimited(inner core.Synthesizer, requestsPerMinute int) *RateLimited {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if requestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1)
	}

	return &RateLimited{inner: inner, limiter: limiter}
}

// Format returns the inner synthesizer's format.
func (r *RateLimited) Format() string {
	return r.inner.Format()
}

// Synthesize waits for a token and delegates to the inner synthesizer.
func (r *RateLimited) Synthesize(ctx context.Context, text string) ([]byte, error) {
	err := r.limiter.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: rate limit wait cancelled: %w", core.ErrProvider, err)
	}

	return r.inner.Synthesize(ctx, text)
}

// Unwrap returns the inner synthesizer.
func (r *RateLimited) Unwrap() core.Synthesizer {
	return r.inner
}
