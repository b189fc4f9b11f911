package throttle

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/compintel/backend/internal/domain"
)

// SleepFunc blocks for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Pacer spaces outbound work with a token bucket of one token per interval.
// Rate-limit backoff goes through the same bucket: time spent backing off
// also refills the token, so the next URL is not delayed twice.
type Pacer struct {
	limiter *rate.Limiter
	sleep   SleepFunc
	now     func() time.Time
}

// Option configures a Pacer
type Option func(*Pacer)

// WithSleep replaces the blocking sleep, for tests
func WithSleep(sleep SleepFunc) Option {
	return func(p *Pacer) { p.sleep = sleep }
}

// WithClock replaces the time source, for tests
func WithClock(now func() time.Time) Option {
	return func(p *Pacer) { p.now = now }
}

// NewPacer creates a pacer admitting one unit of work per interval.
// A non-positive interval disables pacing.
func NewPacer(interval time.Duration, opts ...Option) *Pacer {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}

	p := &Pacer{
		limiter: rate.NewLimiter(limit, 1),
		sleep:   sleepContext,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Wait blocks until the next unit of work may start. The first call returns
// immediately.
func (p *Pacer) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r := p.limiter.ReserveN(p.now(), 1)
	if !r.OK() {
		return nil
	}
	delay := r.DelayFrom(p.now())
	if delay <= 0 {
		return nil
	}
	if err := p.sleep(ctx, delay); err != nil {
		r.CancelAt(p.now())
		return err
	}
	return nil
}

// Backoff sleeps for d after a rate-limit signal
func (p *Pacer) Backoff(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	return p.sleep(ctx, d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ domain.Pacer = (*Pacer)(nil)
