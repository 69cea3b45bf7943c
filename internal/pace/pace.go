// Package pace enforces the courtesy delay that follows every call to an
// external registry.
package pace

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces external calls. The shared limiter bounds the call rate across
// concurrent workers; the fixed delay follows each call whatever its outcome.
type Pacer struct {
	delay   time.Duration
	limiter *rate.Limiter
}

// New creates a Pacer with the given post-call delay. A zero delay disables
// pacing (tests).
func New(delay time.Duration) *Pacer {
	p := &Pacer{delay: delay}
	if delay > 0 {
		p.limiter = rate.NewLimiter(rate.Every(delay), 1)
	}
	return p
}

// Delay returns the configured post-call delay.
func (p *Pacer) Delay() time.Duration {
	return p.delay
}

// Do waits for a rate slot, runs fn, then sleeps the fixed delay. The error
// from fn is returned unchanged; a cancelled context while waiting is
// returned instead of running fn.
func (p *Pacer) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	err := fn(ctx)

	if sleepErr := p.sleep(ctx); err == nil {
		err = sleepErr
	}
	return err
}

func (p *Pacer) sleep(ctx context.Context) error {
	if p.delay <= 0 {
		return nil
	}
	t := time.NewTimer(p.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Call is Do for functions returning a value.
func Call[T any](ctx context.Context, p *Pacer, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}
