package park

import (
	"context"
	"time"
)

// Parker is a binary permit that a single goroutine parks on and any
// goroutine may unpark. The zero value is not usable; create instances with
// [New].
type Parker struct {
	permit chan struct{}
}

// New creates a [Parker] with no permit available.
func New() *Parker {
	return &Parker{permit: make(chan struct{}, 1)}
}

// Unpark makes the permit available if it is not already.
func (p *Parker) Unpark() {
	select {
	case p.permit <- struct{}{}:
	default:
	}
}

// Park blocks until the permit is available and consumes it.
func (p *Parker) Park() {
	<-p.permit
}

// ParkContext blocks until the permit is available or ctx is done. It returns
// ctx.Err() when the context ended first, and nil otherwise.
func (p *Parker) ParkContext(ctx context.Context) error {
	select {
	case <-p.permit:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ParkTimeout behaves like [Parker.ParkContext] but also returns nil once d
// has elapsed. A non-positive d returns immediately.
func (p *Parker) ParkTimeout(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-p.permit:
		return nil
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
