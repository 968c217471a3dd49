package checker

import (
	"context"
	"time"
)

// Gate bounds how many account checks run at once. The default size of one
// serializes all single checks process-wide so the target site never sees
// parallel login attempts from this service.
type Gate struct {
	slots chan struct{}
}

func NewGate(size int) *Gate {
	if size <= 0 {
		size = 1
	}
	return &Gate{slots: make(chan struct{}, size)}
}

func (g *Gate) Acquire(ctx context.Context) error {
	select {
	case g.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Gate) Release() {
	<-g.slots
}

// PacingPolicy returns the delay to insert before checking the account at
// index i of a batch. Index zero is never delayed.
type PacingPolicy func(index int) time.Duration

func FixedDelayPacing(delay time.Duration) PacingPolicy {
	return func(index int) time.Duration {
		if index == 0 {
			return 0
		}
		return delay
	}
}
