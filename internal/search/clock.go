package search

import (
	"context"
	"time"
)

// Clock suspends a job for a fixed delay.
type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Pacer spaces out consecutive provider calls. *rate.Limiter satisfies it.
type Pacer interface {
	Wait(ctx context.Context) error
}

// RealClock sleeps on the wall clock.
type RealClock struct{}

func (RealClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

type noPacer struct{}

func (noPacer) Wait(ctx context.Context) error { return ctx.Err() }
