// Package poll waits for conditions the editor exposes no push
// notification for, using exponential backoff between samples.
package poll

import (
	"context"
	"time"

	"github.com/nvimbridge/nvim-ide-mcp/ideerr"
)

// Options tunes a single Await call.
type Options struct {
	// Initial is the gap before the second sample. Later gaps grow by
	// Multiplier up to Max. Defaults to 50ms.
	Initial time.Duration
	// Max caps the gap between samples. Defaults to Initial.
	Max time.Duration
	// Multiplier scales the gap after each failed sample. Defaults to 2.
	Multiplier float64
	// Deadline bounds the whole wait. Defaults to 30s.
	Deadline time.Duration
	// What names the wait in timeout errors.
	What string
}

func (o Options) normalized() Options {
	if o.Initial <= 0 {
		o.Initial = 50 * time.Millisecond
	}
	if o.Multiplier < 1 {
		o.Multiplier = 2
	}
	if o.Max < o.Initial {
		o.Max = o.Initial
	}
	if o.Deadline <= 0 {
		o.Deadline = 30 * time.Second
	}
	if o.What == "" {
		o.What = "condition"
	}
	return o
}

// Await samples cond until it returns true, an error, or the deadline
// passes. Consecutive samples are separated by at least the current
// backoff interval, so Await never busy-spins, and cond is never
// called again once it has returned true. A deadline expiry yields a
// Timeout error; a canceled context yields ctx.Err().
func Await(ctx context.Context, opts Options, cond func(ctx context.Context) (bool, error)) error {
	opts = opts.normalized()
	deadline := time.Now().Add(opts.Deadline)
	interval := opts.Initial
	for {
		if time.Now().After(deadline) {
			return ideerr.Timeout(opts.What, opts.Deadline)
		}
		ok, err := cond(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
		next := time.Duration(float64(interval) * opts.Multiplier)
		if next > opts.Max {
			next = opts.Max
		}
		interval = next
	}
}
