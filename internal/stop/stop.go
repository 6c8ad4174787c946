// Package stop implements the cancellation flag shared between the capture loop and the
// out-of-band triggers that may end a run.
package stop

import (
	"context"
	"sync"
	"sync/atomic"
)

// Flag is a set-once, never-cleared stop request. It is safe for concurrent use: any number of
// triggers may call Set, the loop polls IsSet between ticks.
type Flag struct {
	set    atomic.Bool
	once   sync.Once
	reason atomic.Value // string
	ctx    context.Context
	cancel context.CancelFunc
}

// New returns an unset Flag.
func New() *Flag {
	ctx, cancel := context.WithCancel(context.Background())
	return &Flag{ctx: ctx, cancel: cancel}
}

// Set requests a stop. Only the first call has an effect; it reports whether it was that call.
func (f *Flag) Set(reason string) bool {
	first := false
	f.once.Do(func() {
		f.reason.Store(reason)
		f.set.Store(true)
		f.cancel()
		first = true
	})
	return first
}

// IsSet reports whether a stop was requested.
func (f *Flag) IsSet() bool {
	return f.set.Load()
}

// Reason returns the reason passed to the winning Set call, or "".
func (f *Flag) Reason() string {
	r, _ := f.reason.Load().(string)
	return r
}

// Done is closed once the flag is set.
func (f *Flag) Done() <-chan struct{} {
	return f.ctx.Done()
}

// Context returns a context that is cancelled when the flag is set.
func (f *Flag) Context() context.Context {
	return f.ctx
}
