// Package system provides a real clock implementation.
package system

import "time"

// Ticker is the subset of time.Ticker the scheduler depends on.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock implements site.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// NewTicker wraps time.NewTicker.
func (Clock) NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (r *realTicker) C() <-chan time.Time { return r.t.C }
func (r *realTicker) Stop()               { r.t.Stop() }
