// Package ratemeter implements the two independent sliding-window
// traffic meters (well-formed, malformed) keyed by connection-key.
package ratemeter

import (
	"sync"
	"time"
)

// keyState is one key's two-bucket sliding window: count accumulated in
// the current window, and count accumulated in the window before it. The
// reported rate is their sum, which smooths the boundary between windows
// the same way a replay cache's current/previous map rollover does.
type keyState struct {
	current     uint64
	previous    uint64
	windowStart time.Time
}

// Meter tracks a per-key event rate over a fixed time range T, flagging
// keys whose rate exceeds M. A zero T or M disables the meter: Track
// always returns 0 and does no bookkeeping.
type Meter struct {
	mu    sync.Mutex
	t     time.Duration
	m     uint64
	state map[string]*keyState
	now   func() time.Time
}

// New builds a Meter with time range t and max m events per range.
func New(t time.Duration, m uint64) *Meter {
	return &Meter{
		t:     t,
		m:     m,
		state: make(map[string]*keyState),
		now:   time.Now,
	}
}

// Disabled reports whether this meter was configured with T=0 or M=0.
func (mt *Meter) Disabled() bool {
	return mt.t <= 0 || mt.m == 0
}

// Track records count events for key and returns the resulting rate over
// the window. Safe for concurrent use from the ingress pipeline.
func (mt *Meter) Track(key string, count uint64) uint64 {
	if mt.Disabled() {
		return 0
	}
	mt.mu.Lock()
	defer mt.mu.Unlock()

	now := mt.now()
	st, ok := mt.state[key]
	if !ok {
		st = &keyState{windowStart: now}
		mt.state[key] = st
	}
	if now.Sub(st.windowStart) >= mt.t {
		st.previous = st.current
		st.current = 0
		st.windowStart = now
	}
	st.current += count

	return st.current + st.previous
}

// Exceeded reports whether key's last Track call put it over the limit.
func (mt *Meter) Exceeded(rate uint64) bool {
	return !mt.Disabled() && rate > mt.m
}

// Reset clears a key's window, e.g. after the Engine has already acted
// on a flood/malformed notification for it.
func (mt *Meter) Reset(key string) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	delete(mt.state, key)
}

// RemoveConnection is an alias for Reset kept for symmetry with
// pkg/inbound.Handler's connection lifecycle methods; callers key meters
// by connection (or connection+session), so tearing down a connection
// means forgetting its rate state too.
func (mt *Meter) RemoveConnection(key string) {
	mt.Reset(key)
}
