// Package metrics holds the small set of internal counters the Protocol
// Engine and its cooperating components expose. There is no timeseries
// export here: metrics configuration/reporting is not part of this core
// (spec section 1); embedders read the counters directly.
package metrics

import "sync/atomic"

// Counter holds a named int64 value, safe for concurrent use.
type Counter struct {
	name  string
	value atomic.Int64
}

// Name returns the counter's name.
func (c *Counter) Name() string {
	return c.name
}

// Add increases (or, with a negative delta, decreases) the value and
// returns the result.
func (c *Counter) Add(delta int64) int64 {
	return c.value.Add(delta)
}

// Load returns the current value.
func (c *Counter) Load() int64 {
	return c.value.Load()
}

// Global, process-wide counters for the core's hot paths. Embedders that
// need per-instance isolation can construct their own metrics.Counter
// values directly instead of using these.
var (
	FramesParsed       = &Counter{name: "frames_parsed"}
	FramesRejected     = &Counter{name: "frames_rejected"}
	FramesResynced     = &Counter{name: "frames_resynced"}
	MalformedBytes     = &Counter{name: "malformed_bytes"}
	RateLimitMalformed = &Counter{name: "rate_limit_malformed_trips"}
	RateLimitFlood     = &Counter{name: "rate_limit_flood_trips"}
	ReassemblyComplete = &Counter{name: "reassembly_complete"}
	ReassemblyErrors   = &Counter{name: "reassembly_errors"}
	EncryptFailures    = &Counter{name: "encrypt_failures"}
	DecryptFailures    = &Counter{name: "decrypt_failures"}
	ServicesStarted    = &Counter{name: "services_started"}
	ServicesEnded      = &Counter{name: "services_ended"}
	HeartbeatsAcked    = &Counter{name: "heartbeats_acked"}
)
