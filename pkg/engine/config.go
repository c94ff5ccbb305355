// Package engine implements the Protocol Engine: the ingress and egress
// pipelines, the control sub-protocol state machine, multi-frame
// fragmentation on send, session-counter bookkeeping, final-message
// tracking, and disconnect scheduling.
package engine

import "time"

// Config carries every startup parameter named in the external
// interfaces section. It is constructed directly by the embedding
// application; loading it from a file or flags is not part of this core.
type Config struct {
	// MaximumPayloadSize bounds data_size for every frame.
	MaximumPayloadSize uint32

	// MessageFrequencyTime and MessageFrequencyCount configure the
	// well-formed traffic rate meter.
	MessageFrequencyTime  time.Duration
	MessageFrequencyCount uint64

	// MalformedMessageFrequencyTime and MalformedMessageFrequencyCount
	// configure the malformed traffic rate meter.
	MalformedMessageFrequencyTime  time.Duration
	MalformedMessageFrequencyCount uint64

	// MalformedMessageFiltering, when false, makes a malformed batch call
	// the Session Observer's OnMalformed immediately instead of routing
	// it through the malformed rate meter.
	MalformedMessageFiltering bool

	// HeartBeatEnabled allows SelectOutboundVersion to offer version 3.
	HeartBeatEnabled bool

	// EnableProtocol4 allows SelectOutboundVersion to offer version 4.
	EnableProtocol4 bool

	// IngressQueueCapacity and EgressQueueCapacity size the two
	// single-consumer FIFO queues described in the concurrency model.
	IngressQueueCapacity int
	EgressQueueCapacity  int
}

// SelectOutboundVersion implements the "Supported version selection"
// helper: the highest supported outbound version given configuration.
func (c Config) SelectOutboundVersion() uint8 {
	if c.EnableProtocol4 {
		return 4
	}
	if c.HeartBeatEnabled {
		return 3
	}
	return 2
}
