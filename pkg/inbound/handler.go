// Package inbound implements the Incoming Data Handler: a per-connection
// byte accumulator that turns raw transport reads into well-formed
// frames, tolerant of partial reads and single-byte malformed resync.
package inbound

import (
	"sync"

	"github.com/fordlink/protocolcore/pkg/frame"
	"github.com/fordlink/protocolcore/pkg/header"
	"github.com/fordlink/protocolcore/pkg/log"
)

// Status summarizes the outcome of one Process call.
type Status uint8

const (
	StatusOK Status = iota
	StatusMalformedOccurs
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusMalformedOccurs:
		return "MALFORMED_OCCURS"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN_STATUS"
	}
}

// connState holds the per-connection accumulator. Bytes that have not yet
// formed a complete frame stay buffered until the next Process call.
type connState struct {
	acc []byte
}

// Handler owns every connection's parse state and the Header Validator
// used to accept or resync each candidate header.
type Handler struct {
	mu        sync.Mutex
	conns     map[frame.ConnectionID]*connState
	validator *header.Validator
}

// NewHandler builds a Handler that rejects frames whose data_size exceeds
// maxPayloadSize.
func NewHandler(maxPayloadSize uint32) *Handler {
	return &Handler{
		conns:     make(map[frame.ConnectionID]*connState),
		validator: header.NewValidator(maxPayloadSize),
	}
}

// AddConnection registers a new connection's accumulator.
func (h *Handler) AddConnection(conn frame.ConnectionID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = &connState{}
}

// RemoveConnection discards a connection's accumulator.
func (h *Handler) RemoveConnection(conn frame.ConnectionID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, conn)
}

// Process appends b to conn's accumulator and extracts every frame it can
// fully parse. On a malformed header it resyncs by exactly one byte and
// keeps scanning, so well-formed frames after bad bytes in the same batch
// are still emitted.
func (h *Handler) Process(conn frame.ConnectionID, b []byte) (frames []frame.Frame, status Status, malformedByteCount int) {
	h.mu.Lock()
	cs, ok := h.conns[conn]
	h.mu.Unlock()
	if !ok {
		log.Warnf("inbound: Process() called for unknown connection %d", conn)
		return nil, StatusFail, 0
	}

	cs.acc = append(cs.acc, b...)

	for {
		if len(cs.acc) < 1 {
			break
		}
		headerSize := frame.PeekHeaderSize(cs.acc)
		if len(cs.acc) < headerSize {
			break
		}

		hdr, err := frame.ParseHeader(cs.acc[:headerSize])
		if err != nil || h.validator.Validate(hdr) != header.OK {
			cs.acc = cs.acc[1:]
			malformedByteCount++
			continue
		}

		total := headerSize + int(hdr.DataSize)
		if len(cs.acc) < total {
			break
		}

		payload := make([]byte, hdr.DataSize)
		copy(payload, cs.acc[headerSize:total])
		frames = append(frames, frame.Frame{
			ConnectionID: conn,
			Header:       hdr,
			Payload:      payload,
		})
		cs.acc = cs.acc[total:]
	}

	if malformedByteCount > 0 {
		log.Debugf("inbound: connection %d resynced past %d malformed byte(s)", conn, malformedByteCount)
		return frames, StatusMalformedOccurs, malformedByteCount
	}
	return frames, StatusOK, 0
}
