// Package header implements the Header Validator: a stateless predicate
// over a parsed frame header.
package header

import "github.com/fordlink/protocolcore/pkg/frame"

// Result is the outcome of validating a header.
type Result uint8

const (
	OK Result = iota
	WrongHeader
	WrongFrameType
	WrongServiceType
	WrongPayloadSize
	WrongVersion
)

func (r Result) String() string {
	switch r {
	case OK:
		return "OK"
	case WrongHeader:
		return "WRONG_HEADER"
	case WrongFrameType:
		return "WRONG_FRAME_TYPE"
	case WrongServiceType:
		return "WRONG_SERVICE_TYPE"
	case WrongPayloadSize:
		return "WRONG_PAYLOAD_SIZE"
	case WrongVersion:
		return "WRONG_VERSION"
	default:
		return "UNKNOWN_RESULT"
	}
}

// Validator is configured once with the maximum payload size a frame may
// carry and validates candidate headers against it. It holds no
// per-connection state and is safe for concurrent use.
type Validator struct {
	maxPayloadSize uint32
}

// NewValidator builds a Validator that rejects any data_size larger than
// maxPayloadSize.
func NewValidator(maxPayloadSize uint32) *Validator {
	return &Validator{maxPayloadSize: maxPayloadSize}
}

// Validate checks h against the fixed structural rules from section 4.1:
// supported version, known frame type, known-or-vendor-reserved service
// type, payload size within bounds (exactly 8 for FIRST), and a non-zero
// session id for data frames.
func (v *Validator) Validate(h frame.Header) Result {
	if !frame.IsSupportedVersion(h.ProtocolVersion) {
		return WrongVersion
	}
	switch h.FrameType {
	case frame.Control, frame.Single, frame.First, frame.Consecutive:
	default:
		return WrongFrameType
	}
	// Every byte value is either a known ServiceType or within the
	// vendor-reserved range (ServiceType.IsReserved), so service_type can
	// never fail validation on its own; WrongServiceType is kept in the
	// Result enum because the wire protocol's result codes list it.
	if h.DataSize > v.maxPayloadSize {
		return WrongPayloadSize
	}
	if h.FrameType == frame.First && h.DataSize != frame.FirstPayloadSize {
		return WrongPayloadSize
	}
	if h.FrameType != frame.Control && h.SessionID == 0 {
		return WrongHeader
	}
	return OK
}
