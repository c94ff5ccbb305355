// Package frame implements the Ford Protocol wire format: header
// marshal/parse, frame types, service types, control opcodes, and the
// small fixed payload encodings used by the control sub-protocol.
package frame

import (
	"encoding/binary"
	"fmt"
	"unicode"
)

// ConnectionID names a transport-layer connection. The Transport Layer is
// an external collaborator (spec section 1); this core only carries the
// opaque identifier it was given.
type ConnectionID uint64

// HeaderV1Size and HeaderV2Size are the two fixed header lengths defined
// in spec section 6. v1 omits the message_id field.
const (
	HeaderV1Size = 8
	HeaderV2Size = 12
)

// Header holds every header field from spec section 3, except payload.
type Header struct {
	ProtocolVersion uint8
	Protection      bool
	FrameType       FrameType
	ServiceType     ServiceType
	FrameData       uint8
	SessionID       uint8
	MessageID       uint32 // absent (always 0) for v1
	DataSize        uint32
}

// Frame is the wire unit exchanged with the Incoming Data Handler and the
// Protocol Engine.
type Frame struct {
	ConnectionID ConnectionID
	Header
	Payload []byte
}

// HeaderSize returns the header length in bytes for a protocol version.
func HeaderSize(version uint8) int {
	if version <= Version1 {
		return HeaderV1Size
	}
	return HeaderV2Size
}

// PeekVersion extracts the protocol version nibble from the first header
// byte without requiring the rest of the header to be available yet. The
// caller must have at least 1 byte.
func PeekVersion(b []byte) uint8 {
	return b[0] >> 4
}

// PeekHeaderSize reports how many header bytes are needed once the first
// byte is available.
func PeekHeaderSize(b []byte) int {
	return HeaderSize(PeekVersion(b))
}

// ParseHeader decodes exactly HeaderSize(version) bytes into a Header.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < 1 {
		return Header{}, fmt.Errorf("frame: empty header")
	}
	version := PeekVersion(b)
	size := HeaderSize(version)
	if len(b) != size {
		return Header{}, fmt.Errorf("frame: header is %d bytes, want %d for version %d", len(b), size, version)
	}

	h := Header{
		ProtocolVersion: version,
		Protection:      b[0]&0x08 != 0,
		FrameType:       FrameType(b[0] & 0x07),
		ServiceType:     ServiceType(b[1]),
		FrameData:       b[2],
		SessionID:       b[3],
		DataSize:        binary.BigEndian.Uint32(b[4:8]),
	}
	if version >= Version2 {
		h.MessageID = binary.BigEndian.Uint32(b[8:12])
	}
	return h, nil
}

// Marshal serializes the header according to its ProtocolVersion.
func (h Header) Marshal() []byte {
	size := HeaderSize(h.ProtocolVersion)
	b := make([]byte, size)
	b[0] = h.ProtocolVersion<<4 | byte(h.FrameType&0x07)
	if h.Protection {
		b[0] |= 0x08
	}
	b[1] = byte(h.ServiceType)
	b[2] = h.FrameData
	b[3] = h.SessionID
	binary.BigEndian.PutUint32(b[4:8], h.DataSize)
	if h.ProtocolVersion >= Version2 {
		binary.BigEndian.PutUint32(b[8:12], h.MessageID)
	}
	return b
}

// Marshal serializes the full frame (header + payload) for sending on the
// wire. ConnectionID is not part of the wire format; it only identifies
// which transport stream to write to.
func (f *Frame) Marshal() []byte {
	h := f.Header
	h.DataSize = uint32(len(f.Payload))
	b := h.Marshal()
	return append(b, f.Payload...)
}

func (h Header) String() string {
	return fmt.Sprintf("Header{v=%d, protected=%v, type=%v, service=%v, frameData=%d, session=%d, msgID=%d, size=%d}",
		h.ProtocolVersion, h.Protection, h.FrameType, h.ServiceType, h.FrameData, h.SessionID, h.MessageID, h.DataSize)
}

func (f *Frame) String() string {
	return fmt.Sprintf("Frame{conn=%d, %v, payload=%d bytes}", f.ConnectionID, f.Header, len(f.Payload))
}

// SafeString renders the payload for trace logging, falling back to a
// byte count when it isn't printable. Mirrors the intent of the original
// source's ConvertPacketDataToString guard against dumping raw binary.
func (f *Frame) SafeString() string {
	for _, r := range f.Payload {
		if r > unicode.MaxASCII || (r < 0x20 && r != '\t' && r != '\n' && r != '\r') {
			return fmt.Sprintf("<%d bytes, not printable>", len(f.Payload))
		}
	}
	return string(f.Payload)
}
