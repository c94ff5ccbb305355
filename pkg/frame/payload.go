package frame

import (
	"encoding/binary"
	"fmt"
)

// FirstPayloadSize is the fixed 8-byte payload carried by every FIRST
// frame: total message size followed by total frame count, each a
// big-endian uint32 (spec section 4.5).
const FirstPayloadSize = 8

// EncodeFirstPayload builds the FIRST frame payload for a logical
// message of totalSize bytes split into totalFrames frames.
func EncodeFirstPayload(totalSize, totalFrames uint32) []byte {
	b := make([]byte, FirstPayloadSize)
	binary.BigEndian.PutUint32(b[0:4], totalSize)
	binary.BigEndian.PutUint32(b[4:8], totalFrames)
	return b
}

// DecodeFirstPayload parses the FIRST frame payload produced by
// EncodeFirstPayload.
func DecodeFirstPayload(b []byte) (totalSize, totalFrames uint32, err error) {
	if len(b) != FirstPayloadSize {
		return 0, 0, fmt.Errorf("frame: FIRST payload is %d bytes, want %d", len(b), FirstPayloadSize)
	}
	return binary.BigEndian.Uint32(b[0:4]), binary.BigEndian.Uint32(b[4:8]), nil
}

// hashIDPayloadSize is the length of a v2+ START_SERVICE_ACK payload that
// carries a hash id. v1 peers, and v2+ peers acking with a sentinel hash
// id, send a zero-length payload instead (spec section 9, Open Question
// 1: HASH_ID_WRONG is treated the same as HASH_ID_NOT_SUPPORTED for the
// purpose of omitting the field).
const hashIDPayloadSize = 4

// EncodeStartServiceAckPayload builds the START_SERVICE_ACK payload. A
// version below Version2, or a hashID equal to HashIDNotSupported or
// HashIDWrong, produces an empty payload.
func EncodeStartServiceAckPayload(version uint8, hashID uint32) []byte {
	if version < Version2 || hashID == HashIDNotSupported || hashID == HashIDWrong {
		return nil
	}
	b := make([]byte, hashIDPayloadSize)
	binary.BigEndian.PutUint32(b, hashID)
	return b
}

// DecodeStartServiceAckPayload parses a START_SERVICE_ACK payload. An
// empty payload decodes to HashIDNotSupported.
func DecodeStartServiceAckPayload(b []byte) (hashID uint32, err error) {
	switch len(b) {
	case 0:
		return HashIDNotSupported, nil
	case hashIDPayloadSize:
		return binary.BigEndian.Uint32(b), nil
	default:
		return 0, fmt.Errorf("frame: START_SERVICE_ACK payload is %d bytes, want 0 or %d", len(b), hashIDPayloadSize)
	}
}

// EncodeEndServicePayload builds the END_SERVICE / END_SERVICE_ACK
// payload carrying the hash id being closed. Same sentinel-omission rule
// as EncodeStartServiceAckPayload applies.
func EncodeEndServicePayload(version uint8, hashID uint32) []byte {
	return EncodeStartServiceAckPayload(version, hashID)
}

// DecodeEndServicePayload parses an END_SERVICE / END_SERVICE_ACK
// payload.
func DecodeEndServicePayload(b []byte) (hashID uint32, err error) {
	return DecodeStartServiceAckPayload(b)
}

// EncodeServiceDataAckPayload builds the SERVICE_DATA_ACK payload: the
// running count the sender keeps for the acknowledged service, as a
// big-endian uint32.
func EncodeServiceDataAckPayload(frameCount uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, frameCount)
	return b
}

// DecodeServiceDataAckPayload parses a SERVICE_DATA_ACK payload.
func DecodeServiceDataAckPayload(b []byte) (frameCount uint32, err error) {
	if len(b) != 4 {
		return 0, fmt.Errorf("frame: SERVICE_DATA_ACK payload is %d bytes, want 4", len(b))
	}
	return binary.BigEndian.Uint32(b), nil
}
