package frame

import (
	mrand "math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTripV1(t *testing.T) {
	h := Header{
		ProtocolVersion: Version1,
		Protection:      false,
		FrameType:       Single,
		ServiceType:     ServiceRPC,
		FrameData:       0,
		SessionID:       uint8(mrand.Uint32()),
		DataSize:        mrand.Uint32() % (1 << 24),
	}
	b := h.Marshal()
	require.Len(t, b, HeaderV1Size)

	h2, err := ParseHeader(b)
	require.NoError(t, err)
	require.Equal(t, h, h2)
}

func TestHeaderRoundTripV2(t *testing.T) {
	h := Header{
		ProtocolVersion: Version2,
		Protection:      true,
		FrameType:       Consecutive,
		ServiceType:     ServiceBulk,
		FrameData:       37,
		SessionID:       uint8(mrand.Uint32()),
		MessageID:       mrand.Uint32(),
		DataSize:        mrand.Uint32(),
	}
	b := h.Marshal()
	require.Len(t, b, HeaderV2Size)

	h2, err := ParseHeader(b)
	require.NoError(t, err)
	require.Equal(t, h, h2)
}

func TestPeekVersionAndHeaderSize(t *testing.T) {
	h := Header{ProtocolVersion: Version3, FrameType: First, ServiceType: ServiceVideo}
	b := h.Marshal()
	require.Equal(t, Version3, PeekVersion(b))
	require.Equal(t, HeaderV2Size, PeekHeaderSize(b))
}

func TestParseHeaderRejectsWrongLength(t *testing.T) {
	h := Header{ProtocolVersion: Version2, FrameType: Single, ServiceType: ServiceAudio}
	b := h.Marshal()
	_, err := ParseHeader(b[:len(b)-1])
	require.Error(t, err)
}

func TestFrameMarshalSetsDataSize(t *testing.T) {
	f := &Frame{
		ConnectionID: ConnectionID(42),
		Header: Header{
			ProtocolVersion: Version2,
			FrameType:       Single,
			ServiceType:     ServiceRPC,
			SessionID:       1,
		},
		Payload: []byte("hello"),
	}
	b := f.Marshal()
	h, err := ParseHeader(b[:HeaderV2Size])
	require.NoError(t, err)
	require.Equal(t, uint32(len("hello")), h.DataSize)
	require.Equal(t, []byte("hello"), b[HeaderV2Size:])
}

func TestIsSupportedVersion(t *testing.T) {
	require.True(t, IsSupportedVersion(Version1))
	require.True(t, IsSupportedVersion(Version4))
	require.False(t, IsSupportedVersion(0))
	require.False(t, IsSupportedVersion(5))
}

func TestServiceTypeIsReserved(t *testing.T) {
	require.False(t, ServiceControl.IsReserved())
	require.False(t, ServiceRPC.IsReserved())
	require.True(t, ServiceType(0x05).IsReserved())
}

func TestFirstPayloadRoundTrip(t *testing.T) {
	b := EncodeFirstPayload(123456, 42)
	size, frames, err := DecodeFirstPayload(b)
	require.NoError(t, err)
	require.Equal(t, uint32(123456), size)
	require.Equal(t, uint32(42), frames)
}

func TestStartServiceAckPayloadOmittedForV1(t *testing.T) {
	require.Nil(t, EncodeStartServiceAckPayload(Version1, 0xABCD))
}

func TestStartServiceAckPayloadOmittedForSentinels(t *testing.T) {
	require.Nil(t, EncodeStartServiceAckPayload(Version2, HashIDNotSupported))
	require.Nil(t, EncodeStartServiceAckPayload(Version2, HashIDWrong))
}

func TestStartServiceAckPayloadRoundTrip(t *testing.T) {
	b := EncodeStartServiceAckPayload(Version2, 0xDEADBEEF)
	hashID, err := DecodeStartServiceAckPayload(b)
	require.NoError(t, err)
	require.Equal(t, uint32(0xDEADBEEF), hashID)
}

func TestDecodeStartServiceAckPayloadEmptyMeansNotSupported(t *testing.T) {
	hashID, err := DecodeStartServiceAckPayload(nil)
	require.NoError(t, err)
	require.Equal(t, HashIDNotSupported, hashID)
}

func TestServiceDataAckPayloadRoundTrip(t *testing.T) {
	b := EncodeServiceDataAckPayload(9001)
	n, err := DecodeServiceDataAckPayload(b)
	require.NoError(t, err)
	require.Equal(t, uint32(9001), n)
}
