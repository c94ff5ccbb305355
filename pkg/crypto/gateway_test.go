package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fordlink/protocolcore/pkg/cryptotest"
	"github.com/fordlink/protocolcore/pkg/frame"
	"github.com/fordlink/protocolcore/pkg/session/testobserver"
)

func dataFrame(conn frame.ConnectionID, sessionID uint8, payload []byte) frame.Frame {
	return frame.Frame{
		ConnectionID: conn,
		Header: frame.Header{
			ProtocolVersion: frame.Version2,
			FrameType:       frame.Single,
			ServiceType:     frame.ServiceRPC,
			SessionID:       sessionID,
		},
		Payload: payload,
	}
}

func TestEncryptLeavesControlFramesUnchanged(t *testing.T) {
	obs := testobserver.New()
	gw := New(obs)

	f := dataFrame(1, 1, []byte("hello"))
	f.FrameType = frame.Control
	f.ServiceType = frame.ServiceControl

	out, err := gw.Encrypt(f)
	require.NoError(t, err)
	require.Equal(t, f, out)
	require.False(t, out.Protection)
}

func TestEncryptWithoutContextReturnsUnchanged(t *testing.T) {
	obs := testobserver.New()
	gw := New(obs)

	f := dataFrame(1, 1, []byte("hello"))
	out, err := gw.Encrypt(f)
	require.NoError(t, err)
	require.Equal(t, f.Payload, out.Payload)
	require.False(t, out.Protection)
}

func TestEncryptDecryptRoundTripWithRealContext(t *testing.T) {
	obs := testobserver.New()
	gw := New(obs)

	conn, sessionID := frame.ConnectionID(1), uint8(1)
	obs.StartSession(conn, sessionID, frame.ServiceRPC, true)
	key := obs.KeyOf(conn, sessionID)

	ctx, err := cryptotest.NewChaChaContext(true)
	require.NoError(t, err)
	obs.SetContext(key, frame.ServiceRPC, ctx)

	f := dataFrame(conn, sessionID, []byte("secret payload"))
	encrypted, err := gw.Encrypt(f)
	require.NoError(t, err)
	require.True(t, encrypted.Protection)
	require.NotEqual(t, f.Payload, encrypted.Payload)

	decrypted, outcome, err := gw.Decrypt(encrypted)
	require.NoError(t, err)
	require.Equal(t, OutcomeOK, outcome)
	require.Equal(t, []byte("secret payload"), decrypted.Payload)
	require.False(t, decrypted.Protection)
}

func TestDecryptUnprotectedFramePassesThrough(t *testing.T) {
	obs := testobserver.New()
	gw := New(obs)

	f := dataFrame(1, 1, []byte("plain"))
	out, outcome, err := gw.Decrypt(f)
	require.NoError(t, err)
	require.Equal(t, OutcomeOK, outcome)
	require.Equal(t, f.Payload, out.Payload)
}

func TestDecryptProtectedFrameWithoutContextIsServiceNotProtected(t *testing.T) {
	obs := testobserver.New()
	gw := New(obs)

	f := dataFrame(1, 1, []byte("ciphertext"))
	f.Protection = true

	_, outcome, err := gw.Decrypt(f)
	require.Error(t, err)
	require.Equal(t, OutcomeServiceNotProtected, outcome)
}

func TestDecryptFailureReportsDecryptionFailed(t *testing.T) {
	obs := testobserver.New()
	gw := New(obs)

	conn, sessionID := frame.ConnectionID(1), uint8(1)
	obs.StartSession(conn, sessionID, frame.ServiceRPC, true)
	key := obs.KeyOf(conn, sessionID)

	ctx, err := cryptotest.NewChaChaContext(true)
	require.NoError(t, err)
	obs.SetContext(key, frame.ServiceRPC, ctx)

	f := dataFrame(conn, sessionID, []byte("tampered"))
	f.Protection = true

	_, outcome, err := gw.Decrypt(f)
	require.Error(t, err)
	require.Equal(t, OutcomeDecryptionFailed, outcome)
}

func TestMaxBlockSizeUsesContextWhenProtected(t *testing.T) {
	obs := testobserver.New()
	gw := New(obs)

	conn, sessionID := frame.ConnectionID(1), uint8(1)
	obs.StartSession(conn, sessionID, frame.ServiceRPC, true)
	key := obs.KeyOf(conn, sessionID)

	ctx, err := cryptotest.NewChaChaContext(true)
	require.NoError(t, err)
	obs.SetContext(key, frame.ServiceRPC, ctx)

	require.Equal(t, ctx.MaxBlockSize(1000), gw.MaxBlockSize(key, frame.ServiceRPC, 1000))
}

func TestMaxBlockSizeUsesRawWhenUnprotected(t *testing.T) {
	obs := testobserver.New()
	gw := New(obs)
	require.Equal(t, 1000, gw.MaxBlockSize("no-such-key", frame.ServiceRPC, 1000))
}
