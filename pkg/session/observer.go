// Package session defines the contracts the Protocol Engine needs from
// its external session owner, plus the opaque Key type. The embedding
// application supplies a concrete Observer and, optionally, a Manager;
// this core never owns session identity itself.
package session

import "github.com/fordlink/protocolcore/pkg/frame"

// Key is an opaque token an Observer derives from (connection,
// session). It uniquely names a session across connections.
type Key string

// Observer owns session identifiers and service protection state on
// behalf of the Engine. Every method mirrors one named in the external
// interfaces this core depends on but does not implement.
type Observer interface {
	// StartSession creates or reuses a session for conn, responding to an
	// inbound START_SERVICE whose header carried requestedSessionID (0
	// means "assign a new one"). Returns the resulting session id (0 means
	// refused) and an opaque hash id for the ACK payload.
	StartSession(conn frame.ConnectionID, requestedSessionID uint8, serviceType frame.ServiceType, protectionRequested bool) (sessionID uint8, hashID uint32)

	// EndSession tears down a session in response to an inbound
	// END_SERVICE. Returns the ended Key, or "" if hashID did not match a
	// live session.
	EndSession(conn frame.ConnectionID, sessionID uint8, hashID uint32, serviceType frame.ServiceType) Key

	// KeyOf derives the connection key for (conn, session).
	KeyOf(conn frame.ConnectionID, sessionID uint8) Key

	// ProtocolVersionOf reports the negotiated protocol version for a
	// session, or 0 if the session is unknown.
	ProtocolVersionOf(conn frame.ConnectionID, sessionID uint8) uint8

	// SSLContextOf resolves the SecurityContext protecting serviceType
	// within key, or nil if none exists.
	SSLContextOf(key Key, serviceType frame.ServiceType) SecurityContext

	// OnMalformed reports that key's connection exceeded the malformed
	// traffic rate, or had malformed bytes with filtering disabled.
	OnMalformed(key Key)

	// OnFlood reports that key's connection exceeded the well-formed
	// traffic rate.
	OnFlood(key Key)

	// SetProtection marks serviceType within key as encrypted once a
	// handshake completes successfully.
	SetProtection(key Key, serviceType frame.ServiceType)

	// IsProtected reports whether serviceType within key is already
	// encrypted. A START_SERVICE naming an already-protected service is
	// a conflict, not an upgrade, and must be rejected by the caller.
	IsProtected(key Key, serviceType frame.ServiceType) bool

	// HeartbeatSupported reports whether (conn, session) negotiated a
	// protocol version that supports the heartbeat opcode (v3, v4).
	HeartbeatSupported(conn frame.ConnectionID, sessionID uint8) bool

	// KeepAlive records that (conn, session) is still alive, e.g. on
	// receipt of a heartbeat or heartbeat ack.
	KeepAlive(conn frame.ConnectionID, sessionID uint8)
}

// SecurityContext is the per-(connection, session, service) cryptographic
// context the Crypto Gateway delegates to. This core never implements
// cryptographic primitives itself; SecurityContext is always supplied by
// an external Security Manager.
type SecurityContext interface {
	Encrypt(payload []byte) ([]byte, error)
	Decrypt(payload []byte) ([]byte, error)
	MaxBlockSize(raw int) int
	IsInitComplete() bool
	IsHandshakePending() bool
}

// Manager creates and drives the handshake lifecycle of SecurityContexts.
// A nil Manager means protection was never configured; the Crypto Gateway
// and control state machine treat every START_SERVICE as unprotectable.
type Manager interface {
	// CreateContext obtains or creates the SecurityContext for key. A
	// repeated call for the same key returns the existing context.
	CreateContext(key Key) (SecurityContext, error)

	// StartHandshake kicks off the handshake for key's context if one is
	// not already pending. Safe to call when a handshake is in flight.
	StartHandshake(key Key) error

	// AddHandshakeListener registers a one-shot callback invoked with the
	// handshake outcome for key. The listener is removed from the
	// registry after it fires; in-flight listeners are never invoked
	// after the Engine has been shut down.
	AddHandshakeListener(key Key, fn func(success bool))
}
