package engine

import "github.com/fordlink/protocolcore/pkg/frame"

// Transport is the opaque byte carrier the Engine sends frames through
// and tears connections down on. The Engine never opens a socket itself;
// an embedding application supplies this.
type Transport interface {
	// Send writes f to conn and returns a token the Engine will later see
	// again in OnMessageSent once the transport confirms delivery.
	Send(conn frame.ConnectionID, f frame.Frame) (token uint64, err error)

	// Disconnect tears down conn.
	Disconnect(conn frame.ConnectionID)
}

// LogicalMessage is one application-level message, possibly spanning
// many frames on the wire.
type LogicalMessage struct {
	ConnectionID frame.ConnectionID
	SessionID    uint8
	ServiceType  frame.ServiceType
	Payload      []byte
}
