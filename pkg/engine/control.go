package engine

import (
	"github.com/fordlink/protocolcore/pkg/frame"
	"github.com/fordlink/protocolcore/pkg/log"
	"github.com/fordlink/protocolcore/pkg/metrics"
)

// handleControlFrame dispatches an inbound CONTROL frame by opcode, per
// spec section 4.6.1.
func (e *Engine) handleControlFrame(f frame.Frame) {
	opcode := frame.ControlOpcode(f.FrameData)
	switch opcode {
	case frame.OpStartService:
		e.handleStartService(f)
	case frame.OpEndService:
		e.handleEndService(f)
	case frame.OpHeartBeat:
		e.handleHeartbeat(f)
	case frame.OpHeartBeatAck:
		e.observer.KeepAlive(f.ConnectionID, f.SessionID)
	default:
		log.Debugf("engine: ignoring inbound control opcode %v on conn %d session %d", opcode, f.ConnectionID, f.SessionID)
	}
}

// handleStartService implements spec section 4.6.2.
func (e *Engine) handleStartService(f frame.Frame) {
	newSessionID, hashID := e.observer.StartSession(f.ConnectionID, f.SessionID, f.ServiceType, f.Protection)
	if newSessionID == 0 {
		e.sendControl(f.ConnectionID, f.SessionID, f.ProtocolVersion, f.ServiceType, false, frame.OpStartServiceNack, nil)
		return
	}

	key := e.observer.KeyOf(f.ConnectionID, newSessionID)
	if e.observer.IsProtected(key, f.ServiceType) {
		log.Debugf("engine: START_SERVICE for %v service %v rejected, already protected", key, f.ServiceType)
		e.sendControl(f.ConnectionID, newSessionID, f.ProtocolVersion, f.ServiceType, false, frame.OpStartServiceNack, nil)
		return
	}

	version := f.ProtocolVersion
	protectionRequested := f.Protection
	if version == frame.Version1 {
		protectionRequested = false
	}
	ackPayload := frame.EncodeStartServiceAckPayload(version, hashID)
	metrics.ServicesStarted.Add(1)

	if !protectionRequested || e.manager == nil {
		e.sendControl(f.ConnectionID, newSessionID, version, f.ServiceType, false, frame.OpStartServiceAck, ackPayload)
		return
	}

	ctx, err := e.manager.CreateContext(key)
	if err != nil {
		log.Errorf("engine: CreateContext() for %v failed, starting %v unprotected: %v", key, f.ServiceType, err)
		e.sendControl(f.ConnectionID, newSessionID, version, f.ServiceType, false, frame.OpStartServiceAck, ackPayload)
		return
	}

	if ctx.IsInitComplete() {
		e.observer.SetProtection(key, f.ServiceType)
		e.sendControl(f.ConnectionID, newSessionID, version, f.ServiceType, true, frame.OpStartServiceAck, ackPayload)
		return
	}

	e.manager.AddHandshakeListener(key, func(success bool) {
		select {
		case <-e.stopCh:
			return
		default:
		}
		if success {
			e.observer.SetProtection(key, f.ServiceType)
			e.sendControl(f.ConnectionID, newSessionID, version, f.ServiceType, true, frame.OpStartServiceAck, ackPayload)
			return
		}
		e.sendControl(f.ConnectionID, newSessionID, version, f.ServiceType, false, frame.OpStartServiceNack, nil)
	})

	if !ctx.IsHandshakePending() {
		if err := e.manager.StartHandshake(key); err != nil {
			log.Errorf("engine: StartHandshake() for %v failed: %v", key, err)
		}
	}
}

// handleEndService implements spec section 4.6.3.
func (e *Engine) handleEndService(f frame.Frame) {
	hashID, err := frame.DecodeEndServicePayload(f.Payload)
	if err != nil {
		log.Warnf("engine: malformed END_SERVICE payload on conn %d session %d: %v", f.ConnectionID, f.SessionID, err)
		e.sendControl(f.ConnectionID, f.SessionID, f.ProtocolVersion, f.ServiceType, false, frame.OpEndServiceNack, nil)
		return
	}

	endedKey := e.observer.EndSession(f.ConnectionID, f.SessionID, hashID, f.ServiceType)
	if endedKey == "" {
		e.sendControl(f.ConnectionID, f.SessionID, f.ProtocolVersion, f.ServiceType, false, frame.OpEndServiceNack, nil)
		return
	}

	e.reassembler.DropSession(f.ConnectionID, f.SessionID)
	e.resetCounter(f.ConnectionID, f.SessionID)
	delete(e.serviceDataAckCounters, serviceDataAckKey{conn: f.ConnectionID, sessionID: f.SessionID, serviceType: f.ServiceType})
	metrics.ServicesEnded.Add(1)
	e.sendControl(f.ConnectionID, f.SessionID, f.ProtocolVersion, f.ServiceType, false, frame.OpEndServiceAck, frame.EncodeEndServicePayload(f.ProtocolVersion, hashID))
}

// handleHeartbeat implements spec section 4.6.4.
func (e *Engine) handleHeartbeat(f frame.Frame) {
	version := e.observer.ProtocolVersionOf(f.ConnectionID, f.SessionID)
	if version == 0 {
		log.Warnf("engine: HEART_BEAT on unknown session conn %d session %d", f.ConnectionID, f.SessionID)
		return
	}
	if !e.observer.HeartbeatSupported(f.ConnectionID, f.SessionID) {
		log.Debugf("engine: HEART_BEAT on conn %d session %d ignored, version %d does not support it", f.ConnectionID, f.SessionID, version)
		return
	}

	e.observer.KeepAlive(f.ConnectionID, f.SessionID)
	metrics.HeartbeatsAcked.Add(1)
	e.sendControlWithMessageID(f.ConnectionID, f.SessionID, version, f.ServiceType, frame.OpHeartBeatAck, f.MessageID)
}

func (e *Engine) sendControl(conn frame.ConnectionID, sessionID uint8, version uint8, serviceType frame.ServiceType, protection bool, opcode frame.ControlOpcode, payload []byte) {
	f := frame.Frame{
		ConnectionID: conn,
		Header: frame.Header{
			ProtocolVersion: version,
			Protection:      protection,
			FrameType:       frame.Control,
			ServiceType:     serviceType,
			FrameData:       byte(opcode),
			SessionID:       sessionID,
		},
		Payload: payload,
	}
	if err := e.postOutbound(outboundFrame{f: f}); err != nil {
		log.Warnf("engine: failed to post control frame %v for conn %d session %d: %v", opcode, conn, sessionID, err)
	}
}

// sendServiceDataAck implements spec section 4.6.1's SERVICE_DATA_ACK
// row: a flow-control acknowledgement sent back to the peer every time
// an AUDIO or VIDEO logical message is delivered, carrying a running
// count of logical messages delivered for that (connection, session,
// service). A message reassembled from several frames counts once.
func (e *Engine) sendServiceDataAck(f frame.Frame) {
	key := serviceDataAckKey{conn: f.ConnectionID, sessionID: f.SessionID, serviceType: f.ServiceType}
	e.serviceDataAckCounters[key]++
	payload := frame.EncodeServiceDataAckPayload(e.serviceDataAckCounters[key])
	e.sendControl(f.ConnectionID, f.SessionID, f.ProtocolVersion, f.ServiceType, f.Protection, frame.OpServiceDataAck, payload)
}

func (e *Engine) sendControlWithMessageID(conn frame.ConnectionID, sessionID uint8, version uint8, serviceType frame.ServiceType, opcode frame.ControlOpcode, messageID uint32) {
	f := frame.Frame{
		ConnectionID: conn,
		Header: frame.Header{
			ProtocolVersion: version,
			FrameType:       frame.Control,
			ServiceType:     serviceType,
			FrameData:       byte(opcode),
			SessionID:       sessionID,
			MessageID:       messageID,
		},
	}
	if err := e.postOutbound(outboundFrame{f: f}); err != nil {
		log.Warnf("engine: failed to post control frame %v for conn %d session %d: %v", opcode, conn, sessionID, err)
	}
}
