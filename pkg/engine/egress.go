package engine

import (
	"context"
	"math"

	"github.com/fordlink/protocolcore/pkg/frame"
	"github.com/fordlink/protocolcore/pkg/log"
	"github.com/fordlink/protocolcore/pkg/mathext"
	"github.com/fordlink/protocolcore/pkg/metrics"
	"github.com/fordlink/protocolcore/pkg/stderror"
)

// Send implements spec section 4.6 "Egress — Send". It resolves the
// per-session max frame size (asking the Crypto Gateway for the
// protected ceiling when one applies), allocates message ids from the
// shared session-counter map, and posts one or more already-numbered
// frames to the egress queue. final marks the logical message's last
// frame for the Final-Send Tracker.
func (e *Engine) Send(msg LogicalMessage, final bool) error {
	if !e.isStarted() {
		return stderror.WrapErrorWithType(stderror.ErrNotReady, stderror.UNKNOWN_ERROR)
	}

	version := e.observer.ProtocolVersionOf(msg.ConnectionID, msg.SessionID)
	if version == 0 {
		version = e.cfg.SelectOutboundVersion()
	}

	maxFrameSize := int(e.cfg.MaximumPayloadSize) - frame.HeaderSize(version)
	if maxFrameSize <= 0 {
		return stderror.WrapErrorWithType(stderror.ErrInvalidArgument, stderror.VALIDATION_ERROR)
	}
	key := e.observer.KeyOf(msg.ConnectionID, msg.SessionID)
	maxFrameSize = e.gateway.MaxBlockSize(key, msg.ServiceType, maxFrameSize)

	dataSize := len(msg.Payload)
	if dataSize <= maxFrameSize {
		messageID := e.nextMessageID(msg.ConnectionID, msg.SessionID)
		f := frame.Frame{
			ConnectionID: msg.ConnectionID,
			Header: frame.Header{
				ProtocolVersion: version,
				FrameType:       frame.Single,
				ServiceType:     msg.ServiceType,
				SessionID:       msg.SessionID,
				MessageID:       messageID,
			},
			Payload: msg.Payload,
		}
		return e.postOutbound(outboundFrame{f: f, final: final})
	}

	frameCount := int(math.Ceil(float64(dataSize) / float64(maxFrameSize)))
	messageID := e.nextMessageID(msg.ConnectionID, msg.SessionID)

	first := frame.Frame{
		ConnectionID: msg.ConnectionID,
		Header: frame.Header{
			ProtocolVersion: version,
			FrameType:       frame.First,
			ServiceType:     msg.ServiceType,
			SessionID:       msg.SessionID,
			MessageID:       messageID,
		},
		Payload: frame.EncodeFirstPayload(uint32(dataSize), uint32(frameCount)),
	}
	if err := e.postOutbound(outboundFrame{f: first}); err != nil {
		return err
	}

	offset := 0
	for k := 0; k < frameCount; k++ {
		end := mathext.Min(offset+maxFrameSize, dataSize)
		isLast := k == frameCount-1
		var frameData uint8
		if !isLast {
			frameData = uint8((k % 254) + 1)
		}
		c := frame.Frame{
			ConnectionID: msg.ConnectionID,
			Header: frame.Header{
				ProtocolVersion: version,
				FrameType:       frame.Consecutive,
				ServiceType:     msg.ServiceType,
				FrameData:       frameData,
				SessionID:       msg.SessionID,
				MessageID:       messageID,
			},
			Payload: msg.Payload[offset:end],
		}
		if err := e.postOutbound(outboundFrame{f: c, final: isLast && final}); err != nil {
			return err
		}
		offset = end
	}
	return nil
}

func (e *Engine) nextMessageID(conn frame.ConnectionID, sessionID uint8) uint32 {
	key := sessionCounterKey{conn: conn, sessionID: sessionID}
	e.counterMu.Lock()
	defer e.counterMu.Unlock()
	id := e.sessionCounters[key]
	e.sessionCounters[key] = id + 1
	return id
}

func (e *Engine) resetCounter(conn frame.ConnectionID, sessionID uint8) {
	key := sessionCounterKey{conn: conn, sessionID: sessionID}
	e.counterMu.Lock()
	defer e.counterMu.Unlock()
	delete(e.sessionCounters, key)
}

func (e *Engine) postOutbound(of outboundFrame) error {
	select {
	case e.egressCh <- of:
		return nil
	case <-e.stopCh:
		return stderror.WrapErrorWithType(stderror.ErrNotRunning, stderror.UNKNOWN_ERROR)
	}
}

// runEgressWorker is the single consumer of the egress queue. It is also
// the sole handler of send-confirmations, which is why the Final-Send
// Tracker, Ready-To-Close Set, and pending-token map need no lock.
func (e *Engine) runEgressWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case of := <-e.egressCh:
			e.sendOutbound(of)
		case c := <-e.confirmCh:
			e.handleConfirm(c.token)
		}
	}
}

func (e *Engine) sendOutbound(of outboundFrame) {
	if of.final {
		e.finalSendTrackr[trackerKey{sessionID: of.f.SessionID, messageID: of.f.MessageID}] = struct{}{}
	}

	out, err := e.gateway.Encrypt(of.f)
	if err != nil {
		metrics.EncryptFailures.Add(1)
		log.Warnf("engine: egress Encrypt() for conn %d session %d: %v", of.f.ConnectionID, of.f.SessionID, err)
		return
	}

	token, err := e.transport.Send(out.ConnectionID, out)
	if err != nil {
		if stderror.IsClosed(err) || stderror.IsEOF(err) {
			log.Debugf("engine: Transport.Send() for conn %d session %d: connection gone: %v", out.ConnectionID, out.SessionID, err)
		} else {
			log.Warnf("engine: Transport.Send() for conn %d session %d: %v", out.ConnectionID, out.SessionID, err)
		}
		return
	}
	e.pendingByToken[token] = pendingSend{
		conn:      out.ConnectionID,
		sessionID: out.SessionID,
		messageID: out.MessageID,
		frameType: out.FrameType,
		frameData: out.FrameData,
		final:     of.final,
	}
}

func (e *Engine) handleConfirm(token uint64) {
	pending, ok := e.pendingByToken[token]
	if !ok {
		log.Warnf("engine: send-confirm for unknown token %d", token)
		return
	}
	delete(e.pendingByToken, token)

	if e.readyToClose.Has(pending.conn) {
		e.readyToClose.Delete(pending.conn)
		e.transport.Disconnect(pending.conn)
		return
	}

	isClosingFrame := pending.frameType == frame.Single || (pending.frameType == frame.Consecutive && pending.frameData == 0)
	tkey := trackerKey{sessionID: pending.sessionID, messageID: pending.messageID}
	if _, tracked := e.finalSendTrackr[tkey]; pending.final && isClosingFrame && tracked {
		delete(e.finalSendTrackr, tkey)
		e.readyToClose.ReplaceOrInsert(pending.conn)
		e.enqueueCourtesyEndService(pending.conn, pending.sessionID)
	}
}

// enqueueCourtesyEndService builds and sends the END_SERVICE control
// frame spec section 4.6 "Egress — Final-message tracking" requires once
// a connection enters the Ready-To-Close Set.
func (e *Engine) enqueueCourtesyEndService(conn frame.ConnectionID, sessionID uint8) {
	version := e.observer.ProtocolVersionOf(conn, sessionID)
	if version == 0 {
		version = e.cfg.SelectOutboundVersion()
	}
	f := frame.Frame{
		ConnectionID: conn,
		Header: frame.Header{
			ProtocolVersion: version,
			FrameType:       frame.Control,
			ServiceType:     frame.ServiceRPC,
			FrameData:       byte(frame.OpEndService),
			SessionID:       sessionID,
		},
		Payload: frame.EncodeEndServicePayload(version, frame.HashIDNotSupported),
	}
	e.sendOutbound(outboundFrame{f: f})
}
