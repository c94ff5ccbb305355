package engine

import (
	"context"

	"github.com/fordlink/protocolcore/pkg/frame"
	"github.com/fordlink/protocolcore/pkg/log"
	"github.com/fordlink/protocolcore/pkg/metrics"
	"github.com/fordlink/protocolcore/pkg/reassembly"
)

// runIngressWorker is the single consumer of the ingress queue and the
// only goroutine that feeds frames to the Reassembler. RemoveConnection
// may drop slots from another goroutine; the Reassembler's own mutex
// serializes that.
func (e *Engine) runIngressWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case f := <-e.ingressCh:
			e.handleIngressFrame(f)
		}
	}
}

func (e *Engine) handleIngressFrame(f frame.Frame) {
	plain, outcome, err := e.gateway.Decrypt(f)
	if err != nil {
		metrics.DecryptFailures.Add(1)
		log.Warnf("engine: ingress Decrypt() for conn %d session %d: %v (outcome %d)", f.ConnectionID, f.SessionID, err, outcome)
		return
	}

	if plain.FrameType == frame.Control {
		e.handleControlFrame(plain)
		return
	}

	switch plain.FrameType {
	case frame.Single:
		e.deliver(LogicalMessage{
			ConnectionID: plain.ConnectionID,
			SessionID:    plain.SessionID,
			ServiceType:  plain.ServiceType,
			Payload:      plain.Payload,
		})
		e.observer.KeepAlive(plain.ConnectionID, plain.SessionID)
		if plain.ServiceType == frame.ServiceAudio || plain.ServiceType == frame.ServiceVideo {
			e.sendServiceDataAck(plain)
		}
	case frame.First, frame.Consecutive:
		outcome, msg, err := e.reassembler.Accept(plain)
		switch outcome {
		case reassembly.Complete:
			metrics.ReassemblyComplete.Add(1)
			e.deliver(LogicalMessage{
				ConnectionID: msg.ConnectionID,
				SessionID:    msg.SessionID,
				ServiceType:  msg.ServiceType,
				Payload:      msg.Payload,
			})
			e.observer.KeepAlive(plain.ConnectionID, plain.SessionID)
			if msg.ServiceType == frame.ServiceAudio || msg.ServiceType == frame.ServiceVideo {
				e.sendServiceDataAck(plain)
			}
		case reassembly.Error:
			metrics.ReassemblyErrors.Add(1)
			log.Warnf("engine: reassembly failed for conn %d session %d: %v", plain.ConnectionID, plain.SessionID, err)
		case reassembly.InProgress:
		}
	default:
		log.Warnf("engine: ingress frame for conn %d has unexpected frame type %v", plain.ConnectionID, plain.FrameType)
	}
}
