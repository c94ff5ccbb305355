package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/btree"

	"github.com/fordlink/protocolcore/pkg/crypto"
	"github.com/fordlink/protocolcore/pkg/frame"
	"github.com/fordlink/protocolcore/pkg/inbound"
	"github.com/fordlink/protocolcore/pkg/log"
	"github.com/fordlink/protocolcore/pkg/metrics"
	"github.com/fordlink/protocolcore/pkg/ratemeter"
	"github.com/fordlink/protocolcore/pkg/reassembly"
	"github.com/fordlink/protocolcore/pkg/session"
	"github.com/fordlink/protocolcore/pkg/stderror"
)

// Subscriber receives reassembled logical messages. The Engine never
// interprets message content; it only hands payloads upward.
type Subscriber interface {
	Deliver(msg LogicalMessage)
}

type sessionCounterKey struct {
	conn      frame.ConnectionID
	sessionID uint8
}

type serviceDataAckKey struct {
	conn        frame.ConnectionID
	sessionID   uint8
	serviceType frame.ServiceType
}

type trackerKey struct {
	sessionID uint8
	messageID uint32
}

type pendingSend struct {
	conn      frame.ConnectionID
	sessionID uint8
	messageID uint32
	frameType frame.FrameType
	frameData uint8
	final     bool
}

// outboundFrame is one fully-built, already-numbered wire frame waiting
// on the egress queue. final marks the last frame of a Send() call, per
// spec section 4.6 "Egress — Final-message tracking".
type outboundFrame struct {
	f     frame.Frame
	final bool
}

type sentConfirmation struct {
	token uint64
}

// Engine is the Protocol Engine: it owns the ingress and egress
// pipelines, the control sub-protocol state machine, multi-frame
// fragmentation on send, session-counter bookkeeping, final-message
// tracking, and disconnect scheduling.
type Engine struct {
	cfg       Config
	observer  session.Observer
	manager   session.Manager
	transport Transport

	inHandler   *inbound.Handler
	reassembler *reassembly.Reassembler
	gateway     *crypto.Gateway

	wellFormedMeter *ratemeter.Meter
	malformedMeter  *ratemeter.Meter

	subMu       sync.Mutex
	subscribers []Subscriber

	ingressCh chan frame.Frame
	egressCh  chan outboundFrame
	confirmCh chan sentConfirmation

	// sessionCounters is the one piece of state spec section 5 calls out
	// as shared-and-mutexed: Send() callers allocate message ids from it
	// directly, from whichever goroutine calls Send.
	counterMu       sync.Mutex
	sessionCounters map[sessionCounterKey]uint32

	// Owned exclusively by the egress worker; spec section 5 calls these
	// single-owner state that needs no lock.
	finalSendTrackr map[trackerKey]struct{}
	pendingByToken  map[uint64]pendingSend
	readyToClose    *btree.BTreeG[frame.ConnectionID]

	// serviceDataAckCounters is owned exclusively by the ingress worker: it
	// is only read and incremented from handleIngressFrame, so it needs no
	// lock either, for the same reason as the egress worker's single-owner
	// state above.
	serviceDataAckCounters map[serviceDataAckKey]uint32

	startMu sync.Mutex
	started bool

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}
}

// New builds an Engine. manager may be nil if no Security Manager is
// configured, in which case every service starts unprotected.
func New(cfg Config, observer session.Observer, manager session.Manager, transport Transport) *Engine {
	if cfg.IngressQueueCapacity <= 0 {
		cfg.IngressQueueCapacity = 256
	}
	if cfg.EgressQueueCapacity <= 0 {
		cfg.EgressQueueCapacity = 256
	}
	e := &Engine{
		cfg:                    cfg,
		observer:               observer,
		manager:                manager,
		transport:              transport,
		inHandler:              inbound.NewHandler(cfg.MaximumPayloadSize),
		reassembler:            reassembly.New(),
		gateway:                crypto.New(observer),
		wellFormedMeter:        ratemeter.New(cfg.MessageFrequencyTime, cfg.MessageFrequencyCount),
		malformedMeter:         ratemeter.New(cfg.MalformedMessageFrequencyTime, cfg.MalformedMessageFrequencyCount),
		ingressCh:              make(chan frame.Frame, cfg.IngressQueueCapacity),
		egressCh:               make(chan outboundFrame, cfg.EgressQueueCapacity),
		confirmCh:              make(chan sentConfirmation, cfg.EgressQueueCapacity),
		sessionCounters:        make(map[sessionCounterKey]uint32),
		finalSendTrackr:        make(map[trackerKey]struct{}),
		pendingByToken:         make(map[uint64]pendingSend),
		readyToClose:           btree.NewG(4, func(a, b frame.ConnectionID) bool { return a < b }),
		serviceDataAckCounters: make(map[serviceDataAckKey]uint32),
		stopCh:                 make(chan struct{}),
	}
	return e
}

// AddSubscriber registers a consumer of reassembled logical messages.
func (e *Engine) AddSubscriber(s Subscriber) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	e.subscribers = append(e.subscribers, s)
}

func (e *Engine) deliver(msg LogicalMessage) {
	e.subMu.Lock()
	subs := append([]Subscriber(nil), e.subscribers...)
	e.subMu.Unlock()
	for _, s := range subs {
		s.Deliver(msg)
	}
}

// AddConnection registers a new connection with the Incoming Data
// Handler so OnBytes can be called for it.
func (e *Engine) AddConnection(conn frame.ConnectionID) {
	e.inHandler.AddConnection(conn)
}

// RemoveConnection tears down every piece of per-connection state: the
// parse accumulator, in-progress reassembly slots, and rate-meter
// buckets keyed by this connection. No subsequent OnBytes call for conn
// will deliver a frame afterward (spec section 8 invariant).
func (e *Engine) RemoveConnection(conn frame.ConnectionID) {
	e.inHandler.RemoveConnection(conn)
	e.reassembler.RemoveConnection(conn)
	for s := 0; s <= 255; s++ {
		e.wellFormedMeter.RemoveConnection(e.connKey(conn, uint8(s)))
	}
	e.malformedMeter.RemoveConnection(fmt.Sprintf("%d:malformed", conn))
}

// Start launches the ingress and egress workers. Each is a single-
// threaded consumer of its respective queue, per the concurrency model.
// Calling Start a second time is a caller error, not a no-op.
func (e *Engine) Start(ctx context.Context) error {
	e.startMu.Lock()
	if e.started {
		e.startMu.Unlock()
		return stderror.WrapErrorWithType(stderror.ErrAlreadyStarted, stderror.UNKNOWN_ERROR)
	}
	e.started = true
	e.startMu.Unlock()

	e.wg.Add(2)
	go func() {
		defer e.wg.Done()
		e.runIngressWorker(ctx)
	}()
	go func() {
		defer e.wg.Done()
		e.runEgressWorker(ctx)
	}()
	return nil
}

// isStarted reports whether Start has run. Send uses it to distinguish
// "not ready yet" from "stopped for good" (stopCh).
func (e *Engine) isStarted() bool {
	e.startMu.Lock()
	defer e.startMu.Unlock()
	return e.started
}

// Stop joins both workers: each finishes the item it is handling and
// exits, and whatever is still queued is discarded. A handshake listener
// registered by handleStartService that fires once Stop has been called
// returns without acting.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
	e.wg.Wait()
}

func (e *Engine) connKey(conn frame.ConnectionID, sessionID uint8) string {
	return fmt.Sprintf("%d:%d", conn, sessionID)
}

// OnBytes is the Transport callback entry point: it runs the Incoming
// Data Handler synchronously (framing is CPU-bound and deterministic)
// and enqueues the resulting frames onto the ingress queue in wire
// order. Rate enforcement happens here, before anything reaches the
// ingress worker, per spec section 4.6 "Ingress rate enforcement".
func (e *Engine) OnBytes(conn frame.ConnectionID, b []byte) {
	frames, status, malformedCount := e.inHandler.Process(conn, b)
	metrics.FramesParsed.Add(int64(len(frames)))

	if status == inbound.StatusFail {
		log.Warnf("engine: OnBytes() forcing disconnect of unknown connection %d", conn)
		e.transport.Disconnect(conn)
		return
	}

	if status == inbound.StatusMalformedOccurs {
		metrics.FramesResynced.Add(1)
		metrics.MalformedBytes.Add(int64(malformedCount))
		e.handleMalformed(conn, malformedCount, len(frames) > 0)
		if !e.cfg.MalformedMessageFiltering {
			// Malformed filtering is off: spec section 4.6 "Ingress rate
			// enforcement" requires on_malformed fire immediately and no
			// co-discovered frame from this batch be delivered.
			metrics.FramesRejected.Add(int64(len(frames)))
			return
		}
	}

	for _, f := range frames {
		if f.ServiceType != frame.ServiceAudio && f.ServiceType != frame.ServiceVideo {
			key := e.connKey(f.ConnectionID, f.SessionID)
			rate := e.wellFormedMeter.Track(key, 1)
			if e.wellFormedMeter.Exceeded(rate) {
				observerKey := e.observer.KeyOf(f.ConnectionID, f.SessionID)
				e.observer.OnFlood(observerKey)
				e.wellFormedMeter.Reset(key)
				metrics.RateLimitFlood.Add(1)
				metrics.FramesRejected.Add(1)
				continue
			}
		}
		select {
		case e.ingressCh <- f:
		case <-e.stopCh:
			return
		}
	}
}

func (e *Engine) handleMalformed(conn frame.ConnectionID, malformedCount int, anyFramesProduced bool) {
	observerKey := e.observer.KeyOf(conn, 0)
	if !e.cfg.MalformedMessageFiltering {
		e.observer.OnMalformed(observerKey)
		return
	}
	if !anyFramesProduced {
		return
	}
	key := fmt.Sprintf("%d:malformed", conn)
	rate := e.malformedMeter.Track(key, uint64(malformedCount))
	if e.malformedMeter.Exceeded(rate) {
		metrics.RateLimitMalformed.Add(1)
		e.observer.OnMalformed(observerKey)
		e.malformedMeter.Reset(key)
	}
}

// OnMessageSent is the Transport callback for a confirmed send. It is
// itself posted onto the egress queue so the Final-Send Tracker and
// Ready-To-Close Set stay single-owner (spec section 5).
func (e *Engine) OnMessageSent(token uint64) {
	select {
	case e.confirmCh <- sentConfirmation{token: token}:
	case <-e.stopCh:
	}
}
