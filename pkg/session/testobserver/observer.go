// Package testobserver provides an in-memory session.Observer for tests
// that exercise pkg/crypto and pkg/engine without a real session-owning
// application attached.
package testobserver

import (
	"fmt"
	"sync"

	"github.com/fordlink/protocolcore/pkg/bimap"
	"github.com/fordlink/protocolcore/pkg/frame"
	"github.com/fordlink/protocolcore/pkg/session"
)

type connSession struct {
	conn    frame.ConnectionID
	session uint8
}

type serviceState struct {
	ctx       session.SecurityContext
	protected bool
}

// Observer is a minimal, non-production session.Observer: it assigns
// session ids sequentially, tracks protocol versions and heartbeat
// support explicitly set by the test, and records every malformed/flood
// notification it receives for assertions.
type Observer struct {
	mu sync.Mutex

	keys        *bimap.BiMap[connSession, session.Key]
	nextSession uint8
	nextHashID  uint32

	versions  map[connSession]uint8
	heartbeat map[connSession]bool
	contexts  map[session.Key]map[frame.ServiceType]*serviceState

	malformed []session.Key
	flood     []session.Key
	keptAlive []connSession
}

var _ session.Observer = (*Observer)(nil)

// New builds an empty Observer. Session ids start at 1 (0 is reserved by
// the wire protocol to mean "refused").
func New() *Observer {
	return &Observer{
		keys:        bimap.NewBiMap[connSession, session.Key](),
		nextSession: 1,
		nextHashID:  1,
		versions:    make(map[connSession]uint8),
		heartbeat:   make(map[connSession]bool),
		contexts:    make(map[session.Key]map[frame.ServiceType]*serviceState),
	}
}

// SetProtocolVersion fixes the protocol version ProtocolVersionOf will
// report for (conn, sessionID), and derives HeartbeatSupported from it
// (v3, v4 support heartbeat).
func (o *Observer) SetProtocolVersion(conn frame.ConnectionID, sessionID uint8, version uint8) {
	o.mu.Lock()
	defer o.mu.Unlock()
	cs := connSession{conn, sessionID}
	o.versions[cs] = version
	o.heartbeat[cs] = version == frame.Version3 || version == frame.Version4
}

// SetContext installs ctx as the SecurityContext for serviceType within
// the session named by key.
func (o *Observer) SetContext(key session.Key, serviceType frame.ServiceType, ctx session.SecurityContext) {
	o.mu.Lock()
	defer o.mu.Unlock()
	services, ok := o.contexts[key]
	if !ok {
		services = make(map[frame.ServiceType]*serviceState)
		o.contexts[key] = services
	}
	services[serviceType] = &serviceState{ctx: ctx}
}

func (o *Observer) StartSession(conn frame.ConnectionID, requestedSessionID uint8, serviceType frame.ServiceType, protectionRequested bool) (uint8, uint32) {
	o.mu.Lock()
	defer o.mu.Unlock()

	sessionID := requestedSessionID
	if sessionID == 0 {
		sessionID = o.nextSession
		o.nextSession++
	}
	cs := connSession{conn, sessionID}
	key := session.Key(fmt.Sprintf("%d:%d", conn, sessionID))
	o.keys.Insert(cs, key)

	hashID := o.nextHashID
	o.nextHashID++
	return sessionID, hashID
}

func (o *Observer) EndSession(conn frame.ConnectionID, sessionID uint8, hashID uint32, serviceType frame.ServiceType) session.Key {
	o.mu.Lock()
	defer o.mu.Unlock()

	cs := connSession{conn, sessionID}
	key, ok := o.keys.Get(cs)
	if !ok {
		return ""
	}
	return key
}

func (o *Observer) KeyOf(conn frame.ConnectionID, sessionID uint8) session.Key {
	o.mu.Lock()
	defer o.mu.Unlock()
	key, ok := o.keys.Get(connSession{conn, sessionID})
	if !ok {
		return ""
	}
	return key
}

func (o *Observer) ProtocolVersionOf(conn frame.ConnectionID, sessionID uint8) uint8 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.versions[connSession{conn, sessionID}]
}

func (o *Observer) SSLContextOf(key session.Key, serviceType frame.ServiceType) session.SecurityContext {
	o.mu.Lock()
	defer o.mu.Unlock()
	services, ok := o.contexts[key]
	if !ok {
		return nil
	}
	st, ok := services[serviceType]
	if !ok {
		return nil
	}
	return st.ctx
}

func (o *Observer) OnMalformed(key session.Key) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.malformed = append(o.malformed, key)
}

func (o *Observer) OnFlood(key session.Key) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.flood = append(o.flood, key)
}

func (o *Observer) SetProtection(key session.Key, serviceType frame.ServiceType) {
	o.mu.Lock()
	defer o.mu.Unlock()
	services, ok := o.contexts[key]
	if !ok {
		services = make(map[frame.ServiceType]*serviceState)
		o.contexts[key] = services
	}
	st, ok := services[serviceType]
	if !ok {
		st = &serviceState{}
		services[serviceType] = st
	}
	st.protected = true
}

// IsProtected reports whether serviceType within key was marked
// protected by a prior SetProtection call. An unknown key or service
// reports false.
func (o *Observer) IsProtected(key session.Key, serviceType frame.ServiceType) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	services, ok := o.contexts[key]
	if !ok {
		return false
	}
	st, ok := services[serviceType]
	if !ok {
		return false
	}
	return st.protected
}

func (o *Observer) HeartbeatSupported(conn frame.ConnectionID, sessionID uint8) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.heartbeat[connSession{conn, sessionID}]
}

func (o *Observer) KeepAlive(conn frame.ConnectionID, sessionID uint8) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.keptAlive = append(o.keptAlive, connSession{conn, sessionID})
}

// MalformedCalls returns every key OnMalformed was called with, in order.
func (o *Observer) MalformedCalls() []session.Key {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]session.Key(nil), o.malformed...)
}

// FloodCalls returns every key OnFlood was called with, in order.
func (o *Observer) FloodCalls() []session.Key {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]session.Key(nil), o.flood...)
}
