// Package reassembly implements the Multi-Frame Reassembler: it maps
// (connection, session) to an in-progress logical message, concatenates
// CONSECUTIVE frame payloads, and releases the message on LAST.
package reassembly

import (
	"fmt"
	"sync"

	"github.com/google/btree"

	"github.com/fordlink/protocolcore/pkg/frame"
	"github.com/fordlink/protocolcore/pkg/log"
)

// Outcome is the result of feeding one frame to the Reassembler.
type Outcome uint8

const (
	InProgress Outcome = iota
	Complete
	Error
)

// Message is a fully reassembled logical message.
type Message struct {
	ConnectionID frame.ConnectionID
	SessionID    uint8
	ServiceType  frame.ServiceType
	MessageID    uint32
	Payload      []byte
}

// slotKey identifies one in-progress message by (connection, session).
// Ordering by ConnectionID then SessionID gives the backing btree a
// deterministic iteration order, used by diagnostics and tests.
type slotKey struct {
	conn    frame.ConnectionID
	session uint8
}

func (k slotKey) less(other slotKey) bool {
	if k.conn != other.conn {
		return k.conn < other.conn
	}
	return k.session < other.session
}

type slot struct {
	key         slotKey
	serviceType frame.ServiceType
	messageID   uint32
	totalSize   uint32
	totalFrames uint32
	buf         []byte
}

func slotLess(a, b *slot) bool {
	return a.key.less(b.key)
}

// Reassembler holds one in-progress slot per (connection, session).
type Reassembler struct {
	mu    sync.Mutex
	slots map[slotKey]*slot
	index *btree.BTreeG[*slot]
}

// New builds an empty Reassembler.
func New() *Reassembler {
	return &Reassembler{
		slots: make(map[slotKey]*slot),
		index: btree.NewG(4, slotLess),
	}
}

// Accept feeds one frame into the Reassembler. f.FrameType must be FIRST
// or CONSECUTIVE; SINGLE and CONTROL frames never reach this component.
func (r *Reassembler) Accept(f frame.Frame) (Outcome, *Message, error) {
	key := slotKey{conn: f.ConnectionID, session: f.SessionID}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch f.FrameType {
	case frame.First:
		return r.acceptFirst(key, f)
	case frame.Consecutive:
		return r.acceptConsecutive(key, f)
	default:
		return Error, nil, fmt.Errorf("reassembly: Accept() called with frame type %v", f.FrameType)
	}
}

func (r *Reassembler) acceptFirst(key slotKey, f frame.Frame) (Outcome, *Message, error) {
	totalSize, totalFrames, err := frame.DecodeFirstPayload(f.Payload)
	if err != nil {
		return Error, nil, fmt.Errorf("reassembly: FIRST frame: %w", err)
	}

	if old, ok := r.slots[key]; ok {
		log.Debugf("reassembly: replacing in-progress message for %v (%d/%d bytes received)", key, len(old.buf), old.totalSize)
		r.removeSlot(old)
	}

	s := &slot{
		key:         key,
		serviceType: f.ServiceType,
		messageID:   f.MessageID,
		totalSize:   totalSize,
		totalFrames: totalFrames,
		buf:         make([]byte, 0, totalSize),
	}
	r.slots[key] = s
	r.index.ReplaceOrInsert(s)
	return InProgress, nil, nil
}

func (r *Reassembler) acceptConsecutive(key slotKey, f frame.Frame) (Outcome, *Message, error) {
	s, ok := r.slots[key]
	if !ok {
		return Error, nil, fmt.Errorf("reassembly: CONSECUTIVE frame for %v with no FIRST frame on record", key)
	}

	s.buf = append(s.buf, f.Payload...)

	if f.FrameData == 0 {
		// LAST frame.
		if uint32(len(s.buf)) != s.totalSize {
			r.removeSlot(s)
			return Error, nil, fmt.Errorf("reassembly: %v accumulated %d bytes, want %d", key, len(s.buf), s.totalSize)
		}
		msg := &Message{
			ConnectionID: key.conn,
			SessionID:    key.session,
			ServiceType:  s.serviceType,
			MessageID:    s.messageID,
			Payload:      s.buf,
		}
		r.removeSlot(s)
		return Complete, msg, nil
	}

	if uint32(len(s.buf)) > s.totalSize {
		r.removeSlot(s)
		return Error, nil, fmt.Errorf("reassembly: %v overshot total_size %d", key, s.totalSize)
	}
	return InProgress, nil, nil
}

func (r *Reassembler) removeSlot(s *slot) {
	delete(r.slots, s.key)
	r.index.Delete(s)
}

// RemoveConnection discards every in-progress slot for conn, e.g. when
// the connection closes.
func (r *Reassembler) RemoveConnection(conn frame.ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var toRemove []*slot
	r.index.Ascend(func(s *slot) bool {
		if s.key.conn == conn {
			toRemove = append(toRemove, s)
		}
		return true
	})
	for _, s := range toRemove {
		r.removeSlot(s)
	}
}

// DropSession discards the in-progress slot for (conn, sessionID), if
// any. Called by the Engine on session end so a late FIRST/CONSECUTIVE
// frame for the ended session cannot complete reassembly and be
// delivered after the session is gone.
func (r *Reassembler) DropSession(conn frame.ConnectionID, sessionID uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := slotKey{conn: conn, session: sessionID}
	s, ok := r.slots[key]
	if !ok {
		return
	}
	r.removeSlot(s)
}

// Len reports how many slots are currently in progress, across every
// connection.
func (r *Reassembler) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.index.Len()
}
