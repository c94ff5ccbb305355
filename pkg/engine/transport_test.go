package engine

import (
	"sync"

	"github.com/fordlink/protocolcore/pkg/frame"
)

// fakeTransport is a test double for Transport. Every sent frame is
// published on sentCh so a test can assert on it with a select/timeout.
// Disconnect calls are recorded for inspection.
type fakeTransport struct {
	mu          sync.Mutex
	nextToken   uint64
	sentCh      chan frame.Frame
	disconnects []frame.ConnectionID
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{sentCh: make(chan frame.Frame, 64)}
}

func (t *fakeTransport) Send(conn frame.ConnectionID, f frame.Frame) (uint64, error) {
	t.mu.Lock()
	t.nextToken++
	token := t.nextToken
	t.mu.Unlock()
	t.sentCh <- f
	return token, nil
}

func (t *fakeTransport) Disconnect(conn frame.ConnectionID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disconnects = append(t.disconnects, conn)
}

func (t *fakeTransport) disconnectCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.disconnects)
}

func (t *fakeTransport) lastDisconnect() frame.ConnectionID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.disconnects[len(t.disconnects)-1]
}

// collector is a test double for Subscriber. Every delivery is published
// on deliveredCh so a test can assert on it with a select/timeout.
type collector struct {
	mu          sync.Mutex
	msgs        []LogicalMessage
	deliveredCh chan LogicalMessage
}

func newCollector() *collector {
	return &collector{deliveredCh: make(chan LogicalMessage, 64)}
}

func (c *collector) Deliver(msg LogicalMessage) {
	c.mu.Lock()
	c.msgs = append(c.msgs, msg)
	c.mu.Unlock()
	c.deliveredCh <- msg
}

func (c *collector) all() []LogicalMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]LogicalMessage(nil), c.msgs...)
}
