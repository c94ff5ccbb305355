// Package cryptotest provides a real AEAD-backed session.SecurityContext
// for tests that want to exercise an actual encrypt/decrypt round trip
// instead of a bare stub. It is not part of the protocol core: key
// derivation and handshake orchestration stay a Security Manager concern
// external to this repository.
package cryptotest

import (
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/fordlink/protocolcore/pkg/session"
)

// ChaChaContext is a session.SecurityContext backed by a single
// long-lived ChaCha20-Poly1305 key. Nonces are a monotonic counter
// encoded big-endian into the last bytes of the AEAD nonce, sufficient for a test
// fixture that never reuses a context across processes.
type ChaChaContext struct {
	aead          cipher.AEAD
	nonceCounter  uint64
	initComplete  atomic.Bool
	handshakeBusy atomic.Bool
}

var _ session.SecurityContext = (*ChaChaContext)(nil)

// NewChaChaContext builds a context with a freshly generated random key.
// initComplete controls whether IsInitComplete() reports ready
// immediately (simulating a handshake that already finished) or not
// (simulating one still pending).
func NewChaChaContext(initComplete bool) (*ChaChaContext, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("cryptotest: rand.Read() failed: %w", err)
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("cryptotest: chacha20poly1305.New() failed: %w", err)
	}
	c := &ChaChaContext{aead: aead}
	c.initComplete.Store(initComplete)
	return c, nil
}

// Encrypt seals payload, prepending the nonce so Decrypt can recover it.
func (c *ChaChaContext) Encrypt(payload []byte) ([]byte, error) {
	nonce := c.nextNonce()
	sealed := c.aead.Seal(nil, nonce, payload, nil)
	return append(nonce, sealed...), nil
}

// Decrypt reverses Encrypt.
func (c *ChaChaContext) Decrypt(payload []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	if len(payload) < nonceSize {
		return nil, errors.New("cryptotest: ciphertext shorter than nonce")
	}
	nonce, ciphertext := payload[:nonceSize], payload[nonceSize:]
	return c.aead.Open(nil, nonce, ciphertext, nil)
}

// MaxBlockSize reserves room for the nonce and AEAD tag.
func (c *ChaChaContext) MaxBlockSize(raw int) int {
	overhead := c.aead.NonceSize() + c.aead.Overhead()
	if raw <= overhead {
		return 0
	}
	return raw - overhead
}

func (c *ChaChaContext) IsInitComplete() bool {
	return c.initComplete.Load()
}

func (c *ChaChaContext) IsHandshakePending() bool {
	return c.handshakeBusy.Load() && !c.initComplete.Load()
}

// CompleteHandshake simulates a Security Manager's handshake finishing,
// flipping IsInitComplete() to true and clearing the pending flag.
func (c *ChaChaContext) CompleteHandshake() {
	c.handshakeBusy.Store(false)
	c.initComplete.Store(true)
}

// StartHandshake simulates a Security Manager kicking off a handshake.
func (c *ChaChaContext) StartHandshake() {
	c.handshakeBusy.Store(true)
}

func (c *ChaChaContext) nextNonce() []byte {
	n := atomic.AddUint64(&c.nonceCounter, 1)
	nonce := make([]byte, c.aead.NonceSize())
	for i := 0; i < 8 && i < len(nonce); i++ {
		nonce[len(nonce)-1-i] = byte(n >> (8 * i))
	}
	return nonce
}
