// Package crypto implements the Crypto Gateway: a per-frame encrypt/
// decrypt shim that resolves a SecurityContext from (connection, session,
// service) and never touches CONTROL frames.
package crypto

import (
	"errors"

	"github.com/fordlink/protocolcore/pkg/frame"
	"github.com/fordlink/protocolcore/pkg/log"
	"github.com/fordlink/protocolcore/pkg/session"
	"github.com/fordlink/protocolcore/pkg/stderror"
)

// Outcome classifies a Decrypt call's result beyond a plain error, so
// callers can distinguish a protocol violation from a hard crypto
// failure without string-matching errors.
type Outcome uint8

const (
	OutcomeOK Outcome = iota
	OutcomeServiceNotProtected
	OutcomeDecryptionFailed
)

// ErrServiceNotProtected is returned by Decrypt when a protected-looking
// frame has no initialized context, i.e. the peer is claiming protection
// this connection never negotiated.
var ErrServiceNotProtected = stderror.WrapErrorWithType(errors.New("crypto: frame is protected but no initialized security context exists"), stderror.CRYPTO_ERROR)

// ErrDecryptionFailed wraps a context's Decrypt failure.
var ErrDecryptionFailed = stderror.WrapErrorWithType(errors.New("crypto: decryption failed"), stderror.CRYPTO_ERROR)

// ErrEncryptionFailed wraps a context's Encrypt failure.
var ErrEncryptionFailed = stderror.WrapErrorWithType(errors.New("crypto: encryption failed"), stderror.CRYPTO_ERROR)

// Gateway resolves SecurityContexts through a session.Observer and
// applies them to data-service frame payloads.
type Gateway struct {
	observer session.Observer
}

// New builds a Gateway that resolves contexts through observer.
func New(observer session.Observer) *Gateway {
	return &Gateway{observer: observer}
}

// Encrypt mirrors spec section 4.4. CONTROL frames (by frame type or
// service type) are returned unchanged. If no initialized context
// exists, the frame is returned unchanged (best-effort, unprotected). On
// a context Encrypt failure, the owning session is ended and
// ErrEncryptionFailed is returned.
func (g *Gateway) Encrypt(f frame.Frame) (frame.Frame, error) {
	if f.FrameType == frame.Control || f.ServiceType == frame.ServiceControl {
		return f, nil
	}

	key := g.observer.KeyOf(f.ConnectionID, f.SessionID)
	ctx := g.observer.SSLContextOf(key, f.ServiceType)
	if ctx == nil || !ctx.IsInitComplete() {
		return f, nil
	}

	cipherPayload, err := ctx.Encrypt(f.Payload)
	if err != nil {
		log.Errorf("crypto: Encrypt() failed for key %v service %v: %v", key, f.ServiceType, err)
		g.observer.EndSession(f.ConnectionID, f.SessionID, 0, f.ServiceType)
		return frame.Frame{}, ErrEncryptionFailed
	}

	out := f
	out.Payload = cipherPayload
	out.Protection = true
	return out, nil
}

// Decrypt mirrors spec section 4.4. Only data frames with the protection
// flag set are considered; everything else is returned unchanged. A
// protected frame with no initialized context is a protocol violation
// (OutcomeServiceNotProtected). A context Decrypt failure ends the
// session (OutcomeDecryptionFailed).
func (g *Gateway) Decrypt(f frame.Frame) (frame.Frame, Outcome, error) {
	if f.FrameType == frame.Control || f.ServiceType == frame.ServiceControl || !f.Protection {
		return f, OutcomeOK, nil
	}

	key := g.observer.KeyOf(f.ConnectionID, f.SessionID)
	ctx := g.observer.SSLContextOf(key, f.ServiceType)
	if ctx == nil || !ctx.IsInitComplete() {
		log.Warnf("crypto: protected frame for key %v service %v has no initialized context", key, f.ServiceType)
		return frame.Frame{}, OutcomeServiceNotProtected, ErrServiceNotProtected
	}

	plainPayload, err := ctx.Decrypt(f.Payload)
	if err != nil {
		log.Errorf("crypto: Decrypt() failed for key %v service %v: %v", key, f.ServiceType, err)
		g.observer.EndSession(f.ConnectionID, f.SessionID, 0, f.ServiceType)
		return frame.Frame{}, OutcomeDecryptionFailed, ErrDecryptionFailed
	}

	out := f
	out.Payload = plainPayload
	out.Protection = false
	return out, OutcomeOK, nil
}

// MaxBlockSize returns the maximum data payload per frame for
// serviceType within key: a protected service asks its context, an
// unprotected one gets rawMax unchanged (spec section 4.4).
func (g *Gateway) MaxBlockSize(key session.Key, serviceType frame.ServiceType, rawMax int) int {
	ctx := g.observer.SSLContextOf(key, serviceType)
	if ctx == nil || !ctx.IsInitComplete() {
		return rawMax
	}
	return ctx.MaxBlockSize(rawMax)
}
