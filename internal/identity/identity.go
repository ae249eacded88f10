// Package identity supplies the per-session identifier attached to
// ledger writes. The mirror side of the engine is never gated on it.
package identity

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"ledgersync/internal/core"
)

// Provider yields a stable session identifier after an asynchronous
// handshake. Callers must tolerate the not-yet-ready state; only
// mutations require a session.
type Provider interface {
	// Session blocks until the handshake completes or ctx ends.
	Session(ctx context.Context) (string, error)
	// Ready reports whether the handshake has already completed.
	Ready() bool
}

// Anonymous signs the process in lazily: the first Session call
// performs the handshake and mints a random session id, which then
// stays stable for the provider's lifetime.
type Anonymous struct {
	mu sync.Mutex
	id string
}

func NewAnonymous() *Anonymous {
	return &Anonymous{}
}

func (a *Anonymous) Session(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrAuth, err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.id == "" {
		a.id = uuid.NewString()
	}
	return a.id, nil
}

func (a *Anonymous) Ready() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.id != ""
}

// Static returns a fixed session id, for token-configured deployments
// and tests.
type Static string

func (s Static) Session(context.Context) (string, error) {
	if s == "" {
		return "", fmt.Errorf("%w: empty session token", core.ErrAuth)
	}
	return string(s), nil
}

func (s Static) Ready() bool {
	return s != ""
}
