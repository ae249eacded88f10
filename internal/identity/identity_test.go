package identity

import (
	"context"
	"errors"
	"testing"

	"ledgersync/internal/core"
)

func TestAnonymousSessionIsStable(t *testing.T) {
	p := NewAnonymous()
	ctx := context.Background()

	if p.Ready() {
		t.Fatalf("expected not ready before handshake")
	}

	first, err := p.Session(ctx)
	if err != nil || first == "" {
		t.Fatalf("session: %q, %v", first, err)
	}
	if !p.Ready() {
		t.Fatalf("expected ready after handshake")
	}

	second, err := p.Session(ctx)
	if err != nil || second != first {
		t.Fatalf("session id changed: %q then %q (err=%v)", first, second, err)
	}
}

func TestAnonymousHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewAnonymous().Session(ctx); !errors.Is(err, core.ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
}

func TestStatic(t *testing.T) {
	p := Static("session-1")
	if !p.Ready() {
		t.Fatalf("expected ready")
	}
	id, err := p.Session(context.Background())
	if err != nil || id != "session-1" {
		t.Fatalf("session: %q, %v", id, err)
	}

	var empty Static
	if empty.Ready() {
		t.Fatalf("empty token must not be ready")
	}
	if _, err := empty.Session(context.Background()); !errors.Is(err, core.ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
}
