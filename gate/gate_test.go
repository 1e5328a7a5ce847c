package gate_test

import (
	"context"
	"errors"
	"testing"

	"github.com/diewo77/go-quotations/gate"
)

// mockPolicy is a simple policy for testing with uint user type.
type mockPolicy struct {
	allowAll bool
}

func (p *mockPolicy) Can(_ context.Context, _ uint, _ gate.Action, _ any) bool {
	return p.allowAll
}

func TestGate_Authorize_NoUser(t *testing.T) {
	g := gate.NewGate[uint]()
	g.Register("test", &mockPolicy{allowAll: true})

	err := g.Authorize(context.Background(), 0, gate.ActionView, "test", nil)
	if err != gate.ErrUnauthenticated {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestGate_Authorize_NoPolicy(t *testing.T) {
	g := gate.NewGate[uint]()

	err := g.Authorize(context.Background(), 1, gate.ActionView, "unknown", nil)
	if err != gate.ErrNoPolicyDefined {
		t.Errorf("expected ErrNoPolicyDefined, got %v", err)
	}
}

func TestGate_Authorize_Allowed(t *testing.T) {
	g := gate.NewGate[uint]()
	g.Register("test", &mockPolicy{allowAll: true})

	if err := g.Authorize(context.Background(), 1, gate.ActionView, "test", nil); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
}

func TestGate_Authorize_Denied(t *testing.T) {
	g := gate.NewGate[uint]()
	g.Register("test", &mockPolicy{allowAll: false})

	err := g.Authorize(context.Background(), 1, gate.ActionSend, "test", nil)
	if !errors.Is(err, gate.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	var denied *gate.DeniedError
	if !errors.As(err, &denied) || denied.Action != gate.ActionSend || denied.Resource != "test" {
		t.Errorf("unexpected denial %v", err)
	}
}

func TestGate_Can(t *testing.T) {
	g := gate.NewGate[uint]()
	g.Register("test", &mockPolicy{allowAll: true})

	if !g.Can(context.Background(), 1, gate.ActionCreate, "test", nil) {
		t.Error("expected Can to return true")
	}

	g.Register("denied", &mockPolicy{allowAll: false})
	if g.Can(context.Background(), 1, gate.ActionCreate, "denied", nil) {
		t.Error("expected Can to return false")
	}
}
