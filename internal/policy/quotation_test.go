package policy_test

import (
	"context"
	"errors"
	"testing"

	"github.com/diewo77/go-quotations/gate"
	"github.com/diewo77/go-quotations/internal/models"
	"github.com/diewo77/go-quotations/internal/policy"
)

// mockOwnable is a test resource that implements Ownable.
type mockOwnable struct {
	userID uint
}

func (m *mockOwnable) GetUserID() uint {
	return m.userID
}

// mockNonOwnable is a test resource that does NOT implement Ownable.
type mockNonOwnable struct {
	ID uint
}

func TestQuotationPolicy_Actions(t *testing.T) {
	p := policy.NewQuotationPolicy()
	ctx := context.Background()
	resource := &mockOwnable{userID: 42}

	tests := []struct {
		action   gate.Action
		user     uint
		resource any
		want     bool
	}{
		{gate.ActionList, 7, nil, true},
		{gate.ActionCreate, 7, nil, true},
		{gate.ActionView, 7, resource, true},
		{gate.ActionAccept, 7, resource, true},
		{gate.ActionReject, 7, resource, true},
		{gate.ActionUpdate, 42, resource, true},
		{gate.ActionUpdate, 7, resource, false},
		{gate.ActionSend, 42, resource, true},
		{gate.ActionSend, 7, resource, false},
		{gate.ActionDelete, 42, resource, true},
		{gate.ActionDelete, 7, resource, false},
		{gate.ActionRestore, 42, resource, true},
		{gate.ActionRestore, 7, resource, false},
		{gate.ActionUpdate, 42, nil, false},
		{gate.Action("archive"), 42, resource, false},
	}
	for _, tt := range tests {
		if got := p.Can(ctx, tt.user, tt.action, tt.resource); got != tt.want {
			t.Errorf("Can(%d, %s) = %v, want %v", tt.user, tt.action, got, tt.want)
		}
	}
}

func TestQuotationPolicy_NonOwnableResource(t *testing.T) {
	p := policy.NewQuotationPolicy()
	if p.Can(context.Background(), 1, gate.ActionUpdate, &mockNonOwnable{ID: 1}) {
		t.Error("Expected non-Ownable resource to be denied")
	}
}

func TestNewGate_Quotation(t *testing.T) {
	g := policy.NewGate()
	ctx := context.Background()
	q := &models.Quotation{CreatedBy: 3}

	if err := g.Authorize(ctx, 3, gate.ActionSend, policy.ResourceQuotation, q); err != nil {
		t.Fatalf("owner send: %v", err)
	}
	if err := g.Authorize(ctx, 4, gate.ActionSend, policy.ResourceQuotation, q); !errors.Is(err, gate.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := g.Authorize(ctx, 0, gate.ActionView, policy.ResourceQuotation, q); err != gate.ErrUnauthenticated {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}
