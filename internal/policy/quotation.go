// Package policy holds the authorization rules for quotations.
package policy

import (
	"context"

	"github.com/diewo77/go-quotations/gate"
)

// ResourceQuotation is the gate resource type for quotations.
const ResourceQuotation = "quotation"

// Ownable is an interface for resources that have an owner.
type Ownable interface {
	GetUserID() uint
}

// QuotationPolicy lets any signed-in actor read quotations and record the
// customer's answer, while editing, sending, deleting and restoring stay with
// the author.
type QuotationPolicy struct{}

func NewQuotationPolicy() *QuotationPolicy {
	return &QuotationPolicy{}
}

func (p *QuotationPolicy) Can(_ context.Context, userID uint, action gate.Action, resource any) bool {
	switch action {
	case gate.ActionList, gate.ActionCreate, gate.ActionView, gate.ActionAccept, gate.ActionReject:
		return true
	case gate.ActionUpdate, gate.ActionDelete, gate.ActionSend, gate.ActionRestore:
		return owns(userID, resource)
	}
	return false
}

// owns denies resources that don't implement Ownable so a missing
// GetUserID never opens access.
func owns(userID uint, resource any) bool {
	ownable, ok := resource.(Ownable)
	if !ok {
		return false
	}
	return ownable.GetUserID() == userID
}

// NewGate returns a gate with every resource policy registered.
func NewGate() *gate.Gate[uint] {
	g := gate.NewGate[uint]()
	g.Register(ResourceQuotation, NewQuotationPolicy())
	return g
}
