// Package gate is a small Gate/Policy authorization registry. Each Policy
// holds the rules for one resource type; the Gate dispatches to it by name.
//
// The subject type is generic so callers can authorize by plain actor id
// (Gate[uint]) or by a richer principal.
package gate

import (
	"context"
	"fmt"
)

// Gate is the central authorization checkpoint.
// U is the user/subject type (must be comparable for zero-value check).
type Gate[U comparable] struct {
	policies map[string]Policy[U]
}

// NewGate creates an empty Gate ready to register policies.
func NewGate[U comparable]() *Gate[U] {
	return &Gate[U]{policies: make(map[string]Policy[U])}
}

// Register adds a policy for a given resource type (e.g., "quotation").
// Overwrites any existing policy for that type.
func (g *Gate[U]) Register(resourceType string, p Policy[U]) {
	g.policies[resourceType] = p
}

// Authorize returns ErrUnauthenticated for a zero-value user,
// ErrNoPolicyDefined when resourceType is unknown, and a *DeniedError
// (matching ErrForbidden) when the policy refuses.
func (g *Gate[U]) Authorize(ctx context.Context, user U, action Action, resourceType string, resource any) error {
	var zero U
	if user == zero {
		return ErrUnauthenticated
	}
	p, ok := g.policies[resourceType]
	if !ok {
		return ErrNoPolicyDefined
	}
	if !p.Can(ctx, user, action, resource) {
		return &DeniedError{Action: action, Resource: resourceType}
	}
	return nil
}

// Can is a convenience wrapper returning bool instead of error.
func (g *Gate[U]) Can(ctx context.Context, user U, action Action, resourceType string, resource any) bool {
	return g.Authorize(ctx, user, action, resourceType, resource) == nil
}

// DeniedError names the refused action.
type DeniedError struct {
	Action   Action
	Resource string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("not allowed to %s %s", e.Action, e.Resource)
}

func (e *DeniedError) Is(target error) bool { return target == ErrForbidden }
