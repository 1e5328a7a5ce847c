package gate

import "context"

// Policy defines authorization rules for a resource type.
// For list/create, resource may be nil (context-only check).
type Policy[U any] interface {
	Can(ctx context.Context, user U, action Action, resource any) bool
}
