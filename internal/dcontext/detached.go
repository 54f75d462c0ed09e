package dcontext

import "context"

// DetachedContext returns a context that won't be canceled when the parent
// context is canceled. Lock release and connection cleanup run on a detached
// context so that an abandoned request cannot leave a template locked.
//
// The detached context keeps every value of the parent (logger, request id,
// owner) and drops only cancellation and deadline.
func DetachedContext(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
