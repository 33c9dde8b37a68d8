package rbac

import "context"

// Operation is business logic that runs only after authorization succeeded.
// The decision carries the principal and its effective role.
type Operation[In, Out any] func(ctx context.Context, d Decision, in In) (Out, error)

// Guarded is an Operation bound to a role check.
type Guarded[In, Out any] func(ctx context.Context, p *Principal, in In) (Out, error)

// Guard wraps op so that every call authorizes p against required first. The
// inner operation is never invoked on denial, lookup failure or a cancelled
// context.
func Guard[In, Out any](a *Authorizer, required RoleSet, op Operation[In, Out]) Guarded[In, Out] {
	return func(ctx context.Context, p *Principal, in In) (Out, error) {
		var zero Out
		d, err := a.Authorize(ctx, p, required)
		if err != nil {
			return zero, err
		}
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return op(ctx, d, in)
	}
}
