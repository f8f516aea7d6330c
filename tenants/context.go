package tenants

import "context"

// Context is the request-scoped tenant identity handed to business logic.
// It is built fresh per request by the Resolver and travels only inside the
// request's context.Context, so nothing can leak across pooled handlers.
type Context struct {
	OrganizationID   int64
	OrganizationName string
	UserID           int64
	Role             Role
}

type contextKey struct{}

// NewContext returns a child context carrying the resolved tenant.
func NewContext(ctx context.Context, tc *Context) context.Context {
	return context.WithValue(ctx, contextKey{}, tc)
}

// FromContext extracts the resolved tenant, if any. Requests on
// non-tenant-scoped routes run without one.
func FromContext(ctx context.Context) (*Context, bool) {
	tc, ok := ctx.Value(contextKey{}).(*Context)
	return tc, ok && tc != nil
}
