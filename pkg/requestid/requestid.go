// Package requestid carries the per-request correlation id through
// context.Context so services and event payloads can reference it.
package requestid

import "context"

type ctxKey struct{}

// Header is the HTTP header the id is read from and echoed to.
const Header = "X-Request-ID"

func NewContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
