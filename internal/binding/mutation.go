package binding

import (
	"context"

	"github.com/jamesprial/notetaker-mcp/internal/graphql"
)

// Mutate performs op exactly once and returns its decoded payload. Nothing
// is retained between calls and every failure is returned to the caller.
func Mutate[T any](ctx context.Context, client graphql.Client, op Operation) (T, error) {
	data, err := client.Execute(ctx, op.Query, op.Variables)
	if err != nil {
		var zero T
		return zero, err
	}
	return decode[T](data)
}

// Fetch performs a one-shot query with the same semantics as Mutate. It is
// for callers that want a single result without a bound state.
func Fetch[T any](ctx context.Context, client graphql.Client, op Operation) (T, error) {
	return Mutate[T](ctx, client, op)
}
