// Package graphql provides the HTTP and websocket clients used to talk to the
// managed GraphQL backend.
package graphql

import (
	"context"
	"encoding/json"
)

// GraphQLError represents a single error returned in a GraphQL response.
type GraphQLError struct {
	Message   string `json:"message"`
	ErrorType string `json:"errorType,omitempty"`
	Path      []any  `json:"path,omitempty"`
}

// Client defines the interface for executing GraphQL queries and mutations.
type Client interface {
	Execute(ctx context.Context, query string, variables map[string]any) ([]byte, error)
}

// Event is one message delivered on a push channel. Exactly one of Data and
// Err is set.
type Event struct {
	Data json.RawMessage
	Err  error
}

// Stream is an open push channel. Events is closed when the server completes
// the subscription, the transport fails, or Close is called.
type Stream interface {
	Events() <-chan Event
	Close() error
}

// Subscriber opens push channels for GraphQL subscription operations.
type Subscriber interface {
	Subscribe(ctx context.Context, query string, variables map[string]any) (Stream, error)
}
