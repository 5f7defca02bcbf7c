package graphql

import (
	"fmt"
	"strings"
)

// TransportError reports a failure to reach the backend or an HTTP-level
// rejection. StatusCode is zero when no response was received.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode == 401:
		return "graphql: authentication failed (HTTP 401)"
	case e.StatusCode != 0:
		return fmt.Sprintf("graphql: unexpected HTTP status %d", e.StatusCode)
	default:
		return fmt.Sprintf("graphql: %s: %v", e.Op, e.Err)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// OperationError carries the errors the backend reported for an operation.
type OperationError struct {
	Errors []GraphQLError
}

func (e *OperationError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ge := range e.Errors {
		msgs[i] = ge.Message
	}
	return "graphql: " + strings.Join(msgs, "; ")
}
