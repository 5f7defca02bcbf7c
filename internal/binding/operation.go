// Package binding adapts remote GraphQL operations into stateful shapes a
// caller can render from: a query binding that tracks loading, data and
// error; a one-shot mutation call; and a subscription binding that reduces
// push events into a single current item.
//
// Bindings deliver results on their own goroutines. State is guarded
// internally and change callbacks run outside the lock, so callbacks may
// read the binding again.
package binding

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"reflect"
	"strings"
)

// Operation is a remote operation document plus its input variables.
type Operation struct {
	Query     string
	Variables map[string]any
}

// Equal reports whether o and other describe the same request. Variables are
// compared deeply, and a nil map equals an empty one.
func (o Operation) Equal(other Operation) bool {
	if o.Query != other.Query {
		return false
	}
	if len(o.Variables) == 0 && len(other.Variables) == 0 {
		return true
	}
	return reflect.DeepEqual(o.Variables, other.Variables)
}

// clone copies the top-level variables map so later caller mutations do not
// change a bound descriptor.
func (o Operation) clone() Operation {
	return Operation{Query: o.Query, Variables: maps.Clone(o.Variables)}
}

// name returns the declared operation name for log lines, or the first line
// of an anonymous document.
func (o Operation) name() string {
	fields := strings.Fields(o.Query)
	if len(fields) >= 2 {
		switch fields[0] {
		case "query", "mutation", "subscription":
			n := fields[1]
			if i := strings.IndexAny(n, "({"); i >= 0 {
				n = n[:i]
			}
			if n != "" {
				return n
			}
		}
	}
	if i := strings.IndexByte(o.Query, '\n'); i >= 0 {
		return strings.TrimSpace(o.Query[:i])
	}
	return strings.TrimSpace(o.Query)
}

// ErrMissingKey is wrapped by ShapeError when a push payload lacks the
// configured key.
var ErrMissingKey = errors.New("payload key missing")

// ShapeError reports a payload that does not have the expected shape.
type ShapeError struct {
	Key string
	Err error
}

func (e *ShapeError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("binding: decode payload: %v", e.Err)
	}
	return fmt.Sprintf("binding: payload key %q: %v", e.Key, e.Err)
}

func (e *ShapeError) Unwrap() error { return e.Err }

// decode unmarshals a response payload into T.
func decode[T any](data []byte) (T, error) {
	var v T
	if len(data) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, &ShapeError{Err: err}
	}
	return v, nil
}

// extract decodes the value stored under key in a JSON object payload. A key
// holding JSON null counts as missing.
func extract[T any](data []byte, key string) (T, error) {
	var zero T
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return zero, &ShapeError{Key: key, Err: err}
	}
	raw, ok := fields[key]
	if !ok || string(raw) == "null" {
		return zero, &ShapeError{Key: key, Err: ErrMissingKey}
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, &ShapeError{Key: key, Err: err}
	}
	return v, nil
}

// Option configures a binding.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	recorder Recorder
}

// Recorder receives one call per resolved query request and per push event.
// Query outcomes are "ok", "error" and "superseded"; push outcomes are
// "applied", "rejected", "error" and "stale".
type Recorder interface {
	QueryResult(operation, outcome string)
	PushEvent(key, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) QueryResult(string, string) {}
func (nopRecorder) PushEvent(string, string)   {}

// WithLogger sets the logger that receives failure diagnostics. The default
// is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRecorder sets the Recorder that counts results and events.
func WithRecorder(r Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}

func newOptions(opts []Option) options {
	o := options{logger: slog.Default(), recorder: nopRecorder{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
