// Package notes is the note-taking client: the note entity, its remote
// operations, the reconciled in-memory list and the MCP tools that drive it.
package notes

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jamesprial/notetaker-mcp/internal/binding"
	"github.com/jamesprial/notetaker-mcp/internal/graphql"
	"github.com/jamesprial/notetaker-mcp/internal/metrics"
)

// Note is a single note as stored by the backend.
type Note struct {
	ID    string `json:"id"`
	Text  string `json:"note"`
	Owner string `json:"owner,omitempty"`
}

// NoteManager defines the one-shot remote operations on notes.
type NoteManager interface {
	List(ctx context.Context) ([]Note, error)
	Create(ctx context.Context, n Note) (Note, error)
	Update(ctx context.Context, n Note) (Note, error)
	Delete(ctx context.Context, id string) (Note, error)
}

// DedupPolicy decides which create pushes are dropped because the note is
// already on the board.
type DedupPolicy string

const (
	// DedupByID drops a create push whose id is already present.
	DedupByID DedupPolicy = "id"
	// DedupByOwner drops create pushes authored by the current user.
	DedupByOwner DedupPolicy = "owner"
	// DedupNone never drops a create push.
	DedupNone DedupPolicy = "none"
)

// ParseDedupPolicy converts a configuration value into a DedupPolicy.
func ParseDedupPolicy(s string) (DedupPolicy, error) {
	switch p := DedupPolicy(s); p {
	case DedupByID, DedupByOwner, DedupNone:
		return p, nil
	case "":
		return DedupByID, nil
	default:
		return "", fmt.Errorf("invalid dedup policy %q: must be id, owner, or none", s)
	}
}

// DefaultSeed is the list shown before the first list result arrives.
func DefaultSeed() []Note {
	return []Note{{ID: "1", Text: "Hello world"}}
}

// Option configures a Controller, Watcher or Registry.
type Option func(*options)

// DefaultMaxSessions bounds the controllers a Registry keeps by default.
const DefaultMaxSessions = 256

// DefaultLiveRetry is the minimum time between attempts to reopen push
// channels that are down.
const DefaultLiveRetry = 30 * time.Second

type options struct {
	logger      *slog.Logger
	dedup       DedupPolicy
	subscriber  graphql.Subscriber
	seed        []Note
	metrics     *metrics.Collector
	maxSessions int
	liveRetry   time.Duration
}

// WithLogger sets the logger for bindings and reconciliation diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithDedup sets the create-push dedup policy. The default is DedupByID.
func WithDedup(p DedupPolicy) Option {
	return func(o *options) { o.dedup = p }
}

// WithSubscriber keeps the list live through push channels opened on sub.
func WithSubscriber(sub graphql.Subscriber) Option {
	return func(o *options) { o.subscriber = sub }
}

// WithSeed sets the notes shown before the first list result.
func WithSeed(seed ...Note) Option {
	return func(o *options) { o.seed = seed }
}

// WithMetrics counts query results, push events and sessions on m.
func WithMetrics(m *metrics.Collector) Option {
	return func(o *options) { o.metrics = m }
}

// WithMaxSessions bounds how many users a Registry keeps a controller for.
// The least recently used controller is stopped when the bound is reached.
// Values below one select DefaultMaxSessions.
func WithMaxSessions(n int) Option {
	return func(o *options) { o.maxSessions = n }
}

// WithLiveRetry sets how often a Registry may try to reopen a user's push
// channels while they are down. Zero retries on every request; negative
// values select DefaultLiveRetry.
func WithLiveRetry(d time.Duration) Option {
	return func(o *options) { o.liveRetry = d }
}

// bindingOptions translates the options shared with the binding package.
func (o options) bindingOptions(logger *slog.Logger) []binding.Option {
	opts := []binding.Option{binding.WithLogger(logger)}
	if o.metrics != nil {
		opts = append(opts, binding.WithRecorder(o.metrics))
	}
	return opts
}

func newOptions(opts []Option) options {
	o := options{logger: slog.Default(), dedup: DedupByID, maxSessions: DefaultMaxSessions, liveRetry: DefaultLiveRetry}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxSessions < 1 {
		o.maxSessions = DefaultMaxSessions
	}
	if o.liveRetry < 0 {
		o.liveRetry = DefaultLiveRetry
	}
	return o
}
