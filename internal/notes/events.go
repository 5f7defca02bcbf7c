package notes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jamesprial/notetaker-mcp/internal/binding"
	"github.com/jamesprial/notetaker-mcp/internal/graphql"
)

// EventKind tags a push event.
type EventKind int

const (
	Created EventKind = iota + 1
	Updated
	Deleted
)

func (k EventKind) String() string {
	switch k {
	case Created:
		return "created"
	case Updated:
		return "updated"
	case Deleted:
		return "deleted"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is a note change pushed by the backend.
type Event struct {
	Kind EventKind `json:"kind"`
	Note Note      `json:"note"`
}

var eventKinds = [...]EventKind{Created, Updated, Deleted}

// Watcher keeps one subscription binding per event kind and forwards every
// pushed note to a handler as a tagged Event.
type Watcher struct {
	logger *slog.Logger
	subs   map[EventKind]*binding.Subscription[Note]
}

// NewWatcher returns a stopped watcher. handle is called from the push
// goroutines and must be safe for concurrent use.
func NewWatcher(sub graphql.Subscriber, handle func(Event), opts ...Option) *Watcher {
	o := newOptions(opts)
	w := &Watcher{
		logger: o.logger,
		subs:   make(map[EventKind]*binding.Subscription[Note], len(eventKinds)),
	}
	for _, kind := range eventKinds {
		s := binding.NewSubscription[Note](sub, nil, o.bindingOptions(o.logger.With("event", kind.String()))...)
		s.OnItem(func(n Note) { handle(Event{Kind: kind, Note: n}) })
		w.subs[kind] = s
	}
	return w
}

// Start opens the push channels. Channels that fail to open are reported in
// the returned error; the others stay open.
func (w *Watcher) Start(ctx context.Context) error {
	var errs []error
	for _, kind := range eventKinds {
		if err := w.subs[kind].Configure(ctx, SubscriptionFor(kind)); err != nil {
			errs = append(errs, fmt.Errorf("notes watch %s: %w", kind, err))
		}
	}
	return errors.Join(errs...)
}

// Active reports whether every push channel is open.
func (w *Watcher) Active() bool {
	for _, s := range w.subs {
		if !s.Active() {
			return false
		}
	}
	return true
}

// Stop closes all push channels. No event is delivered after Stop returns.
func (w *Watcher) Stop() {
	for _, kind := range eventKinds {
		w.subs[kind].Close()
	}
}

// Wait blocks until every push channel has stopped delivering.
func (w *Watcher) Wait() {
	for _, s := range w.subs {
		s.Wait()
	}
}
