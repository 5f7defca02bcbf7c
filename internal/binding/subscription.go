package binding

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jamesprial/notetaker-mcp/internal/graphql"
)

// SubscriptionConfig selects the operation to subscribe to and the payload
// key holding the pushed item.
type SubscriptionConfig struct {
	Operation Operation
	Key       string
}

func (c *SubscriptionConfig) equal(other *SubscriptionConfig) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c.Key == other.Key && c.Operation.Equal(other.Operation)
}

// Subscription holds the most recent item pushed on a channel. At most one
// channel is open per binding.
type Subscription[T any] struct {
	sub      graphql.Subscriber
	logger   *slog.Logger
	recorder Recorder

	// configMu serialises Configure so teardown always precedes the next
	// subscribe.
	configMu sync.Mutex

	mu      sync.Mutex
	cfg     *SubscriptionConfig
	stream  graphql.Stream
	gen     uint64
	item    T
	hasItem bool
	err     error
	onItem  func(T)

	// pumps counts running channel readers; drained is signalled on s.mu
	// when it drops to zero.
	pumps   int
	drained *sync.Cond
}

// NewSubscription returns an unconfigured binding. When seed is non-nil the
// bound item starts at *seed.
func NewSubscription[T any](sub graphql.Subscriber, seed *T, opts ...Option) *Subscription[T] {
	o := newOptions(opts)
	s := &Subscription[T]{sub: sub, logger: o.logger, recorder: o.recorder}
	s.drained = sync.NewCond(&s.mu)
	if seed != nil {
		s.item = *seed
		s.hasItem = true
	}
	return s
}

// OnItem registers fn to receive every item that replaces the bound one.
func (s *Subscription[T]) OnItem(fn func(T)) {
	s.mu.Lock()
	s.onItem = fn
	s.mu.Unlock()
}

// Configure applies cfg. A nil cfg closes any open channel and opens none. A
// cfg different from the active one closes the old channel before
// subscribing again; an equal cfg does nothing. A subscribe failure is
// logged, recorded in Err and returned.
func (s *Subscription[T]) Configure(ctx context.Context, cfg *SubscriptionConfig) error {
	s.configMu.Lock()
	defer s.configMu.Unlock()

	s.mu.Lock()
	if s.cfg.equal(cfg) {
		s.mu.Unlock()
		return nil
	}
	old := s.stream
	s.stream = nil
	s.cfg = nil
	s.gen++
	s.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			s.logger.Debug("closing push channel", "err", err)
		}
	}
	if cfg == nil {
		return nil
	}

	next := SubscriptionConfig{Operation: cfg.Operation.clone(), Key: cfg.Key}
	stream, err := s.sub.Subscribe(ctx, next.Operation.Query, next.Operation.Variables)
	if err != nil {
		s.logger.Error("subscribe failed", "operation", next.Operation.name(), "key", next.Key, "err", err)
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.stream = stream
	s.cfg = &next
	s.err = nil
	s.pumps++
	s.mu.Unlock()

	go s.pump(gen, next.Key, stream)
	return nil
}

// Close tears down the open channel, if any. No update is applied after
// Close returns, even if the channel keeps delivering events.
func (s *Subscription[T]) Close() {
	_ = s.Configure(context.Background(), nil)
}

// pump applies events until the channel ends. A channel that ends on its
// own (server completion or a read failure) stops counting as open, so
// Active turns false and the same cfg can be configured again.
func (s *Subscription[T]) pump(gen uint64, key string, stream graphql.Stream) {
	for ev := range stream.Events() {
		s.apply(gen, key, ev)
	}

	s.mu.Lock()
	ended := gen == s.gen
	if ended {
		s.stream = nil
		s.cfg = nil
	}
	s.mu.Unlock()

	if ended {
		s.logger.Debug("push channel ended", "key", key)
		if err := stream.Close(); err != nil {
			s.logger.Debug("closing push channel", "err", err)
		}
	}

	s.mu.Lock()
	s.pumps--
	if s.pumps == 0 {
		s.drained.Broadcast()
	}
	s.mu.Unlock()
}

// Active reports whether a channel is open and still delivering events.
func (s *Subscription[T]) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream != nil
}

// Wait blocks until every channel this binding opened has stopped
// delivering events.
func (s *Subscription[T]) Wait() {
	s.mu.Lock()
	for s.pumps > 0 {
		s.drained.Wait()
	}
	s.mu.Unlock()
}
