package notes

import (
	"context"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/jamesprial/notetaker-mcp/internal/graphql"
	"github.com/jamesprial/notetaker-mcp/internal/metrics"
)

// Registry hands out one started Controller per signed-in user. It keeps at
// most WithMaxSessions controllers; the least recently used one is stopped
// to make room for a new user.
//
// Starting a controller dials the push channels, so it happens outside any
// registry-wide lock: a slow start delays only the user it belongs to.
type Registry struct {
	client  graphql.Client
	opts    []Option
	logger  *slog.Logger
	metrics *metrics.Collector

	// starting makes concurrent first calls for one user share a controller.
	starting singleflight.Group

	// mu orders cache insertion against Close.
	mu          sync.Mutex
	controllers *lru.Cache[string, *Controller]
}

// NewRegistry returns an empty registry. opts are applied to every
// controller it creates.
func NewRegistry(client graphql.Client, opts ...Option) *Registry {
	if client == nil {
		panic("graphql client must not be nil")
	}
	o := newOptions(opts)
	r := &Registry{
		client:  client,
		opts:    opts,
		logger:  o.logger,
		metrics: o.metrics,
	}
	cache, err := lru.NewWithEvict[string, *Controller](o.maxSessions, r.evicted)
	if err != nil {
		// Only a non-positive size fails, and newOptions rules that out.
		panic(err)
	}
	r.controllers = cache
	return r
}

func (r *Registry) evicted(user string, c *Controller) {
	r.logger.Debug("stopping notes controller", "user", user)
	c.Close()
	r.metrics.SessionClosed()
}

// For returns the controller of user, creating and starting it on first use.
// A known controller whose push channels are down gets a Reconnect attempt.
// ctx supplies the session credentials for the controller's requests.
func (r *Registry) For(ctx context.Context, user string) *Controller {
	if c, ok := r.controllers.Get(user); ok {
		c.Reconnect(ctx)
		return c
	}

	v, _, _ := r.starting.Do(user, func() (any, error) {
		if c, ok := r.controllers.Get(user); ok {
			return c, nil
		}
		c := NewController(r.client, user, r.opts...)
		if err := c.Start(ctx); err != nil {
			r.logger.Warn("live updates unavailable", "user", user, "err", err)
		}
		r.mu.Lock()
		r.controllers.Add(user, c)
		r.mu.Unlock()
		r.metrics.SessionOpened()
		return c, nil
	})
	return v.(*Controller)
}

// Users returns the users with a controller, least recently used first.
func (r *Registry) Users() []string {
	return r.controllers.Keys()
}

// Close stops every controller and waits for them to drain.
func (r *Registry) Close() {
	r.mu.Lock()
	controllers := r.controllers.Values()
	r.controllers.Purge()
	r.mu.Unlock()

	for _, c := range controllers {
		c.Wait()
	}
}
