package binding

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jamesprial/notetaker-mcp/internal/graphql"
)

// QueryState is a snapshot of a query binding.
type QueryState[T any] struct {
	Loading bool
	Data    T
	Err     error
}

// Query binds an operation to its latest result.
//
// Every request takes a generation number when it is issued, and only the
// result of the most recently issued request is applied. Superseded requests
// are not cancelled; their results are logged at debug level and dropped.
type Query[T any] struct {
	client   graphql.Client
	logger   *slog.Logger
	recorder Recorder

	mu       sync.Mutex
	op       Operation
	bound    bool
	gen      uint64
	state    QueryState[T]
	onChange func(QueryState[T])

	// inflight counts issued requests that have not resolved. idle is
	// signalled on q.mu when it drops to zero.
	inflight int
	idle     *sync.Cond
}

// NewQuery returns an unbound query. Its state starts as loading with zero
// data until the first Bind resolves.
func NewQuery[T any](client graphql.Client, opts ...Option) *Query[T] {
	o := newOptions(opts)
	q := &Query[T]{
		client:   client,
		logger:   o.logger,
		recorder: o.recorder,
		state:    QueryState[T]{Loading: true},
	}
	q.idle = sync.NewCond(&q.mu)
	return q
}

// OnChange registers fn to receive every state transition. It replaces any
// previous callback.
func (q *Query[T]) OnChange(fn func(QueryState[T])) {
	q.mu.Lock()
	q.onChange = fn
	q.mu.Unlock()
}

// Bind activates the query for op. The request is issued on the first call
// and whenever op differs from the bound descriptor; binding an equal
// descriptor again does nothing.
func (q *Query[T]) Bind(ctx context.Context, op Operation) {
	q.mu.Lock()
	if q.bound && q.op.Equal(op) {
		q.mu.Unlock()
		return
	}
	q.op = op.clone()
	q.bound = true
	q.issueLocked(ctx)
}

// Refetch re-issues the bound request unconditionally. It does nothing
// before the first Bind.
func (q *Query[T]) Refetch(ctx context.Context) {
	q.mu.Lock()
	if !q.bound {
		q.mu.Unlock()
		return
	}
	q.issueLocked(ctx)
}

// issueLocked starts a request for the bound descriptor. It must be called
// with q.mu held and releases it.
func (q *Query[T]) issueLocked(ctx context.Context) {
	q.gen++
	gen, op := q.gen, q.op
	q.state.Loading = true
	snap, fn := q.state, q.onChange
	q.inflight++
	q.mu.Unlock()

	if fn != nil {
		fn(snap)
	}

	go func() {
		data, err := q.client.Execute(ctx, op.Query, op.Variables)
		q.resolve(gen, op, data, err)

		q.mu.Lock()
		q.inflight--
		if q.inflight == 0 {
			q.idle.Broadcast()
		}
		q.mu.Unlock()
	}()
}

func (q *Query[T]) resolve(gen uint64, op Operation, data []byte, err error) {
	var result T
	if err == nil {
		result, err = decode[T](data)
	}
	if err != nil {
		q.logger.Error("query failed", "operation", op.name(), "generation", gen, "err", err)
	}

	q.mu.Lock()
	if gen != q.gen {
		q.mu.Unlock()
		q.logger.Debug("dropping superseded query result", "operation", op.name(), "generation", gen)
		q.recorder.QueryResult(op.name(), "superseded")
		return
	}
	if err != nil {
		q.state.Err = err
		q.recorder.QueryResult(op.name(), "error")
	} else {
		q.recorder.QueryResult(op.name(), "ok")
		q.state.Data = result
		q.state.Err = nil
	}
	q.state.Loading = false
	snap, fn := q.state, q.onChange
	q.mu.Unlock()

	if fn != nil {
		fn(snap)
	}
}

// State returns the current snapshot.
func (q *Query[T]) State() QueryState[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Wait blocks until every issued request has resolved. It may be called
// while other goroutines Bind or Refetch; it then also waits for those.
func (q *Query[T]) Wait() {
	q.mu.Lock()
	for q.inflight > 0 {
		q.idle.Wait()
	}
	q.mu.Unlock()
}
