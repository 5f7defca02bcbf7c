package binding

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/jamesprial/notetaker-mcp/internal/graphql"
)

// ============================================================================
// Mock: GraphQL Client
// ============================================================================

// mockClient implements graphql.Client. Each call is counted and delegated
// to executeFunc.
type mockClient struct {
	calls       atomic.Int32
	executeFunc func(ctx context.Context, query string, variables map[string]any) ([]byte, error)
}

var _ graphql.Client = (*mockClient)(nil)

func (m *mockClient) Execute(ctx context.Context, query string, variables map[string]any) ([]byte, error) {
	m.calls.Add(1)
	if m.executeFunc != nil {
		return m.executeFunc(ctx, query, variables)
	}
	return nil, fmt.Errorf("mockClient.Execute not configured")
}

// ============================================================================
// Mock: Subscriber and Stream
// ============================================================================

// fakeStream is a push channel driven by the test. Close is recorded but does
// not stop the test from sending, which models a server that keeps emitting
// after unsubscribe.
type fakeStream struct {
	events chan graphql.Event
	closed atomic.Bool
}

func newFakeStream() *fakeStream {
	return &fakeStream{events: make(chan graphql.Event)}
}

func (f *fakeStream) Events() <-chan graphql.Event { return f.events }

func (f *fakeStream) Close() error {
	f.closed.Store(true)
	return nil
}

// push delivers one data payload and returns once the binding received it.
func (f *fakeStream) push(payload string) {
	f.events <- graphql.Event{Data: []byte(payload)}
}

// end closes the event channel so the binding's pump exits.
func (f *fakeStream) end() {
	close(f.events)
}

// mockSubscriber records every Subscribe call and hands out fakeStreams.
type mockSubscriber struct {
	mu      sync.Mutex
	streams []*fakeStream
	queries []string
	err     error
}

var _ graphql.Subscriber = (*mockSubscriber)(nil)

func (m *mockSubscriber) Subscribe(_ context.Context, query string, _ map[string]any) (graphql.Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, query)
	if m.err != nil {
		return nil, m.err
	}
	st := newFakeStream()
	m.streams = append(m.streams, st)
	return st, nil
}

func (m *mockSubscriber) stream(i int) *fakeStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streams[i]
}

func (m *mockSubscriber) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.streams)
}

// ============================================================================
// Test Helpers
// ============================================================================

// syncBuffer is a goroutine-safe bytes.Buffer for capturing log output.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// captureLogger returns a logger writing text records at debug level into
// the returned buffer.
func captureLogger() (*slog.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}
