package notes

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jamesprial/notetaker-mcp/internal/graphql"
	"github.com/jamesprial/notetaker-mcp/internal/session"
	"github.com/jamesprial/notetaker-mcp/internal/tools"
)

// ============================================================================
// Mock: GraphQL Client (for manager tests)
// ============================================================================

// mockGraphQLClient implements graphql.Client for testing the
// GraphQLNoteManager. Each method delegates to a function field, allowing
// per-test control of behaviour.
type mockGraphQLClient struct {
	executeFunc func(ctx context.Context, query string, variables map[string]any) ([]byte, error)
}

var _ graphql.Client = (*mockGraphQLClient)(nil)

func (m *mockGraphQLClient) Execute(ctx context.Context, query string, variables map[string]any) ([]byte, error) {
	if m.executeFunc != nil {
		return m.executeFunc(ctx, query, variables)
	}
	return nil, fmt.Errorf("mockGraphQLClient.Execute not configured")
}

// ============================================================================
// Fake: in-memory notes backend (for controller and tool tests)
// ============================================================================

// fakeBackend implements graphql.Client by dispatching on the operation name
// and keeping notes in memory. Setting fail[op] makes that operation return
// the given error.
type fakeBackend struct {
	mu    sync.Mutex
	notes []Note
	fail  map[string]error
	calls []string
	// assignID, when set, replaces client-sent ids on create.
	assignID string
}

var _ graphql.Client = (*fakeBackend)(nil)

func newFakeBackend(initial ...Note) *fakeBackend {
	return &fakeBackend{notes: slices.Clone(initial), fail: map[string]error{}}
}

var opNamePattern = regexp.MustCompile(`^(?:query|mutation)\s+(\w+)`)

func (f *fakeBackend) Execute(_ context.Context, query string, variables map[string]any) ([]byte, error) {
	m := opNamePattern.FindStringSubmatch(query)
	if m == nil {
		return nil, fmt.Errorf("fakeBackend: unnamed operation %q", query)
	}
	op := m[1]

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op)
	if err := f.fail[op]; err != nil {
		return nil, err
	}

	input, _ := variables["input"].(map[string]any)
	id, _ := input["id"].(string)
	text, _ := input["note"].(string)

	switch op {
	case "ListNotes":
		return json.Marshal(map[string]any{"listNotes": map[string]any{"items": f.notes}})
	case "CreateNote":
		if f.assignID != "" {
			id = f.assignID
		}
		n := Note{ID: id, Text: text, Owner: "alice"}
		f.notes = append([]Note{n}, f.notes...)
		return json.Marshal(map[string]any{"createNote": n})
	case "UpdateNote":
		i := slices.IndexFunc(f.notes, func(n Note) bool { return n.ID == id })
		if i < 0 {
			return json.Marshal(map[string]any{"updateNote": nil})
		}
		f.notes[i].Text = text
		return json.Marshal(map[string]any{"updateNote": f.notes[i]})
	case "DeleteNote":
		i := slices.IndexFunc(f.notes, func(n Note) bool { return n.ID == id })
		if i < 0 {
			return json.Marshal(map[string]any{"deleteNote": nil})
		}
		n := f.notes[i]
		f.notes = slices.Delete(f.notes, i, i+1)
		return json.Marshal(map[string]any{"deleteNote": n})
	}
	return nil, fmt.Errorf("fakeBackend: unknown operation %q", op)
}

func (f *fakeBackend) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == op {
			n++
		}
	}
	return n
}

func (f *fakeBackend) setFail(op string, err error) {
	f.mu.Lock()
	f.fail[op] = err
	f.mu.Unlock()
}

// ============================================================================
// Mock: Subscriber and Stream
// ============================================================================

type fakeStream struct {
	events chan graphql.Event
	once   sync.Once
}

func (f *fakeStream) Events() <-chan graphql.Event { return f.events }

// Close ends the event channel the way the websocket stream does.
func (f *fakeStream) Close() error {
	f.once.Do(func() { close(f.events) })
	return nil
}

func (f *fakeStream) push(t *testing.T, key string, n Note) {
	t.Helper()
	data, err := json.Marshal(map[string]any{key: n})
	if err != nil {
		t.Fatalf("marshal push: %v", err)
	}
	f.events <- graphql.Event{Data: data}
}

// mockSubscriber hands out one fakeStream per Subscribe call, keyed by the
// root field of the subscription document.
type mockSubscriber struct {
	mu      sync.Mutex
	streams map[string]*fakeStream
	err     error
}

var _ graphql.Subscriber = (*mockSubscriber)(nil)

func newMockSubscriber() *mockSubscriber {
	return &mockSubscriber{streams: map[string]*fakeStream{}}
}

func (m *mockSubscriber) Subscribe(_ context.Context, query string, _ map[string]any) (graphql.Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, key := range []string{KeyOnCreate, KeyOnUpdate, KeyOnDelete} {
		if strings.Contains(query, key) {
			st := &fakeStream{events: make(chan graphql.Event)}
			m.streams[key] = st
			return st, nil
		}
	}
	return nil, fmt.Errorf("mockSubscriber: unexpected subscription %q", query)
}

func (m *mockSubscriber) stream(t *testing.T, key string) *fakeStream {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.streams[key]
	if !ok {
		t.Fatalf("no stream for %q", key)
	}
	return st
}

// ============================================================================
// Test Helpers
// ============================================================================

// sessionContext returns a context carrying a session for user.
func sessionContext(user string) context.Context {
	return session.NewContext(context.Background(), session.Anonymous(user))
}

// newCallToolRequest constructs an mcp.CallToolRequest suitable for invoking
// a tool handler in tests.
func newCallToolRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

// extractResultText pulls the text string from the first Content element of a
// CallToolResult.
func extractResultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil {
		t.Fatal("result is nil")
	}
	if len(result.Content) == 0 {
		t.Fatal("result has no content")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content[0] is %T, want mcp.TextContent", result.Content[0])
	}
	return tc.Text
}

// tokenPattern matches confirmation_token="<hex>" in the ConfirmPrompt output.
var tokenPattern = regexp.MustCompile(`confirmation_token="?([a-f0-9]+)"?`)

// extractToken pulls the confirmation token value from a ConfirmPrompt result
// text.
func extractToken(t *testing.T, text string) string {
	t.Helper()
	matches := tokenPattern.FindStringSubmatch(text)
	if len(matches) < 2 {
		t.Fatalf("no confirmation_token= found in text:\n%s", text)
	}
	return matches[1]
}

// findToolByName locates a Registration by tool name from a slice, failing
// the test if the tool is not found.
func findToolByName(t *testing.T, registrations []tools.Registration, name string) tools.Registration {
	t.Helper()
	for _, r := range registrations {
		if r.Tool.Name == name {
			return r
		}
	}
	t.Fatalf("tool %q not found in %d registrations", name, len(registrations))
	return tools.Registration{}
}

// ids returns the ids of notes in order.
func ids(notes []Note) []string {
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = n.ID
	}
	return out
}
