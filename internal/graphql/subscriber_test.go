package graphql

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jamesprial/notetaker-mcp/internal/config"
	"github.com/jamesprial/notetaker-mcp/internal/session"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

var _ Subscriber = (*WSSubscriber)(nil)

// wsServer runs script on every accepted connection and returns a
// subscriber pointed at it.
func wsServer(t *testing.T, apiKey string, script func(t *testing.T, conn *websocket.Conn)) *WSSubscriber {
	t.Helper()
	upgrader := websocket.Upgrader{Subprotocols: []string{Subprotocol}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		if conn.Subprotocol() != Subprotocol {
			t.Errorf("subprotocol = %q, want %q", conn.Subprotocol(), Subprotocol)
		}
		script(t, conn)
	}))
	t.Cleanup(srv.Close)

	sub, err := NewWSSubscriber(config.GraphQLConfig{URL: srv.URL, APIKey: apiKey, Timeout: 5}, nil)
	if err != nil {
		t.Fatalf("NewWSSubscriber: %v", err)
	}
	return sub
}

// expect reads one frame and fails unless it has type typ.
func expect(t *testing.T, conn *websocket.Conn, typ string) wsMessage {
	t.Helper()
	var msg wsMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Errorf("read %s: %v", typ, err)
		return msg
	}
	if msg.Type != typ {
		t.Errorf("message type = %q, want %q", msg.Type, typ)
	}
	return msg
}

func send(t *testing.T, conn *websocket.Conn, msg wsMessage) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Errorf("write %s: %v", msg.Type, err)
	}
}

// handshake answers connection_init and returns the subscribe frame.
func handshake(t *testing.T, conn *websocket.Conn) (init, subscribe wsMessage) {
	t.Helper()
	init = expect(t, conn, msgConnectionInit)
	send(t, conn, wsMessage{Type: msgConnectionAck})
	subscribe = expect(t, conn, msgSubscribe)
	return init, subscribe
}

func collect(t *testing.T, st Stream) []Event {
	t.Helper()
	var events []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-st.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("timed out waiting for stream to end")
		}
	}
}

// ---------------------------------------------------------------------------
// NewWSSubscriber tests
// ---------------------------------------------------------------------------

func Test_NewWSSubscriber_Cases(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.GraphQLConfig
		wantURL string
		wantErr bool
	}{
		{name: "derived from https", cfg: config.GraphQLConfig{URL: "https://api.example.com"}, wantURL: "wss://api.example.com/graphql"},
		{name: "derived from http", cfg: config.GraphQLConfig{URL: "http://localhost:4000/graphql"}, wantURL: "ws://localhost:4000/graphql"},
		{name: "explicit ws url", cfg: config.GraphQLConfig{URL: "https://api.example.com", WSURL: "wss://realtime.example.com/graphql"}, wantURL: "wss://realtime.example.com/graphql"},
		{name: "no url", cfg: config.GraphQLConfig{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub, err := NewWSSubscriber(tt.cfg, nil)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if sub.wsURL != tt.wantURL {
				t.Errorf("wsURL = %q, want %q", sub.wsURL, tt.wantURL)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Subscribe tests
// ---------------------------------------------------------------------------

func Test_Subscribe_DeliversEventsUntilComplete(t *testing.T) {
	type seen struct {
		init      map[string]string
		subscribe graphqlRequestBody
		id        string
	}
	got := make(chan seen, 1)

	sub := wsServer(t, "test-key", func(t *testing.T, conn *websocket.Conn) {
		init := expect(t, conn, msgConnectionInit)
		// A ping before the ack must be answered.
		send(t, conn, wsMessage{Type: msgPing})
		expect(t, conn, msgPong)
		send(t, conn, wsMessage{Type: msgConnectionAck})
		subscribe := expect(t, conn, msgSubscribe)

		var s seen
		_ = json.Unmarshal(init.Payload, &s.init)
		_ = json.Unmarshal(subscribe.Payload, &s.subscribe)
		s.id = subscribe.ID
		got <- s

		id := subscribe.ID
		send(t, conn, wsMessage{ID: "other", Type: msgNext, Payload: json.RawMessage(`{"data":{"onCreateNote":{"id":"ignored"}}}`)})
		send(t, conn, wsMessage{ID: id, Type: msgNext, Payload: json.RawMessage(`{"data":{"onCreateNote":{"id":"n1","note":"hi"}}}`)})
		send(t, conn, wsMessage{ID: id, Type: msgNext, Payload: json.RawMessage(`{"errors":[{"message":"Not Authorized"}]}`)})
		send(t, conn, wsMessage{ID: id, Type: msgComplete})
	})

	ctx := session.NewContext(context.Background(), session.Session{Subject: "alice", Token: "jwt-abc"})
	query := `subscription OnCreateNote { onCreateNote { id note } }`
	st, err := sub.Subscribe(ctx, query, map[string]any{"owner": "alice"})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer st.Close()

	events := collect(t, st)
	s := <-got

	if s.init["Authorization"] != "Bearer jwt-abc" || s.init["x-api-key"] != "test-key" {
		t.Errorf("connection_init payload = %v", s.init)
	}
	if s.subscribe.Query != query || s.subscribe.Variables["owner"] != "alice" {
		t.Errorf("subscribe payload = %+v", s.subscribe)
	}
	if s.id == "" {
		t.Error("subscribe id is empty")
	}

	if len(events) != 2 {
		t.Fatalf("got %d events, want 2: %+v", len(events), events)
	}
	if events[0].Err != nil || !strings.Contains(string(events[0].Data), `"n1"`) {
		t.Errorf("events[0] = %+v, want data for n1", events[0])
	}
	var opErr *OperationError
	if !errors.As(events[1].Err, &opErr) || opErr.Errors[0].Message != "Not Authorized" {
		t.Errorf("events[1].Err = %v, want OperationError", events[1].Err)
	}
}

func Test_Subscribe_ErrorFrameEndsStream(t *testing.T) {
	sub := wsServer(t, "test-key", func(t *testing.T, conn *websocket.Conn) {
		_, subscribe := handshake(t, conn)
		send(t, conn, wsMessage{ID: subscribe.ID, Type: msgError, Payload: json.RawMessage(`[{"message":"Validation error: unknown field"}]`)})
		// Keep the socket open; the client must close it.
		_, _, _ = conn.ReadMessage()
	})

	st, err := sub.Subscribe(context.Background(), `subscription { onNothing { id } }`, nil)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer st.Close()

	events := collect(t, st)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Err == nil || !strings.Contains(events[0].Err.Error(), "unknown field") {
		t.Errorf("event error = %v", events[0].Err)
	}
}

func Test_Subscribe_CloseSendsComplete(t *testing.T) {
	completed := make(chan wsMessage, 1)
	subscribed := make(chan string, 1)

	sub := wsServer(t, "test-key", func(t *testing.T, conn *websocket.Conn) {
		_, subscribe := handshake(t, conn)
		subscribed <- subscribe.ID
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err == nil {
			completed <- msg
		}
	})

	st, err := sub.Subscribe(context.Background(), `subscription { onDeleteNote { id } }`, nil)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	id := <-subscribed

	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// A second Close is a no-op.
	if err := st.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	select {
	case msg := <-completed:
		if msg.Type != msgComplete || msg.ID != id {
			t.Errorf("got %+v, want complete for %q", msg, id)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server never received complete")
	}

	events := collect(t, st)
	for _, ev := range events {
		if ev.Err == nil {
			t.Errorf("unexpected data event after Close: %s", ev.Data)
		}
	}
}

func Test_Subscribe_HandshakeRejected(t *testing.T) {
	sub := wsServer(t, "", func(t *testing.T, conn *websocket.Conn) {
		expect(t, conn, msgConnectionInit)
		send(t, conn, wsMessage{Type: msgError, Payload: json.RawMessage(`[{"message":"unauthorized"}]`)})
	})

	_, err := sub.Subscribe(context.Background(), `subscription { onCreateNote { id } }`, nil)
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v, want *TransportError", err)
	}
	if te.Op != "await connection_ack" {
		t.Errorf("Op = %q, want %q", te.Op, "await connection_ack")
	}
}

func Test_Subscribe_DialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	closedURL := srv.URL
	srv.Close()

	sub, err := NewWSSubscriber(config.GraphQLConfig{URL: closedURL, Timeout: 1}, nil)
	if err != nil {
		t.Fatalf("NewWSSubscriber: %v", err)
	}

	_, err = sub.Subscribe(context.Background(), `subscription { onCreateNote { id } }`, nil)
	var te *TransportError
	if !errors.As(err, &te) || te.Op != "dial" {
		t.Fatalf("error = %v, want dial *TransportError", err)
	}
}
