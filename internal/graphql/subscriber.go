package graphql

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jamesprial/notetaker-mcp/internal/config"
	"github.com/jamesprial/notetaker-mcp/internal/session"
)

// Subprotocol is the websocket sub-protocol spoken by WSSubscriber.
const Subprotocol = "graphql-transport-ws"

// Message types of the graphql-transport-ws protocol.
const (
	msgConnectionInit = "connection_init"
	msgConnectionAck  = "connection_ack"
	msgPing           = "ping"
	msgPong           = "pong"
	msgSubscribe      = "subscribe"
	msgNext           = "next"
	msgError          = "error"
	msgComplete       = "complete"
)

const (
	ackTimeout   = 10 * time.Second
	writeTimeout = 5 * time.Second
	eventBuffer  = 16
)

// wsMessage is the envelope of every graphql-transport-ws frame.
type wsMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// WSSubscriber opens one websocket connection per subscription.
type WSSubscriber struct {
	dialer *websocket.Dialer
	wsURL  string
	apiKey string
	logger *slog.Logger
}

// NewWSSubscriber constructs a WSSubscriber from cfg. The endpoint is
// cfg.WSURL, or cfg.URL with its scheme switched to ws/wss when WSURL is
// empty.
func NewWSSubscriber(cfg config.GraphQLConfig, logger *slog.Logger) (*WSSubscriber, error) {
	wsURL := cfg.WSURL
	if wsURL == "" {
		if cfg.URL == "" {
			return nil, fmt.Errorf("graphql: URL is required")
		}
		wsURL = websocketURL(normalizeURL(cfg.URL))
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WSSubscriber{
		dialer: &websocket.Dialer{
			HandshakeTimeout: timeoutOf(cfg),
			Subprotocols:     []string{Subprotocol},
		},
		wsURL:  wsURL,
		apiKey: cfg.APIKey,
		logger: logger,
	}, nil
}

// websocketURL maps an http(s) endpoint onto the matching ws(s) endpoint.
func websocketURL(httpURL string) string {
	switch {
	case strings.HasPrefix(httpURL, "https://"):
		return "wss://" + strings.TrimPrefix(httpURL, "https://")
	case strings.HasPrefix(httpURL, "http://"):
		return "ws://" + strings.TrimPrefix(httpURL, "http://")
	default:
		return httpURL
	}
}

// initPayload builds the connection_init payload from the session carried by
// ctx and the configured API key.
func (s *WSSubscriber) initPayload(ctx context.Context) map[string]string {
	p := map[string]string{}
	if sess, ok := session.FromContext(ctx); ok && sess.Token != "" {
		p["Authorization"] = "Bearer " + sess.Token
	}
	if s.apiKey != "" {
		p["x-api-key"] = s.apiKey
	}
	return p
}

// Subscribe dials the endpoint, performs the connection_init handshake and
// starts the subscription. ctx bounds the dial and handshake only; the
// returned Stream lives until Close is called or the server ends it.
func (s *WSSubscriber) Subscribe(ctx context.Context, query string, variables map[string]any) (Stream, error) {
	conn, _, err := s.dialer.DialContext(ctx, s.wsURL, http.Header{})
	if err != nil {
		return nil, &TransportError{Op: "dial", Err: err}
	}

	st := &wsStream{
		conn:   conn,
		id:     uuid.NewString(),
		events: make(chan Event, eventBuffer),
		done:   make(chan struct{}),
		logger: s.logger,
	}

	if err := st.write(msgConnectionInit, "", s.initPayload(ctx)); err != nil {
		_ = conn.Close()
		return nil, &TransportError{Op: "connection_init", Err: err}
	}
	if err := st.awaitAck(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	payload := graphqlRequest{Query: query, Variables: variables}
	if err := st.write(msgSubscribe, st.id, payload); err != nil {
		_ = conn.Close()
		return nil, &TransportError{Op: "subscribe", Err: err}
	}

	go st.readLoop()
	return st, nil
}

// wsStream is a single subscription on its own connection.
type wsStream struct {
	conn   *websocket.Conn
	id     string
	events chan Event
	done   chan struct{}
	logger *slog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (st *wsStream) Events() <-chan Event { return st.events }

// Close sends complete for the subscription and closes the connection. It is
// safe to call more than once.
func (st *wsStream) Close() error {
	var err error
	st.closeOnce.Do(func() {
		close(st.done)
		if werr := st.write(msgComplete, st.id, nil); werr != nil {
			st.logger.Debug("send complete failed", "id", st.id, "err", werr)
		}
		err = st.conn.Close()
	})
	return err
}

func (st *wsStream) write(typ, id string, payload any) error {
	msg := wsMessage{ID: id, Type: typ}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		msg.Payload = raw
	}

	st.writeMu.Lock()
	defer st.writeMu.Unlock()
	_ = st.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return st.conn.WriteJSON(msg)
}

func (st *wsStream) awaitAck(ctx context.Context) error {
	deadline := time.Now().Add(ackTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = st.conn.SetReadDeadline(deadline)
	defer func() { _ = st.conn.SetReadDeadline(time.Time{}) }()

	for {
		var msg wsMessage
		if err := st.conn.ReadJSON(&msg); err != nil {
			return &TransportError{Op: "await connection_ack", Err: err}
		}
		switch msg.Type {
		case msgConnectionAck:
			return nil
		case msgPing:
			if err := st.write(msgPong, "", nil); err != nil {
				return &TransportError{Op: "pong", Err: err}
			}
		default:
			return &TransportError{Op: "await connection_ack", Err: fmt.Errorf("unexpected %q message", msg.Type)}
		}
	}
}

// emit delivers ev unless the stream has been closed.
func (st *wsStream) emit(ev Event) bool {
	select {
	case st.events <- ev:
		return true
	case <-st.done:
		return false
	}
}

func (st *wsStream) closed() bool {
	select {
	case <-st.done:
		return true
	default:
		return false
	}
}

func (st *wsStream) readLoop() {
	defer close(st.events)

	for {
		var msg wsMessage
		if err := st.conn.ReadJSON(&msg); err != nil {
			if !st.closed() {
				st.emit(Event{Err: &TransportError{Op: "read", Err: err}})
			}
			return
		}

		switch msg.Type {
		case msgNext:
			if msg.ID != st.id {
				continue
			}
			var resp graphqlResponse
			if err := json.Unmarshal(msg.Payload, &resp); err != nil {
				if !st.emit(Event{Err: fmt.Errorf("graphql: decode next payload: %w", err)}) {
					return
				}
				continue
			}
			ev := Event{Data: resp.Data}
			if len(resp.Errors) > 0 {
				ev = Event{Err: &OperationError{Errors: resp.Errors}}
			}
			if !st.emit(ev) {
				return
			}
		case msgError:
			var errs []GraphQLError
			if err := json.Unmarshal(msg.Payload, &errs); err != nil {
				errs = []GraphQLError{{Message: string(msg.Payload)}}
			}
			st.emit(Event{Err: &OperationError{Errors: errs}})
			_ = st.conn.Close()
			return
		case msgComplete:
			_ = st.conn.Close()
			return
		case msgPing:
			if err := st.write(msgPong, "", nil); err != nil {
				st.logger.Debug("send pong failed", "id", st.id, "err", err)
			}
		case msgPong, msgConnectionAck:
		default:
			st.logger.Debug("ignoring unknown message", "type", msg.Type)
		}
	}
}
