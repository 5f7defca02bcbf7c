package notes

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jamesprial/notetaker-mcp/internal/binding"
	"github.com/jamesprial/notetaker-mcp/internal/graphql"
)

// View is what a caller renders: the board plus the list binding status.
type View struct {
	Notes   []Note `json:"notes"`
	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`
	Live    bool   `json:"live"`
}

// Controller owns one user's board. The list query fills it, local edits
// change it optimistically and push events from other clients keep it live.
//
// A list result reflects the backend at the moment the request was issued.
// Writes made after that (local edits, push events, creates still awaiting
// the backend) are journalled and replayed over the result, so a slow list
// never takes back a change the board already showed.
type Controller struct {
	user    string
	mgr     NoteManager
	logger  *slog.Logger
	board   *Board
	list    *binding.Query[listResponse]
	watcher *Watcher

	mu      sync.Mutex
	listing bool
	journal []write
	pending []Note

	live liveRetry
}

// liveRetry throttles attempts to reopen push channels that are down.
type liveRetry struct {
	interval time.Duration

	mu      sync.Mutex
	running bool
	closed  bool
	last    time.Time
}

// write is one board change. Local writes come from this controller and are
// applied without the dedup policy; the rest are push events.
type write struct {
	ev    Event
	local bool
}

// NewController returns a controller for user. It does not contact the
// backend until Start.
func NewController(client graphql.Client, user string, opts ...Option) *Controller {
	o := newOptions(opts)
	logger := o.logger.With("user", user)

	c := &Controller{
		user:   user,
		mgr:    NewGraphQLNoteManager(client),
		logger: logger,
		board:  NewBoard(o.dedup, user, o.seed...),
		list:   binding.NewQuery[listResponse](client, o.bindingOptions(logger)...),
	}
	c.list.OnChange(c.onList)
	c.live.interval = o.liveRetry
	if o.subscriber != nil {
		c.watcher = NewWatcher(o.subscriber, c.apply, WithLogger(logger), WithMetrics(o.metrics))
	}
	return c
}

func (c *Controller) onList(st binding.QueryState[listResponse]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st.Loading {
		c.listing = true
		c.journal = nil
		return
	}
	if st.Err == nil {
		c.board.Replace(st.Data.ListNotes.Items)
		for _, n := range c.pending {
			if !c.board.Contains(n.ID) {
				c.board.Prepend(n)
			}
		}
		for _, w := range c.journal {
			c.replay(w)
		}
		if n := len(c.pending) + len(c.journal); n > 0 {
			c.logger.Debug("replayed writes over list result", "writes", n)
		}
	}
	// A newer request may already be out; its result needs the journal too.
	if !c.list.State().Loading {
		c.listing = false
		c.journal = nil
	}
}

// writeLocked applies w and journals it while a list request is
// outstanding. It must be called with c.mu held.
func (c *Controller) writeLocked(w write) bool {
	if c.listing {
		c.journal = append(c.journal, w)
	}
	return c.replay(w)
}

func (c *Controller) replay(w write) bool {
	if !w.local {
		return c.board.Apply(w.ev)
	}
	switch w.ev.Kind {
	case Created:
		if !c.board.Update(w.ev.Note) {
			c.board.Prepend(w.ev.Note)
		}
		return true
	case Updated:
		return c.board.Update(w.ev.Note)
	case Deleted:
		_, ok := c.board.Remove(w.ev.Note.ID)
		return ok
	}
	return false
}

func (c *Controller) apply(ev Event) {
	c.mu.Lock()
	applied := c.writeLocked(write{ev: ev})
	c.mu.Unlock()
	if !applied {
		c.logger.Debug("push event ignored", "kind", ev.Kind.String(), "id", ev.Note.ID)
	}
}

// Start binds the list query and opens the push channels. Requests outlive
// ctx's cancellation so a short-lived caller does not cut them off. A push
// channel failure is returned, but the list binding stays active.
func (c *Controller) Start(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)
	c.list.Bind(ctx, ListOperation())
	if c.watcher == nil {
		return nil
	}
	c.live.mu.Lock()
	c.live.last = time.Now()
	c.live.mu.Unlock()
	return c.watcher.Start(ctx)
}

// Reconnect reopens push channels that failed to open or that the server
// ended. It runs at most one attempt at a time, no more often than the
// WithLiveRetry interval, and does nothing once the controller is closed.
// It reports whether the channels are open afterwards.
func (c *Controller) Reconnect(ctx context.Context) bool {
	if c.watcher == nil {
		return false
	}
	if c.watcher.Active() {
		return true
	}

	c.live.mu.Lock()
	if c.live.closed || c.live.running || time.Since(c.live.last) < c.live.interval {
		c.live.mu.Unlock()
		return false
	}
	c.live.running = true
	c.live.last = time.Now()
	c.live.mu.Unlock()

	err := c.watcher.Start(context.WithoutCancel(ctx))

	c.live.mu.Lock()
	c.live.running = false
	closed := c.live.closed
	c.live.mu.Unlock()
	if closed {
		// Close ran while channels were opening; drop what came up.
		c.watcher.Stop()
		return false
	}
	if err != nil {
		c.logger.Debug("live updates still unavailable", "err", err)
		return false
	}
	c.logger.Info("live updates restored")
	return true
}

// Refresh re-issues the list query.
func (c *Controller) Refresh(ctx context.Context) {
	c.list.Refetch(context.WithoutCancel(ctx))
}

// Create prepends a note with a client-generated id, then stores it. If the
// store fails the note is taken off the board again.
func (c *Controller) Create(ctx context.Context, text string) (Note, error) {
	if err := validateText(text); err != nil {
		return Note{}, fmt.Errorf("notes create: %w", err)
	}
	n := Note{ID: uuid.NewString(), Text: strings.TrimSpace(text), Owner: c.user}
	c.mu.Lock()
	c.pending = append(c.pending, n)
	c.writeLocked(write{ev: Event{Kind: Created, Note: n}, local: true})
	c.mu.Unlock()

	created, err := c.mgr.Create(ctx, n)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = slices.DeleteFunc(c.pending, func(p Note) bool { return p.ID == n.ID })
	if err != nil {
		c.writeLocked(write{ev: Event{Kind: Deleted, Note: n}, local: true})
		c.logger.Warn("create rolled back", "id", n.ID, "err", err)
		return Note{}, err
	}
	if created.ID != n.ID {
		// The backend assigned its own id; swap the optimistic entry for it.
		c.writeLocked(write{ev: Event{Kind: Deleted, Note: n}, local: true})
	}
	// Put the stored note in place, or back at the front if a list result
	// dropped it meanwhile.
	c.writeLocked(write{ev: Event{Kind: Created, Note: created}, local: true})
	return created, nil
}

// Update changes the text of the note with id and replaces it in place.
func (c *Controller) Update(ctx context.Context, id, text string) (Note, error) {
	updated, err := c.mgr.Update(ctx, Note{ID: id, Text: strings.TrimSpace(text)})
	if err != nil {
		return Note{}, err
	}
	c.mu.Lock()
	c.writeLocked(write{ev: Event{Kind: Updated, Note: updated}, local: true})
	c.mu.Unlock()
	return updated, nil
}

// Delete removes the note with id from the backend and the board.
func (c *Controller) Delete(ctx context.Context, id string) (Note, error) {
	deleted, err := c.mgr.Delete(ctx, id)
	if err != nil {
		return Note{}, err
	}
	c.mu.Lock()
	c.writeLocked(write{ev: Event{Kind: Deleted, Note: Note{ID: id}}, local: true})
	c.mu.Unlock()
	return deleted, nil
}

// Lookup returns the note with id if it is on the board.
func (c *Controller) Lookup(id string) (Note, bool) {
	for _, n := range c.board.Notes() {
		if n.ID == id {
			return n, true
		}
	}
	return Note{}, false
}

// View returns the current board and list status.
func (c *Controller) View() View {
	st := c.list.State()
	v := View{
		Notes:   c.board.Notes(),
		Loading: st.Loading,
		Live:    c.watcher != nil && c.watcher.Active(),
	}
	if st.Err != nil {
		v.Error = st.Err.Error()
	}
	if v.Notes == nil {
		v.Notes = []Note{}
	}
	return v
}

// Close stops the push channels. In-flight list requests still resolve.
func (c *Controller) Close() {
	c.live.mu.Lock()
	c.live.closed = true
	c.live.mu.Unlock()
	if c.watcher != nil {
		c.watcher.Stop()
	}
}

// Wait blocks until in-flight list requests have resolved and push channels
// have drained.
func (c *Controller) Wait() {
	c.list.Wait()
	if c.watcher != nil {
		c.watcher.Wait()
	}
}
