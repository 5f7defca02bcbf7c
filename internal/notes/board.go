package notes

import (
	"slices"
	"sync"
)

// Board is the displayed note list. New notes go to the front; otherwise
// the order is whatever the server last returned.
type Board struct {
	policy DedupPolicy
	self   string

	mu    sync.Mutex
	notes []Note
}

// NewBoard returns a board holding initial. self is the current user, used
// by DedupByOwner.
func NewBoard(policy DedupPolicy, self string, initial ...Note) *Board {
	return &Board{policy: policy, self: self, notes: slices.Clone(initial)}
}

// Notes returns a copy of the list in display order.
func (b *Board) Notes() []Note {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.notes)
}

// Len returns the number of notes on the board.
func (b *Board) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.notes)
}

// Contains reports whether a note with id is on the board.
func (b *Board) Contains(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.indexLocked(id) >= 0
}

func (b *Board) indexLocked(id string) int {
	return slices.IndexFunc(b.notes, func(n Note) bool { return n.ID == id })
}

// Replace adopts list, in server order, as the whole board.
func (b *Board) Replace(list []Note) {
	b.mu.Lock()
	b.notes = slices.Clone(list)
	b.mu.Unlock()
}

// Prepend puts n at the front of the board unconditionally.
func (b *Board) Prepend(n Note) {
	b.mu.Lock()
	b.notes = slices.Insert(b.notes, 0, n)
	b.mu.Unlock()
}

// Update replaces the note with n.ID in place. It reports false when no such
// note is on the board.
func (b *Board) Update(n Note) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.indexLocked(n.ID)
	if i < 0 {
		return false
	}
	b.notes[i] = n
	return true
}

// Remove drops the note with id and returns it. It reports false when no
// such note is on the board.
func (b *Board) Remove(id string) (Note, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.indexLocked(id)
	if i < 0 {
		return Note{}, false
	}
	n := b.notes[i]
	b.notes = slices.Delete(b.notes, i, i+1)
	return n, true
}

// Apply reconciles a push event into the board and reports whether the
// board changed.
func (b *Board) Apply(ev Event) bool {
	switch ev.Kind {
	case Created:
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.suppressLocked(ev.Note) {
			return false
		}
		b.notes = slices.Insert(b.notes, 0, ev.Note)
		return true
	case Updated:
		return b.Update(ev.Note)
	case Deleted:
		_, ok := b.Remove(ev.Note.ID)
		return ok
	}
	return false
}

func (b *Board) suppressLocked(n Note) bool {
	switch b.policy {
	case DedupNone:
		return false
	case DedupByOwner:
		if b.self != "" && n.Owner == b.self {
			return true
		}
	}
	return b.indexLocked(n.ID) >= 0
}
