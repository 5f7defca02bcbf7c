package notes

import (
	"github.com/jamesprial/notetaker-mcp/internal/binding"
)

const noteFields = `id note owner`

const (
	listNotesQuery = `query ListNotes { listNotes { items { ` + noteFields + ` } } }`

	createNoteMutation = `mutation CreateNote($input: CreateNoteInput!) { createNote(input: $input) { ` + noteFields + ` } }`
	updateNoteMutation = `mutation UpdateNote($input: UpdateNoteInput!) { updateNote(input: $input) { ` + noteFields + ` } }`
	deleteNoteMutation = `mutation DeleteNote($input: DeleteNoteInput!) { deleteNote(input: $input) { ` + noteFields + ` } }`

	onCreateNoteSubscription = `subscription OnCreateNote { onCreateNote { ` + noteFields + ` } }`
	onUpdateNoteSubscription = `subscription OnUpdateNote { onUpdateNote { ` + noteFields + ` } }`
	onDeleteNoteSubscription = `subscription OnDeleteNote { onDeleteNote { ` + noteFields + ` } }`
)

// Payload keys of the push channels.
const (
	KeyOnCreate = "onCreateNote"
	KeyOnUpdate = "onUpdateNote"
	KeyOnDelete = "onDeleteNote"
)

type listResponse struct {
	ListNotes struct {
		Items []Note `json:"items"`
	} `json:"listNotes"`
}

type createResponse struct {
	CreateNote *Note `json:"createNote"`
}

type updateResponse struct {
	UpdateNote *Note `json:"updateNote"`
}

type deleteResponse struct {
	DeleteNote *Note `json:"deleteNote"`
}

// ListOperation returns the descriptor for listing all notes.
func ListOperation() binding.Operation {
	return binding.Operation{Query: listNotesQuery}
}

// CreateOperation returns the descriptor that stores n. The id is sent so
// that an optimistic insert and the backend record share it.
func CreateOperation(n Note) binding.Operation {
	input := map[string]any{"note": n.Text}
	if n.ID != "" {
		input["id"] = n.ID
	}
	return binding.Operation{Query: createNoteMutation, Variables: map[string]any{"input": input}}
}

// UpdateOperation returns the descriptor that replaces the text of n.
func UpdateOperation(n Note) binding.Operation {
	return binding.Operation{
		Query:     updateNoteMutation,
		Variables: map[string]any{"input": map[string]any{"id": n.ID, "note": n.Text}},
	}
}

// DeleteOperation returns the descriptor that removes the note with id.
func DeleteOperation(id string) binding.Operation {
	return binding.Operation{
		Query:     deleteNoteMutation,
		Variables: map[string]any{"input": map[string]any{"id": id}},
	}
}

// SubscriptionFor returns the push channel configuration for kind.
func SubscriptionFor(kind EventKind) *binding.SubscriptionConfig {
	switch kind {
	case Created:
		return &binding.SubscriptionConfig{Operation: binding.Operation{Query: onCreateNoteSubscription}, Key: KeyOnCreate}
	case Updated:
		return &binding.SubscriptionConfig{Operation: binding.Operation{Query: onUpdateNoteSubscription}, Key: KeyOnUpdate}
	case Deleted:
		return &binding.SubscriptionConfig{Operation: binding.Operation{Query: onDeleteNoteSubscription}, Key: KeyOnDelete}
	}
	return nil
}
