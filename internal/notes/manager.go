package notes

import (
	"context"
	"fmt"
	"strings"

	"github.com/jamesprial/notetaker-mcp/internal/binding"
	"github.com/jamesprial/notetaker-mcp/internal/graphql"
)

// Compile-time interface check.
var _ NoteManager = (*GraphQLNoteManager)(nil)

// GraphQLNoteManager implements NoteManager using a GraphQL client.
type GraphQLNoteManager struct {
	client graphql.Client
}

// NewGraphQLNoteManager returns a new GraphQLNoteManager backed by the
// provided GraphQL client.
func NewGraphQLNoteManager(client graphql.Client) *GraphQLNoteManager {
	if client == nil {
		panic("graphql client must not be nil")
	}
	return &GraphQLNoteManager{client: client}
}

// validateID rejects empty note ids.
func validateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("invalid note id: empty string")
	}
	return nil
}

// validateText rejects notes with no visible text.
func validateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("note text must not be empty")
	}
	return nil
}

// List retrieves every note in server order.
func (m *GraphQLNoteManager) List(ctx context.Context) ([]Note, error) {
	resp, err := binding.Fetch[listResponse](ctx, m.client, ListOperation())
	if err != nil {
		return nil, fmt.Errorf("notes list: %w", err)
	}
	return resp.ListNotes.Items, nil
}

// Create stores n and returns the backend record.
func (m *GraphQLNoteManager) Create(ctx context.Context, n Note) (Note, error) {
	if err := validateText(n.Text); err != nil {
		return Note{}, fmt.Errorf("notes create: %w", err)
	}
	resp, err := binding.Mutate[createResponse](ctx, m.client, CreateOperation(n))
	if err != nil {
		return Note{}, fmt.Errorf("notes create: %w", err)
	}
	if resp.CreateNote == nil {
		return Note{}, fmt.Errorf("notes create: empty response")
	}
	return *resp.CreateNote, nil
}

// Update replaces the text of the note with n.ID.
func (m *GraphQLNoteManager) Update(ctx context.Context, n Note) (Note, error) {
	if err := validateID(n.ID); err != nil {
		return Note{}, fmt.Errorf("notes update: %w", err)
	}
	if err := validateText(n.Text); err != nil {
		return Note{}, fmt.Errorf("notes update: %w", err)
	}
	resp, err := binding.Mutate[updateResponse](ctx, m.client, UpdateOperation(n))
	if err != nil {
		return Note{}, fmt.Errorf("notes update: %w", err)
	}
	if resp.UpdateNote == nil {
		return Note{}, fmt.Errorf("notes update: note %q not found", n.ID)
	}
	return *resp.UpdateNote, nil
}

// Delete removes the note with id and returns the removed record.
func (m *GraphQLNoteManager) Delete(ctx context.Context, id string) (Note, error) {
	if err := validateID(id); err != nil {
		return Note{}, fmt.Errorf("notes delete: %w", err)
	}
	resp, err := binding.Mutate[deleteResponse](ctx, m.client, DeleteOperation(id))
	if err != nil {
		return Note{}, fmt.Errorf("notes delete: %w", err)
	}
	if resp.DeleteNote == nil {
		return Note{}, fmt.Errorf("notes delete: note %q not found", id)
	}
	return *resp.DeleteNote, nil
}
