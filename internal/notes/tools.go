package notes

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jamesprial/notetaker-mcp/internal/safety"
	"github.com/jamesprial/notetaker-mcp/internal/session"
	"github.com/jamesprial/notetaker-mcp/internal/tools"
)

// DestructiveTools lists note tool names that require confirmation before
// execution.
var DestructiveTools = []string{"notes_delete"}

// NoteTools returns the tool registrations for the notes board. Every tool
// requires a session and acts on that user's controller.
func NoteTools(reg *Registry, confirm *safety.ConfirmationTracker, audit *safety.AuditLogger) []tools.Registration {
	return []tools.Registration{
		toolNotesList(reg, audit),
		toolNotesCreate(reg, audit),
		toolNotesUpdate(reg, audit),
		toolNotesDelete(reg, confirm, audit),
		toolNotesRefresh(reg, audit),
	}
}

// controllerFor resolves the caller's controller or an error result.
func controllerFor(ctx context.Context, reg *Registry) (*Controller, *mcp.CallToolResult) {
	s, err := session.Require(ctx)
	if err != nil {
		return nil, tools.ErrorResult(err.Error())
	}
	return reg.For(ctx, s.User()), nil
}

// toolNotesList constructs the notes_list Registration.
func toolNotesList(reg *Registry, audit *safety.AuditLogger) tools.Registration {
	const toolName = "notes_list"

	tool := mcp.NewTool(toolName,
		mcp.WithDescription("List your notes, newest first. The result also reports whether the list is still loading and the last error fetching it."),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()

		ctrl, errResult := controllerFor(ctx, reg)
		if errResult != nil {
			tools.LogAudit(ctx, audit, toolName, nil, "error: no session", start)
			return errResult, nil
		}

		view := ctrl.View()
		result := "ok"
		if view.Error != "" {
			result = "ok: stale: " + view.Error
		}
		tools.LogAudit(ctx, audit, toolName, nil, result, start)
		return tools.JSONResult(view), nil
	}

	return tools.Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}

// toolNotesCreate constructs the notes_create Registration.
func toolNotesCreate(reg *Registry, audit *safety.AuditLogger) tools.Registration {
	const toolName = "notes_create"

	tool := mcp.NewTool(toolName,
		mcp.WithDescription("Write a new note. It appears at the top of the list immediately and is removed again if the backend rejects it."),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Text of the note"),
		),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()

		text := req.GetString("text", "")
		params := map[string]any{"text": text}

		ctrl, errResult := controllerFor(ctx, reg)
		if errResult != nil {
			tools.LogAudit(ctx, audit, toolName, params, "error: no session", start)
			return errResult, nil
		}

		n, err := ctrl.Create(ctx, text)
		if err != nil {
			tools.LogAudit(ctx, audit, toolName, params, "error: "+err.Error(), start)
			return tools.ErrorResult(err.Error()), nil
		}

		tools.LogAudit(ctx, audit, toolName, params, "ok", start)
		return tools.JSONResult(n), nil
	}

	return tools.Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}

// toolNotesUpdate constructs the notes_update Registration.
func toolNotesUpdate(reg *Registry, audit *safety.AuditLogger) tools.Registration {
	const toolName = "notes_update"

	tool := mcp.NewTool(toolName,
		mcp.WithDescription("Replace the text of an existing note. The note keeps its position in the list."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("ID of the note to edit"),
		),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("New text of the note"),
		),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()

		id := req.GetString("id", "")
		text := req.GetString("text", "")
		params := map[string]any{"id": id, "text": text}

		ctrl, errResult := controllerFor(ctx, reg)
		if errResult != nil {
			tools.LogAudit(ctx, audit, toolName, params, "error: no session", start)
			return errResult, nil
		}

		n, err := ctrl.Update(ctx, id, text)
		if err != nil {
			tools.LogAudit(ctx, audit, toolName, params, "error: "+err.Error(), start)
			return tools.ErrorResult(err.Error()), nil
		}

		tools.LogAudit(ctx, audit, toolName, params, "ok", start)
		return tools.JSONResult(n), nil
	}

	return tools.Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}

// toolNotesDelete constructs the notes_delete Registration.
func toolNotesDelete(reg *Registry, confirm *safety.ConfirmationTracker, audit *safety.AuditLogger) tools.Registration {
	const toolName = "notes_delete"

	tool := mcp.NewTool(toolName,
		mcp.WithDescription("Delete a note permanently. Requires a confirmation token returned by a prior call."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("ID of the note to delete"),
		),
		mcp.WithString("confirmation_token",
			mcp.Description("Confirmation token returned by a prior call"),
		),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()

		id := req.GetString("id", "")
		token := req.GetString("confirmation_token", "")
		params := map[string]any{"id": id, "confirmation_token": token}

		if id == "" {
			msg := "notes_delete requires an id parameter"
			tools.LogAudit(ctx, audit, toolName, params, "error: "+msg, start)
			return tools.ErrorResult(msg), nil
		}

		ctrl, errResult := controllerFor(ctx, reg)
		if errResult != nil {
			tools.LogAudit(ctx, audit, toolName, params, "error: no session", start)
			return errResult, nil
		}

		resource := fmt.Sprintf("note %s", id)
		if !confirm.Confirm(token, toolName, resource) {
			desc := fmt.Sprintf("This will permanently delete note %q.", id)
			if n, ok := ctrl.Lookup(id); ok {
				desc = fmt.Sprintf("This will permanently delete note %q (%q).", id, n.Text)
			}
			tools.LogAudit(ctx, audit, toolName, params, "confirmation required", start)
			return tools.ConfirmPrompt(confirm, toolName, resource, desc), nil
		}

		n, err := ctrl.Delete(ctx, id)
		if err != nil {
			tools.LogAudit(ctx, audit, toolName, params, "error: "+err.Error(), start)
			return tools.ErrorResult(err.Error()), nil
		}

		tools.LogAudit(ctx, audit, toolName, params, "ok", start)
		return mcp.NewToolResultText(fmt.Sprintf("note %q deleted successfully", n.ID)), nil
	}

	return tools.Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}

// toolNotesRefresh constructs the notes_refresh Registration.
func toolNotesRefresh(reg *Registry, audit *safety.AuditLogger) tools.Registration {
	const toolName = "notes_refresh"

	tool := mcp.NewTool(toolName,
		mcp.WithDescription("Fetch the note list from the backend again. Returns the list as it stands while the fetch is in flight; call notes_list to see the result."),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()

		ctrl, errResult := controllerFor(ctx, reg)
		if errResult != nil {
			tools.LogAudit(ctx, audit, toolName, nil, "error: no session", start)
			return errResult, nil
		}

		ctrl.Refresh(ctx)
		tools.LogAudit(ctx, audit, toolName, nil, "ok", start)
		return tools.JSONResult(ctrl.View()), nil
	}

	return tools.Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}
