// Package tools provides shared types and helpers for registering MCP tools
// on an MCP server instance.
package tools

import (
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Registration pairs an MCP tool definition with its handler function.
type Registration struct {
	Tool    mcp.Tool
	Handler server.ToolHandlerFunc
}

// Validate reports registrations that cannot be served: an empty tool name,
// a nil handler, or a name used twice. The MCP server would otherwise keep
// only the last handler for a duplicated name.
func Validate(registrations []Registration) error {
	seen := make(map[string]bool, len(registrations))
	for i, r := range registrations {
		switch {
		case r.Tool.Name == "":
			return fmt.Errorf("tool registration %d has no name", i)
		case r.Handler == nil:
			return fmt.Errorf("tool %q has no handler", r.Tool.Name)
		case seen[r.Tool.Name]:
			return fmt.Errorf("tool %q registered twice", r.Tool.Name)
		}
		seen[r.Tool.Name] = true
	}
	return nil
}

// RegisterAll validates registrations and adds them to s. Nothing is added
// when validation fails.
func RegisterAll(s *server.MCPServer, registrations []Registration) error {
	if err := Validate(registrations); err != nil {
		return err
	}
	for _, r := range registrations {
		s.AddTool(r.Tool, r.Handler)
	}
	return nil
}

// Names returns the tool names of registrations in order.
func Names(registrations []Registration) []string {
	names := make([]string, len(registrations))
	for i, r := range registrations {
		names[i] = r.Tool.Name
	}
	return names
}
