package graphql

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jamesprial/notetaker-mcp/internal/safety"
	"github.com/jamesprial/notetaker-mcp/internal/session"
	"github.com/jamesprial/notetaker-mcp/internal/tools"
)

const toolNameGraphQLQuery = "graphql_query"

// GraphQLTools returns the tool registrations for the GraphQL escape hatch.
// It exposes a single "graphql_query" tool whose operations are checked
// against filter by "<kind>/<rootField>" name. A nil filter allows every
// query and mutation.
func GraphQLTools(client Client, filter *safety.Filter, audit *safety.AuditLogger) []tools.Registration {
	if filter == nil {
		filter = safety.NewFilter(nil, nil)
	}
	return []tools.Registration{
		toolGraphQLQuery(client, filter, audit),
	}
}

// OperationName returns the "<kind>/<rootField>" name of the first operation
// in document, for example "mutation/deleteNote". A bare selection set is a
// query.
func OperationName(document string) (string, error) {
	s := stripComments(document)
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("empty document")
	}

	kind := "query"
	if s[0] != '{' {
		word, rest := nextName(s)
		switch word {
		case "query", "mutation", "subscription":
			kind = word
		default:
			return "", fmt.Errorf("unsupported definition %q", word)
		}
		s = rest
	}

	body, err := selectionSet(s)
	if err != nil {
		return "", err
	}
	field, rest := nextName(body)
	if field == "" {
		return "", fmt.Errorf("no root field in %s", kind)
	}
	// "alias: field" selects field.
	if rest = strings.TrimSpace(rest); strings.HasPrefix(rest, ":") {
		field, _ = nextName(rest[1:])
		if field == "" {
			return "", fmt.Errorf("alias without field in %s", kind)
		}
	}
	return kind + "/" + field, nil
}

// selectionSet skips an optional operation name, variable definitions and
// directives, and returns the text after the opening brace of the selection
// set.
func selectionSet(s string) (string, error) {
	depth := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case '{':
			if depth == 0 {
				return s[i+1:], nil
			}
		}
	}
	return "", fmt.Errorf("missing selection set")
}

// nextName returns the leading GraphQL name of s and the remainder.
func nextName(s string) (string, string) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	end := strings.IndexFunc(s, func(r rune) bool {
		return !(r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r))
	})
	if end < 0 {
		end = len(s)
	}
	return s[:end], s[end:]
}

// stripComments drops "#" comments outside string literals.
func stripComments(s string) string {
	var b strings.Builder
	inString, inComment := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inComment:
			if c == '\n' {
				inComment = false
				b.WriteByte(c)
			}
		case inString:
			b.WriteByte(c)
			if c == '\\' && i+1 < len(s) {
				i++
				b.WriteByte(s[i])
			} else if c == '"' {
				inString = false
			}
		case c == '#':
			inComment = true
		default:
			if c == '"' {
				inString = true
			}
			b.WriteByte(c)
		}
	}
	return b.String()
}

// toolGraphQLQuery constructs the graphql_query Registration.
func toolGraphQLQuery(client Client, filter *safety.Filter, audit *safety.AuditLogger) tools.Registration {
	tool := mcp.NewTool(toolNameGraphQLQuery,
		mcp.WithDescription("Execute a GraphQL query or mutation against the notes backend. Use when direct API access is needed beyond the notes tools. Operations are restricted by the server's allow and deny lists; subscriptions are not supported."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The GraphQL query or mutation string to execute."),
		),
		mcp.WithString("variables",
			mcp.Description("Optional JSON object string of variables to pass with the query."),
		),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()

		query := req.GetString("query", "")
		variablesStr := req.GetString("variables", "")

		params := map[string]any{
			"query":     query,
			"variables": variablesStr,
		}

		if _, err := session.Require(ctx); err != nil {
			tools.LogAudit(ctx, audit, toolNameGraphQLQuery, params, "error: no session", start)
			return tools.ErrorResult(err.Error()), nil
		}

		name, err := OperationName(query)
		if err != nil {
			errMsg := fmt.Sprintf("parse operation: %v", err)
			tools.LogAudit(ctx, audit, toolNameGraphQLQuery, params, "error: "+errMsg, start)
			return tools.ErrorResult(errMsg), nil
		}
		params["operation"] = name

		if strings.HasPrefix(name, "subscription/") {
			errMsg := "subscriptions are not supported by graphql_query"
			tools.LogAudit(ctx, audit, toolNameGraphQLQuery, params, "error: "+errMsg, start)
			return tools.ErrorResult(errMsg), nil
		}
		if !filter.IsAllowed(name) {
			errMsg := fmt.Sprintf("operation %q is not allowed", name)
			tools.LogAudit(ctx, audit, toolNameGraphQLQuery, params, "error: "+errMsg, start)
			return tools.ErrorResult(errMsg), nil
		}

		// Parse variables JSON if provided.
		var parsedVars map[string]any
		if variablesStr != "" {
			if err := json.Unmarshal([]byte(variablesStr), &parsedVars); err != nil {
				errMsg := fmt.Sprintf("parse variables JSON: %v", err)
				tools.LogAudit(ctx, audit, toolNameGraphQLQuery, params, "error: "+errMsg, start)
				return tools.ErrorResult(errMsg), nil
			}
		}

		data, err := client.Execute(ctx, query, parsedVars)
		if err != nil {
			tools.LogAudit(ctx, audit, toolNameGraphQLQuery, params, "error: "+err.Error(), start)
			return tools.ErrorResult(err.Error()), nil
		}

		// Unmarshal the raw JSON bytes into any so tools.JSONResult can
		// pretty-print it with consistent indentation.
		var parsed any
		if err := json.Unmarshal(data, &parsed); err != nil {
			tools.LogAudit(ctx, audit, toolNameGraphQLQuery, params, "error: "+err.Error(), start)
			return tools.ErrorResult(err.Error()), nil
		}

		tools.LogAudit(ctx, audit, toolNameGraphQLQuery, params, "ok", start)
		return tools.JSONResult(parsed), nil
	}

	return tools.Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}
