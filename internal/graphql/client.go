package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jamesprial/notetaker-mcp/internal/config"
	"github.com/jamesprial/notetaker-mcp/internal/session"
)

const defaultTimeout = 30 * time.Second

// HTTPClient is a concrete implementation of the Client interface that sends
// GraphQL requests over HTTP.
type HTTPClient struct {
	httpClient *http.Client
	graphqlURL string
	apiKey     string
}

// NewHTTPClient constructs an HTTPClient from the provided GraphQLConfig.
// It returns an error if cfg.URL is empty. When cfg.Timeout is zero or
// negative, a default timeout of 30 seconds is used.
func NewHTTPClient(cfg config.GraphQLConfig) (*HTTPClient, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("graphql: URL is required")
	}

	return &HTTPClient{
		httpClient: &http.Client{Timeout: timeoutOf(cfg)},
		graphqlURL: normalizeURL(cfg.URL),
		apiKey:     cfg.APIKey,
	}, nil
}

func timeoutOf(cfg config.GraphQLConfig) time.Duration {
	if cfg.Timeout <= 0 {
		return defaultTimeout
	}
	return time.Duration(cfg.Timeout) * time.Second
}

// normalizeURL trims any trailing slash from rawURL and appends /graphql if
// the path does not already end with that suffix.
func normalizeURL(rawURL string) string {
	u := strings.TrimRight(rawURL, "/")
	if !strings.HasSuffix(u, "/graphql") {
		u += "/graphql"
	}
	return u
}

// graphqlRequest is the JSON body shape for a GraphQL HTTP request.
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// graphqlResponse is the JSON body shape for a GraphQL HTTP response.
type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []GraphQLError  `json:"errors"`
}

// credentials returns the headers that authenticate a request: the session
// token carried by ctx and the configured API key. At least one is required.
func credentials(ctx context.Context, apiKey string) (http.Header, error) {
	h := http.Header{}
	if s, ok := session.FromContext(ctx); ok && s.Token != "" {
		h.Set("Authorization", "Bearer "+s.Token)
	}
	if apiKey != "" {
		h.Set("x-api-key", apiKey)
	}
	if len(h) == 0 {
		return nil, fmt.Errorf("graphql: no credentials: configure an API key or sign in")
	}
	return h, nil
}

// Execute sends a GraphQL operation to the configured endpoint and returns
// the raw JSON bytes of the "data" field on success. Variables may be nil, in
// which case the "variables" key is omitted from the request body.
//
// Execute returns an error if:
//   - neither a session token nor an API key is available
//   - the HTTP request cannot be created or sent (*TransportError)
//   - the server responds with a non-2xx status code (*TransportError)
//   - the response body cannot be decoded as JSON
//   - the GraphQL response contains one or more errors (*OperationError)
func (c *HTTPClient) Execute(ctx context.Context, query string, variables map[string]any) ([]byte, error) {
	headers, err := credentials(ctx, c.apiKey)
	if err != nil {
		return nil, err
	}

	bodyBytes, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("graphql: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("graphql: create request: %w", err)
	}
	req.Header = headers
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "request failed", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransportError{Op: "request failed", StatusCode: resp.StatusCode}
	}

	var gqlResp graphqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&gqlResp); err != nil {
		return nil, fmt.Errorf("graphql: decode response: %w", err)
	}

	if len(gqlResp.Errors) > 0 {
		return nil, &OperationError{Errors: gqlResp.Errors}
	}

	return []byte(gqlResp.Data), nil
}
