// Package config provides configuration loading and defaults for the
// notetaker-mcp server and the notectl client.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Dedup policies accepted by NotesConfig.Dedup.
const (
	DedupByID    = "id"
	DedupByOwner = "owner"
	DedupNone    = "none"
)

// ResourceFilter holds allowlist and denylist entries for a resource category.
type ResourceFilter struct {
	Allowlist []string `yaml:"allowlist"`
	Denylist  []string `yaml:"denylist"`
}

// SafetyConfig groups the filters applied to the raw GraphQL tool.
type SafetyConfig struct {
	Operations ResourceFilter `yaml:"operations"`
}

// AuditConfig controls audit logging behaviour.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	LogPath string `yaml:"log_path"`
}

// ServerConfig holds network settings for the MCP HTTP server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// SessionConfig controls how caller sessions are established.
type SessionConfig struct {
	// Secret is the HMAC key used to verify session tokens. When empty the
	// token claims are read without signature verification and the backend
	// is trusted to reject forged tokens.
	Secret string `yaml:"secret"`
	// Disabled skips the sign-in gate and attaches an anonymous session
	// named AnonymousUser to every request.
	Disabled      bool   `yaml:"disabled"`
	AnonymousUser string `yaml:"anonymous_user"`
}

// GraphQLConfig holds connection details for the managed GraphQL backend.
type GraphQLConfig struct {
	URL string `yaml:"url"`
	// WSURL is the websocket endpoint used for subscriptions. When empty it
	// is derived from URL.
	WSURL  string `yaml:"ws_url"`
	APIKey string `yaml:"api_key"`
	// Timeout is the HTTP request timeout in seconds.
	Timeout int `yaml:"timeout"`
}

// NotesConfig controls the notes controller.
type NotesConfig struct {
	Dedup string `yaml:"dedup"`
	// Live opens the create/update/delete subscriptions on startup.
	Live bool `yaml:"live"`
	// Seed shows the welcome note until the first list result arrives.
	Seed bool `yaml:"seed"`
	// MaxSessions bounds the per-user controllers kept in memory. Zero
	// selects the built-in default.
	MaxSessions int `yaml:"max_sessions"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LogConfig controls the operator log.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Config is the top-level configuration structure.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Session SessionConfig `yaml:"session"`
	GraphQL GraphQLConfig `yaml:"graphql"`
	Notes   NotesConfig   `yaml:"notes"`
	Safety  SafetyConfig  `yaml:"safety"`
	Audit   AuditConfig   `yaml:"audit"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
}

// LoadConfig reads and parses a YAML configuration file from the given path.
// It returns a pointer to the populated Config and any error encountered.
// On error, nil is returned for the config pointer.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// DefaultConfig returns a new Config populated with sensible default values.
// Each call returns a distinct instance.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
		},
		Session: SessionConfig{
			AnonymousUser: "guest",
		},
		GraphQL: GraphQLConfig{
			URL:     "http://localhost/graphql",
			Timeout: 30,
		},
		Notes: NotesConfig{
			Dedup: DedupByID,
			Live:  true,
			Seed:  true,
		},
		Audit: AuditConfig{
			Enabled: true,
			LogPath: "/config/audit.log",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// ApplyEnvOverrides updates cfg in place with values from environment variables.
// Recognized variables:
//   - NOTETAKER_GRAPHQL_URL overrides cfg.GraphQL.URL
//   - NOTETAKER_GRAPHQL_WS_URL overrides cfg.GraphQL.WSURL
//   - NOTETAKER_GRAPHQL_API_KEY overrides cfg.GraphQL.APIKey
//   - NOTETAKER_SESSION_SECRET overrides cfg.Session.Secret
//   - NOTETAKER_NOTES_DEDUP overrides cfg.Notes.Dedup
//   - NOTETAKER_LOG_LEVEL overrides cfg.Log.Level
func ApplyEnvOverrides(cfg *Config) {
	if url := os.Getenv("NOTETAKER_GRAPHQL_URL"); url != "" {
		cfg.GraphQL.URL = url
	}
	if url := os.Getenv("NOTETAKER_GRAPHQL_WS_URL"); url != "" {
		cfg.GraphQL.WSURL = url
	}
	if key := os.Getenv("NOTETAKER_GRAPHQL_API_KEY"); key != "" {
		cfg.GraphQL.APIKey = key
	}
	if secret := os.Getenv("NOTETAKER_SESSION_SECRET"); secret != "" {
		cfg.Session.Secret = secret
	}
	if dedup := os.Getenv("NOTETAKER_NOTES_DEDUP"); dedup != "" {
		cfg.Notes.Dedup = dedup
	}
	if level := os.Getenv("NOTETAKER_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
}

// Validate reports configuration values that cannot be used. An empty
// notes.dedup means DedupByID.
func (c *Config) Validate() error {
	switch c.Notes.Dedup {
	case "", DedupByID, DedupByOwner, DedupNone:
	default:
		return fmt.Errorf("invalid notes.dedup %q: must be id, owner, or none", c.Notes.Dedup)
	}
	if c.GraphQL.URL == "" {
		return fmt.Errorf("graphql.url is required")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if c.Notes.MaxSessions < 0 {
		return fmt.Errorf("invalid notes.max_sessions %d", c.Notes.MaxSessions)
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("invalid metrics.path %q: must start with /", c.Metrics.Path)
	}
	return nil
}

// SlogLevel maps cfg.Log.Level onto a slog level. Unknown values map to Info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// EnsureSessionSecret generates a random session secret and sets it on cfg
// if cfg.Session.Secret is empty and sessions are enabled. It returns the
// secret (existing or generated) and any error encountered during generation.
func EnsureSessionSecret(cfg *Config) (string, error) {
	if cfg.Session.Secret != "" || cfg.Session.Disabled {
		return cfg.Session.Secret, nil
	}
	secret, err := GenerateRandomToken()
	if err != nil {
		return "", fmt.Errorf("generate session secret: %w", err)
	}
	cfg.Session.Secret = secret
	return secret, nil
}

// GenerateRandomToken returns a 32-character hex-encoded cryptographically
// random token string.
func GenerateRandomToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("rand.Read: %w", err)
	}
	return hex.EncodeToString(b), nil
}
