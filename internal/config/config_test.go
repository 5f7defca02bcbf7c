package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// testdataDir returns the absolute path to the testdata/config directory.
func testdataDir(t *testing.T) string {
	t.Helper()
	// Navigate from internal/config/ up to project root, then into testdata/config.
	dir, err := filepath.Abs(filepath.Join("..", "..", "testdata", "config"))
	if err != nil {
		t.Fatalf("failed to resolve testdata dir: %v", err)
	}
	return dir
}

// writeTempFile creates a temporary file with the given content and returns its path.
func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file %s: %v", path, err)
	}
	return path
}

func Test_LoadConfig_Cases(t *testing.T) {
	tests := []struct {
		name        string
		setupPath   func(t *testing.T) string
		wantErr     bool
		errContains string
		validate    func(t *testing.T, cfg *Config)
	}{
		{
			name: "valid config loads all fields",
			setupPath: func(t *testing.T) string {
				t.Helper()
				return filepath.Join(testdataDir(t), "valid.yaml")
			},
			validate: func(t *testing.T, cfg *Config) {
				t.Helper()
				if cfg == nil {
					t.Fatal("expected non-nil config")
				}
				if cfg.Server.Port != 9090 {
					t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
				}
				if cfg.Session.Secret != "test-session-secret" {
					t.Errorf("Session.Secret = %q, want %q", cfg.Session.Secret, "test-session-secret")
				}
				if cfg.Session.AnonymousUser != "visitor" {
					t.Errorf("Session.AnonymousUser = %q, want %q", cfg.Session.AnonymousUser, "visitor")
				}
				if cfg.GraphQL.URL != "https://example.appsync-api.local/graphql" {
					t.Errorf("GraphQL.URL = %q", cfg.GraphQL.URL)
				}
				if cfg.GraphQL.WSURL != "wss://example.appsync-realtime-api.local/graphql" {
					t.Errorf("GraphQL.WSURL = %q", cfg.GraphQL.WSURL)
				}
				if cfg.GraphQL.APIKey != "da2-testkey" {
					t.Errorf("GraphQL.APIKey = %q, want %q", cfg.GraphQL.APIKey, "da2-testkey")
				}
				if cfg.GraphQL.Timeout != 15 {
					t.Errorf("GraphQL.Timeout = %d, want 15", cfg.GraphQL.Timeout)
				}
				if cfg.Notes.Dedup != DedupByOwner {
					t.Errorf("Notes.Dedup = %q, want %q", cfg.Notes.Dedup, DedupByOwner)
				}
				if !cfg.Notes.Live || cfg.Notes.Seed {
					t.Errorf("Notes = %+v, want live without seed", cfg.Notes)
				}
				wantAllow := []string{"query/*", "mutation/updateNote"}
				if len(cfg.Safety.Operations.Allowlist) != len(wantAllow) {
					t.Errorf("Safety.Operations.Allowlist = %v, want %v", cfg.Safety.Operations.Allowlist, wantAllow)
				} else {
					for i, v := range wantAllow {
						if cfg.Safety.Operations.Allowlist[i] != v {
							t.Errorf("Safety.Operations.Allowlist[%d] = %q, want %q", i, cfg.Safety.Operations.Allowlist[i], v)
						}
					}
				}
				if len(cfg.Safety.Operations.Denylist) != 1 || cfg.Safety.Operations.Denylist[0] != "mutation/delete*" {
					t.Errorf("Safety.Operations.Denylist = %v, want [mutation/delete*]", cfg.Safety.Operations.Denylist)
				}
				if !cfg.Audit.Enabled {
					t.Errorf("Audit.Enabled = %v, want true", cfg.Audit.Enabled)
				}
				if cfg.Audit.LogPath != "/custom/audit.log" {
					t.Errorf("Audit.LogPath = %q, want %q", cfg.Audit.LogPath, "/custom/audit.log")
				}
				if cfg.Log.Level != "debug" {
					t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
				}
				if cfg.Notes.MaxSessions != 32 {
					t.Errorf("Notes.MaxSessions = %d, want 32", cfg.Notes.MaxSessions)
				}
				if cfg.Metrics.Enabled || cfg.Metrics.Path != "/internal/metrics" {
					t.Errorf("Metrics = %+v, want disabled at /internal/metrics", cfg.Metrics)
				}
			},
		},
		{
			name: "missing file returns error",
			setupPath: func(t *testing.T) string {
				t.Helper()
				return "/nonexistent/path/config.yaml"
			},
			wantErr:     true,
			errContains: "no such file",
			validate: func(t *testing.T, cfg *Config) {
				t.Helper()
				if cfg != nil {
					t.Error("expected nil config for missing file")
				}
			},
		},
		{
			name: "invalid YAML returns unmarshal error",
			setupPath: func(t *testing.T) string {
				t.Helper()
				return filepath.Join(testdataDir(t), "invalid.yaml")
			},
			wantErr:     true,
			errContains: "unmarshal",
			validate: func(t *testing.T, cfg *Config) {
				t.Helper()
				if cfg != nil {
					t.Error("expected nil config for invalid YAML")
				}
			},
		},
		{
			name: "empty file returns config with zero values",
			setupPath: func(t *testing.T) string {
				t.Helper()
				return writeTempFile(t, "empty.yaml", "")
			},
			validate: func(t *testing.T, cfg *Config) {
				t.Helper()
				if cfg == nil {
					t.Fatal("expected non-nil config for empty file")
				}
				if cfg.Server.Port != 0 {
					t.Errorf("Server.Port = %d, want 0 for empty file", cfg.Server.Port)
				}
				if cfg.Notes.Dedup != "" {
					t.Errorf("Notes.Dedup = %q, want empty for empty file", cfg.Notes.Dedup)
				}
				if cfg.Audit.Enabled {
					t.Errorf("Audit.Enabled = %v, want false for empty file", cfg.Audit.Enabled)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.setupPath(t)
			cfg, err := LoadConfig(path)

			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if tt.errContains != "" && !strings.Contains(strings.ToLower(err.Error()), strings.ToLower(tt.errContains)) {
					t.Errorf("error = %q, want it to contain %q", err.Error(), tt.errContains)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if tt.validate != nil {
				tt.validate(t, cfg)
			}
		})
	}
}

func Test_DefaultConfig_Values(t *testing.T) {
	cfg := DefaultConfig()
	if cfg == nil {
		t.Fatal("DefaultConfig() returned nil")
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Notes.Dedup != DedupByID {
		t.Errorf("Notes.Dedup = %q, want %q", cfg.Notes.Dedup, DedupByID)
	}
	if !cfg.Notes.Live {
		t.Error("Notes.Live = false, want true")
	}
	if !cfg.Notes.Seed {
		t.Error("Notes.Seed = false, want true")
	}
	if cfg.GraphQL.Timeout != 30 {
		t.Errorf("GraphQL.Timeout = %d, want 30", cfg.GraphQL.Timeout)
	}
	if cfg.Audit.LogPath != "/config/audit.log" {
		t.Errorf("Audit.LogPath = %q, want %q", cfg.Audit.LogPath, "/config/audit.log")
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics = %+v, want enabled at /metrics", cfg.Metrics)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func Test_DefaultConfig_ReturnsNewInstance(t *testing.T) {
	cfg1 := DefaultConfig()
	cfg2 := DefaultConfig()

	if cfg1 == cfg2 {
		t.Error("DefaultConfig() should return a new instance each time, got same pointer")
	}
}

func Test_Validate_Cases(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(cfg *Config)
		errContains string
	}{
		{name: "defaults are valid", mutate: func(cfg *Config) {}},
		{name: "owner dedup is valid", mutate: func(cfg *Config) { cfg.Notes.Dedup = DedupByOwner }},
		{name: "none dedup is valid", mutate: func(cfg *Config) { cfg.Notes.Dedup = DedupNone }},
		{name: "empty dedup is valid", mutate: func(cfg *Config) { cfg.Notes.Dedup = "" }},
		{
			name:        "unknown dedup is rejected",
			mutate:      func(cfg *Config) { cfg.Notes.Dedup = "text" },
			errContains: "notes.dedup",
		},
		{
			name:        "empty graphql url is rejected",
			mutate:      func(cfg *Config) { cfg.GraphQL.URL = "" },
			errContains: "graphql.url",
		},
		{
			name:        "negative max sessions is rejected",
			mutate:      func(cfg *Config) { cfg.Notes.MaxSessions = -1 },
			errContains: "notes.max_sessions",
		},
		{
			name:        "relative metrics path is rejected",
			mutate:      func(cfg *Config) { cfg.Metrics.Path = "metrics" },
			errContains: "metrics.path",
		},
		{
			name:   "metrics path ignored when disabled",
			mutate: func(cfg *Config) { cfg.Metrics.Enabled = false; cfg.Metrics.Path = "" },
		},
		{
			name:        "out of range port is rejected",
			mutate:      func(cfg *Config) { cfg.Server.Port = 70000 },
			errContains: "server.port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errContains == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.errContains)
			}
		})
	}
}

func Test_SlogLevel_Cases(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := &Config{Log: LogConfig{Level: tt.level}}
			if got := cfg.SlogLevel(); got != tt.want {
				t.Errorf("SlogLevel(%q) = %v, want %v", tt.level, got, tt.want)
			}
		})
	}
}
