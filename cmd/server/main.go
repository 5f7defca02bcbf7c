// Package main is the entry point for the notetaker-mcp server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/jamesprial/notetaker-mcp/internal/config"
	"github.com/jamesprial/notetaker-mcp/internal/graphql"
	"github.com/jamesprial/notetaker-mcp/internal/metrics"
	"github.com/jamesprial/notetaker-mcp/internal/notes"
	"github.com/jamesprial/notetaker-mcp/internal/safety"
	"github.com/jamesprial/notetaker-mcp/internal/session"
	"github.com/jamesprial/notetaker-mcp/internal/tools"
)

const (
	defaultConfigPath = "/config/config.yaml"
	shutdownTimeout   = 15 * time.Second
)

func main() {
	bootstrap := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg := loadConfig(bootstrap)
	config.ApplyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		bootstrap.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "err", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	secretBefore := cfg.Session.Secret
	secret, err := config.EnsureSessionSecret(cfg)
	if err != nil {
		logger.Warn("could not generate session secret, token signatures will not be verified", "err", err)
	} else if secretBefore == "" && secret != "" {
		logger.Info("generated session secret (set NOTETAKER_SESSION_SECRET to persist)", "secret", secret)
	}

	// Open audit log writer if enabled.
	var auditLogger *safety.AuditLogger
	if cfg.Audit.Enabled {
		f, err := os.OpenFile(cfg.Audit.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			logger.Warn("audit logging disabled", "path", cfg.Audit.LogPath, "err", err)
		} else {
			auditLogger = safety.NewAuditLogger(f)
			defer f.Close()
		}
	}

	client, err := graphql.NewHTTPClient(cfg.GraphQL)
	if err != nil {
		return fmt.Errorf("graphql client: %w", err)
	}

	var (
		promRegistry *prometheus.Registry
		collector    *metrics.Collector
	)
	if cfg.Metrics.Enabled {
		promRegistry = prometheus.NewRegistry()
		promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		collector = metrics.New(promRegistry)
	}

	policy, err := notes.ParseDedupPolicy(cfg.Notes.Dedup)
	if err != nil {
		return err
	}
	opts := []notes.Option{
		notes.WithLogger(logger),
		notes.WithDedup(policy),
		notes.WithMaxSessions(cfg.Notes.MaxSessions),
		notes.WithMetrics(collector),
	}
	if cfg.Notes.Seed {
		opts = append(opts, notes.WithSeed(notes.DefaultSeed()...))
	}
	if cfg.Notes.Live {
		sub, err := graphql.NewWSSubscriber(cfg.GraphQL, logger)
		if err != nil {
			logger.Warn("live updates unavailable", "err", err)
		} else {
			opts = append(opts, notes.WithSubscriber(sub))
		}
	}
	registry := notes.NewRegistry(client, opts...)
	defer registry.Close()

	notesConfirm := safety.NewConfirmationTracker(notes.DestructiveTools)
	operationFilter := safety.NewFilter(
		cfg.Safety.Operations.Allowlist,
		cfg.Safety.Operations.Denylist,
	)

	mcpServer := server.NewMCPServer(
		"notetaker-mcp",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	var registrations []tools.Registration
	registrations = append(registrations, notes.NoteTools(registry, notesConfirm, auditLogger)...)
	registrations = append(registrations, graphql.GraphQLTools(client, operationFilter, auditLogger)...)
	registrations = collector.Instrument(registrations)
	if err := tools.RegisterAll(mcpServer, registrations); err != nil {
		return fmt.Errorf("register tools: %w", err)
	}
	logger.Debug("registered tools", "tools", tools.Names(registrations))

	mcpHandler := server.NewStreamableHTTPServer(mcpServer,
		server.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			if s, ok := session.FromContext(r.Context()); ok {
				return session.NewContext(ctx, s)
			}
			return ctx
		}),
	)

	gate := session.NewMiddleware(session.Gate{
		Secret:        cfg.Session.Secret,
		Disabled:      cfg.Session.Disabled,
		AnonymousUser: cfg.Session.AnonymousUser,
		Logger:        logger,
	})

	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "OK")
	}).Methods(http.MethodGet)
	if promRegistry != nil {
		r.Handle(cfg.Metrics.Path, metrics.Handler(promRegistry)).Methods(http.MethodGet)
	}
	r.PathPrefix("/mcp").Handler(gate(mcpHandler))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("notetaker-mcp listening", "addr", addr, "graphql", cfg.GraphQL.URL, "live", cfg.Notes.Live)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// loadConfig attempts to read the config file from the path specified by
// NOTETAKER_CONFIG_PATH or the default /config/config.yaml. If the file
// cannot be read, DefaultConfig is returned.
func loadConfig(logger *slog.Logger) *config.Config {
	path := os.Getenv("NOTETAKER_CONFIG_PATH")
	if path == "" {
		path = defaultConfigPath
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		logger.Warn("could not load config, using defaults", "path", path, "err", err)
		return config.DefaultConfig()
	}

	logger.Info("loaded config", "path", path)
	return cfg
}
