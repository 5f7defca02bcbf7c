package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jamesprial/notetaker-mcp/internal/config"
	"github.com/jamesprial/notetaker-mcp/internal/graphql"
	"github.com/jamesprial/notetaker-mcp/internal/notes"
	"github.com/jamesprial/notetaker-mcp/internal/session"
)

var (
	verbose    bool
	configPath string
	endpoint   string
	token      string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "notectl",
	Short: "Read and edit notes stored on the notes GraphQL backend",
	Long: `notectl talks to the same GraphQL backend as the notetaker-mcp server.
The session token is taken from --token or NOTECTL_TOKEN.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a notetaker config file")
	rootCmd.PersistentFlags().StringVar(&endpoint, "url", "", "GraphQL endpoint (overrides the config file)")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("NOTECTL_TOKEN"), "Session token sent to the backend")
}

// loadConfig reads --config when given and applies environment and flag
// overrides on top.
func loadConfig() *config.Config {
	cfg := config.DefaultConfig()
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			fatal("Failed to load config", err)
		}
		cfg = loaded
	}
	config.ApplyEnvOverrides(cfg)
	if endpoint != "" {
		cfg.GraphQL.URL = endpoint
	}
	if err := cfg.Validate(); err != nil {
		fatal("Invalid configuration", err)
	}
	return cfg
}

// sessionContext attaches the --token session, if any, to ctx.
func sessionContext(ctx context.Context) context.Context {
	if token == "" {
		return ctx
	}
	s, err := session.Parse(token, "")
	if err != nil {
		slog.Debug("token claims unreadable, sending it as is", "err", err)
		s = session.Session{Token: token}
	}
	return session.NewContext(ctx, s)
}

func newManager(cfg *config.Config) notes.NoteManager {
	client, err := graphql.NewHTTPClient(cfg.GraphQL)
	if err != nil {
		fatal("Failed to create GraphQL client", err)
	}
	return notes.NewGraphQLNoteManager(client)
}
