package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jamesprial/notetaker-mcp/internal/graphql"
	"github.com/jamesprial/notetaker-mcp/internal/notes"
)

var watchJSON bool

// watchCmd prints note changes pushed by the backend until interrupted.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream note changes",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		sub, err := graphql.NewWSSubscriber(cfg.GraphQL, slog.Default())
		if err != nil {
			fatal("Failed to create subscriber", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		ctx = sessionContext(ctx)

		var mu sync.Mutex
		encoder := json.NewEncoder(os.Stdout)
		w := notes.NewWatcher(sub, func(ev notes.Event) {
			mu.Lock()
			defer mu.Unlock()
			if watchJSON {
				_ = encoder.Encode(ev)
				return
			}
			fmt.Printf("%s\t%s\t%s\n", ev.Kind, ev.Note.ID, ev.Note.Text)
		}, notes.WithLogger(slog.Default()))

		if err := w.Start(ctx); err != nil {
			w.Stop()
			fatal("Failed to open push channels", err)
		}

		<-ctx.Done()
		w.Stop()
		w.Wait()
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().BoolVar(&watchJSON, "json", false, "Print events as JSON lines")
}
