package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jamesprial/notetaker-mcp/internal/notes"
	"github.com/jamesprial/notetaker-mcp/internal/session"
)

var addID string

// addCmd represents the add command
var addCmd = &cobra.Command{
	Use:   "add <text>...",
	Short: "Create a note",
	Long:  `Create a note from the joined arguments. A random id is used unless --id is given.`,
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		mgr := newManager(loadConfig())
		ctx := sessionContext(context.Background())

		n := notes.Note{ID: addID, Text: strings.Join(args, " ")}
		if n.ID == "" {
			n.ID = uuid.NewString()
		}
		if s, ok := session.FromContext(ctx); ok {
			n.Owner = s.User()
		}

		created, err := mgr.Create(ctx, n)
		if err != nil {
			fatal("Failed to create note", err)
		}
		fmt.Println(created.ID)
	},
}

func init() {
	rootCmd.AddCommand(addCmd)
	addCmd.Flags().StringVar(&addID, "id", "", "Explicit note id")
}
