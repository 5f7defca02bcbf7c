package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jamesprial/notetaker-mcp/internal/notes"
)

var editCmd = &cobra.Command{
	Use:   "edit <id> <text>...",
	Short: "Replace the text of a note",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		mgr := newManager(loadConfig())

		updated, err := mgr.Update(sessionContext(context.Background()), notes.Note{
			ID:   args[0],
			Text: strings.Join(args[1:], " "),
		})
		if err != nil {
			fatal("Failed to update note", err)
		}
		fmt.Printf("%s\t%s\n", updated.ID, updated.Text)
	},
}

func init() {
	rootCmd.AddCommand(editCmd)
}
