package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var rmCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"delete"},
	Short:   "Delete a note",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		mgr := newManager(loadConfig())

		deleted, err := mgr.Delete(sessionContext(context.Background()), args[0])
		if err != nil {
			fatal("Failed to delete note", err)
		}
		fmt.Printf("deleted %s\n", deleted.ID)
	},
}

func init() {
	rootCmd.AddCommand(rmCmd)
}
