package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jamesprial/notetaker-mcp/internal/session"
)

var tokenTTL time.Duration

// tokenCmd mints a development session token signed with the configured
// session secret.
var tokenCmd = &cobra.Command{
	Use:   "token <user>",
	Short: "Issue a development session token",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		t, err := session.Issue(args[0], cfg.Session.Secret, tokenTTL)
		if err != nil {
			fatal("Failed to issue token", err)
		}
		fmt.Println(t)
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
}
