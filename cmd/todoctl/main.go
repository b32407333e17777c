// Package main implements todoctl, a command-line client for the todo server.
package main

import (
	"context"
	"os"
	"time"

	"todo_backend/internal/client"
	"todo_backend/internal/logger"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "todoctl",
	Short:         "Manage todos on a running todo server",
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := "warn"
		if verbose {
			level = "debug"
		}
		logger.InitWriter(os.Stderr, level, false)
	},
}

var (
	serverURL string
	timeout   time.Duration
	verbose   bool
)

func init() {
	defaultURL := os.Getenv("TODO_SERVER")
	if defaultURL == "" {
		defaultURL = "ws://127.0.0.1:8080/ws"
	}
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultURL, "WebSocket URL of the todo server (env TODO_SERVER)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Timeout for a single command")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")
}

// connect dials the server and returns a context bounded by --timeout.
func connect(cmd *cobra.Command) (*client.Client, context.Context, context.CancelFunc, error) {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	c, err := client.Dial(ctx, serverURL, nil)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	return c, ctx, func() {
		cancel()
		c.Close()
	}, nil
}
