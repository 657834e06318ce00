package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dennisdiepolder/queuemonitor/pkg/client"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "monitorctl",
	Short:         "monitorctl - queue monitor operator CLI",
	Long:          `monitorctl reads the live board and drives the operator controls of a queue monitor server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	apiAddr    string
	apiToken   string
	jsonOutput bool
	timeout    time.Duration
)

func init() {
	rootCmd.PersistentFlags().StringVar(&apiAddr, "api", envOr("MONITOR_API", "http://127.0.0.1:8080"), "API server address")
	rootCmd.PersistentFlags().StringVar(&apiToken, "token", os.Getenv("MONITOR_TOKEN"), "Bearer token")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print raw JSON")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")

	rootCmd.AddCommand(boardCmd, presenceCmd, refreshCmd)
	rootCmd.AddCommand(muteCmd, unmuteCmd, snoozeCmd)
	rootCmd.AddCommand(favoriteCmd)
	rootCmd.AddCommand(historyCmd, aggregatesCmd, daysCmd)
	rootCmd.AddCommand(resetCmd, exportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newClient() *client.Client {
	return client.NewClient(apiAddr, apiToken)
}

func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
