package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear all monitor state (admin)",
	RunE:  runReset,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Archive the report of a day (admin)",
	RunE:  runExport,
}

var (
	resetConfirm bool
	exportDay    string
)

func init() {
	resetCmd.Flags().BoolVar(&resetConfirm, "yes", false, "Confirm the reset")
	exportCmd.Flags().StringVar(&exportDay, "day", "", "Day (YYYY-MM-DD, default today)")
}

func runReset(cmd *cobra.Command, args []string) error {
	if !resetConfirm {
		return fmt.Errorf("reset clears slots, history and aggregates; rerun with --yes")
	}

	ctx, cancel := requestContext(cmd)
	defer cancel()

	if err := newClient().Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "State reset")
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext(cmd)
	defer cancel()

	location, err := newClient().Export(ctx, exportDay)
	if err != nil {
		return fmt.Errorf("failed to export: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", location)
	return nil
}
