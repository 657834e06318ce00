package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/dennisdiepolder/queuemonitor/internal/duration"
	"github.com/dennisdiepolder/queuemonitor/internal/types"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history [name]",
	Short: "Show the status history of an agent",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

var aggregatesCmd = &cobra.Command{
	Use:   "aggregates",
	Short: "Show per-agent totals of a day",
	RunE:  runAggregates,
}

var daysCmd = &cobra.Command{
	Use:   "days",
	Short: "List days with recorded data",
	RunE:  runDays,
}

var day string

func init() {
	historyCmd.Flags().StringVar(&day, "day", "", "Day (YYYY-MM-DD, default today)")
	aggregatesCmd.Flags().StringVar(&day, "day", "", "Day (YYYY-MM-DD, default today)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext(cmd)
	defer cancel()

	entries, err := newClient().History(ctx, args[0], day)
	if err != nil {
		return fmt.Errorf("failed to get history: %w", err)
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No history")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tEVENT\tTO\tDURATION")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			e.Timestamp.Local().Format("15:04:05"), e.Type, dashIfEmpty(string(e.To)), duration.FormatHMS(e.DurationMs))
	}
	return tw.Flush()
}

func runAggregates(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext(cmd)
	defer cancel()

	totals, err := newClient().Aggregates(ctx, day)
	if err != nil {
		return fmt.Errorf("failed to get aggregates: %w", err)
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), totals)
	}
	return printAggregates(cmd.OutOrStdout(), totals)
}

func printAggregates(w io.Writer, totals map[string]types.DayTotals) error {
	names := make([]string, 0, len(totals))
	for name := range totals {
		names = append(names, name)
	}
	sort.Strings(names)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCALL\tCHAT\tAFTER CALL\tNO ANSWER")
	for _, name := range names {
		t := totals[name]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", name,
			duration.FormatHMS(t.CallMs), duration.FormatHMS(t.ChatMs),
			duration.FormatHMS(t.AfterCallWorkMs), duration.FormatHMS(t.NoAnswerMs))
	}
	return tw.Flush()
}

func runDays(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext(cmd)
	defer cancel()

	days, err := newClient().Days(ctx)
	if err != nil {
		return fmt.Errorf("failed to list days: %w", err)
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), days)
	}
	for _, d := range days {
		fmt.Fprintln(cmd.OutOrStdout(), d)
	}
	return nil
}
