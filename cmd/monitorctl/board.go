package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dennisdiepolder/queuemonitor/internal/duration"
	"github.com/dennisdiepolder/queuemonitor/internal/types"
	"github.com/spf13/cobra"
)

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Show the live board",
	RunE:  runBoard,
}

var presenceCmd = &cobra.Command{
	Use:   "presence [name...]",
	Short: "Check whether agents are connected",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPresence,
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Request an immediate processing pass",
	RunE:  runRefresh,
}

var (
	boardSection string
	boardEmpty   bool
)

func init() {
	boardCmd.Flags().StringVar(&boardSection, "section", "", "Only show one section (e.g. call, prohibited, favorites)")
	boardCmd.Flags().BoolVar(&boardEmpty, "all", false, "Include empty sections")
}

func runBoard(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext(cmd)
	defer cancel()

	b, err := newClient().Board(ctx)
	if err != nil {
		return fmt.Errorf("failed to get board: %w", err)
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), b)
	}
	printBoard(cmd.OutOrStdout(), b, boardSection, boardEmpty)
	return nil
}

func printBoard(w io.Writer, b *types.Board, only string, showEmpty bool) {
	if b.Error != "" {
		fmt.Fprintf(w, "Board error: %s\n", b.Error)
		return
	}

	k := b.KPIs
	fmt.Fprintf(w, "Connected: %d  On queue: %d  Prohibited: %d  Alerts: %d\n",
		k.Connected, k.OnQueue, k.ProhibitedCount, k.ActiveAlerts)
	if k.LongestCall.Name != "" {
		fmt.Fprintf(w, "Longest call: %s (%s)\n", k.LongestCall.Name, duration.FormatHMS(k.LongestCall.Ms))
	}
	if k.LongestChat.Name != "" {
		fmt.Fprintf(w, "Longest chat: %s (%s)\n", k.LongestChat.Name, duration.FormatHMS(k.LongestChat.Ms))
	}
	switch {
	case b.Muted:
		fmt.Fprintln(w, "Alerts: muted")
	case b.SnoozeUntil != nil:
		fmt.Fprintf(w, "Alerts: snoozed until %s\n", b.SnoozeUntil.Local().Format("15:04"))
	}

	for _, s := range b.Sections {
		if only != "" && s.Key != only {
			continue
		}
		if len(s.Entities) == 0 && !showEmpty {
			continue
		}

		fmt.Fprintf(w, "\n%s (%d)\n", s.Label, len(s.Entities))
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "SLOT\tNAME\tSTATUS\tCALL\tCHATS\tALERTS")
		for _, e := range s.Entities {
			call := "-"
			if e.CallStart != nil {
				call = duration.FormatHMS(e.CallMs)
			}
			chats := make([]string, 0, len(e.Chats))
			for _, c := range e.Chats {
				chats = append(chats, duration.FormatHMS(c.Ms))
			}
			alerts := make([]string, 0, len(e.Alerts))
			for _, a := range e.Alerts {
				alerts = append(alerts, string(a))
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
				e.Slot, e.Name, duration.FormatHMS(e.StatusMs), call,
				dashIfEmpty(strings.Join(chats, ",")), dashIfEmpty(strings.Join(alerts, ",")))
		}
		tw.Flush()
	}
}

func runPresence(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext(cmd)
	defer cancel()

	results, err := newClient().Presence(ctx, args)
	if err != nil {
		return fmt.Errorf("failed to check presence: %w", err)
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), results)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "QUERY\tMATCH\tCATEGORY\tSINCE")
	for _, r := range results {
		if !r.Connected {
			fmt.Fprintf(tw, "%s\t-\tnot connected\t-\n", r.Query)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Query, r.Name, r.Category, duration.FormatHMS(r.StatusMs))
	}
	return tw.Flush()
}

func runRefresh(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext(cmd)
	defer cancel()

	if err := newClient().Refresh(ctx); err != nil {
		return fmt.Errorf("failed to request refresh: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Refresh scheduled")
	return nil
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
