package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var muteCmd = &cobra.Command{
	Use:   "mute",
	Short: "Mute alert notifications",
	RunE:  func(cmd *cobra.Command, args []string) error { return setMuted(cmd, true) },
}

var unmuteCmd = &cobra.Command{
	Use:   "unmute",
	Short: "Unmute alert notifications",
	RunE:  func(cmd *cobra.Command, args []string) error { return setMuted(cmd, false) },
}

var snoozeCmd = &cobra.Command{
	Use:   "snooze [minutes]",
	Short: "Snooze alert notifications (0 clears the snooze)",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnooze,
}

var favoriteCmd = &cobra.Command{
	Use:   "favorite",
	Short: "Manage pinned agents",
}

var favoriteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pinned agents",
	RunE:  runFavoriteList,
}

var favoriteAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Pin an agent",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setFavorite(cmd, args[0], true) },
}

var favoriteRemoveCmd = &cobra.Command{
	Use:   "remove [name]",
	Short: "Unpin an agent",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setFavorite(cmd, args[0], false) },
}

func init() {
	favoriteCmd.AddCommand(favoriteListCmd, favoriteAddCmd, favoriteRemoveCmd)
}

func setMuted(cmd *cobra.Command, muted bool) error {
	ctx, cancel := requestContext(cmd)
	defer cancel()

	if err := newClient().SetMuted(ctx, muted); err != nil {
		return fmt.Errorf("failed to set mute: %w", err)
	}
	if muted {
		fmt.Fprintln(cmd.OutOrStdout(), "Alerts muted")
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "Alerts unmuted")
	}
	return nil
}

func runSnooze(cmd *cobra.Command, args []string) error {
	minutes, err := strconv.Atoi(args[0])
	if err != nil || minutes < 0 {
		return fmt.Errorf("invalid minutes %q", args[0])
	}

	ctx, cancel := requestContext(cmd)
	defer cancel()

	until, err := newClient().Snooze(ctx, minutes)
	if err != nil {
		return fmt.Errorf("failed to snooze: %w", err)
	}
	if until.IsZero() {
		fmt.Fprintln(cmd.OutOrStdout(), "Snooze cleared")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Alerts snoozed until %s\n", until.Local().Format("15:04"))
	return nil
}

func runFavoriteList(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext(cmd)
	defer cancel()

	names, err := newClient().Favorites(ctx)
	if err != nil {
		return fmt.Errorf("failed to list favorites: %w", err)
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), names)
	}
	if len(names) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No favorites")
		return nil
	}
	for _, name := range names {
		fmt.Fprintln(cmd.OutOrStdout(), name)
	}
	return nil
}

func setFavorite(cmd *cobra.Command, name string, on bool) error {
	ctx, cancel := requestContext(cmd)
	defer cancel()

	if err := newClient().SetFavorite(ctx, name, on); err != nil {
		return fmt.Errorf("failed to update favorite: %w", err)
	}
	if on {
		fmt.Fprintf(cmd.OutOrStdout(), "Pinned %s\n", name)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Unpinned %s\n", name)
	}
	return nil
}
