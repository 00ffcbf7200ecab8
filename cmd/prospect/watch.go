package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kalambet/prospect/internal/storage"
)

func (a *app) watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print live query results until interrupted",
	}

	eventsCmd := &cobra.Command{
		Use:   "events",
		Short: "Follow the full event list",
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, err := a.repo.ObserveAll()
			if err != nil {
				return err
			}
			return follow(cmd.Context(), cmd.OutOrStdout(), sub, a.printEvents)
		},
	}

	todayCmd := &cobra.Command{
		Use:   "today",
		Short: "Follow today's events",
		Long: `Follow today's events.

The day is fixed when the command starts; restart it after midnight.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, err := a.repo.ObserveToday()
			if err != nil {
				return err
			}
			return follow(cmd.Context(), cmd.OutOrStdout(), sub, a.printEvents)
		},
	}

	dueCmd := &cobra.Command{
		Use:   "due",
		Short: "Follow the due follow-up list",
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, err := a.repo.ObserveDue()
			if err != nil {
				return err
			}
			return follow(cmd.Context(), cmd.OutOrStdout(), sub, func(w io.Writer, due []storage.Interaction) {
				views, err := a.viewsOf(due)
				if err != nil {
					printError("loading names: %v", err)
					return
				}
				a.printInteractions(w, views)
			})
		},
	}

	cmd.AddCommand(eventsCmd, todayCmd, dueCmd)
	return cmd
}

// follow prints every snapshot from sub until ctx is done or the
// subscription ends.
func follow[T any](ctx context.Context, w io.Writer, sub storage.Subscription[T], print func(io.Writer, []T)) error {
	defer sub.Close()
	n := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case snapshot, ok := <-sub.Updates:
			if !ok {
				return nil
			}
			n++
			fmt.Fprintln(w, colorize(styleMuted, fmt.Sprintf("== update %d (%d rows) ==", n, len(snapshot))))
			print(w, snapshot)
		}
	}
}
