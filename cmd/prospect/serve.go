package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/prospect/internal/reminder"
)

func (a *app) serveCmd() *cobra.Command {
	var once, logOnly bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Deliver follow-up reminders and the due digest (foreground)",
		Long: `Deliver follow-up reminders and the due digest.

Runs until interrupted. With --once, delivers every reminder that is due
now, sends one digest if a schedule is configured, and exits.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var notifier reminder.Notifier = reminder.NewWriterNotifier(cmd.OutOrStdout(), a.loc)
			if logOnly {
				notifier = reminder.LogNotifier{Logger: a.logger}
			}
			worker := reminder.NewWorker(a.store, notifier, a.cfg.Reminder.PollInterval).WithLogger(a.logger)

			var digest *reminder.Digest
			if schedule := a.cfg.Reminder.DigestSchedule; schedule != "" {
				d, err := reminder.NewDigest(a.store, notifier, schedule)
				if err != nil {
					return err
				}
				digest = d.WithLogger(a.logger)
			}

			if once {
				return drain(ctx, worker, digest)
			}

			printStep("Delivering reminders from %s (Ctrl-C to stop)", a.cfg.Storage.DataDir)
			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				worker.Run(ctx)
				return nil
			})
			if digest != nil {
				g.Go(func() error { return digest.Run(ctx) })
			}
			err := g.Wait()
			printStep("Stopped")
			return err
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "deliver what is due now and exit")
	cmd.Flags().BoolVar(&logOnly, "log", false, "report reminders through the logger instead of stdout")
	return cmd
}

func drain(ctx context.Context, worker *reminder.Worker, digest *reminder.Digest) error {
	sent := 0
	for {
		done, err := worker.RunOnce(ctx)
		if err != nil {
			return err
		}
		if !done {
			break
		}
		sent++
	}
	if digest != nil {
		if _, err := digest.RunOnce(ctx); err != nil {
			return fmt.Errorf("sending digest: %w", err)
		}
	}
	printSuccess("Processed %d reminder jobs", sent)
	return nil
}
