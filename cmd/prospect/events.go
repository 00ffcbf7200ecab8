package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kalambet/prospect/internal/repository"
	"github.com/kalambet/prospect/internal/storage"
)

func (a *app) eventCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "event",
		Short: "Manage calendar events",
	}
	cmd.AddCommand(
		a.eventAddCmd(),
		a.eventListCmd(),
		a.eventTodayCmd(),
		a.eventShowCmd(),
		a.eventEditCmd(),
		a.eventDeleteCmd(),
		a.eventRestoreCmd(),
		a.eventArchiveCmd(true),
		a.eventArchiveCmd(false),
		a.eventArchivedCmd(),
	)
	return cmd
}

func (a *app) eventAddCmd() *cobra.Command {
	var title, start, end, location, description string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an event",
		Long: `Add an event.

Examples:
  prospect event add --title "Demo" --start "2024-03-10 09:00" --end "2024-03-10 10:00"
  prospect event add --title "Trade show" --start 2024-04-02 --location "Hall B"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e := storage.Event{Title: title, Location: location, Description: description}
			var err error
			if e.StartTime, err = a.parseTime(start); err != nil {
				return err
			}
			if end != "" {
				t, err := a.parseTime(end)
				if err != nil {
					return err
				}
				e.EndTime = &t
			}
			id, err := a.repo.Add(e)
			if err != nil {
				return err
			}
			printSuccess("Added event %d", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "event title")
	cmd.Flags().StringVar(&start, "start", "", "start time (YYYY-MM-DD HH:MM)")
	cmd.Flags().StringVar(&end, "end", "", "end time (YYYY-MM-DD HH:MM)")
	cmd.Flags().StringVar(&location, "location", "", "where the event takes place")
	cmd.Flags().StringVar(&description, "description", "", "free-form notes")
	cmd.MarkFlagRequired("title")
	cmd.MarkFlagRequired("start")
	return cmd
}

func (a *app) eventListCmd() *cobra.Command {
	var desc, all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List events",
		RunE: func(cmd *cobra.Command, args []string) error {
			order := storage.StartAscending
			if desc {
				order = storage.StartDescending
			}
			events, err := a.repo.Events(order)
			if err != nil {
				return err
			}
			if !all {
				events = repository.Active(events)
			}
			a.printEvents(cmd.OutOrStdout(), events)
			return nil
		},
	}
	cmd.Flags().BoolVar(&desc, "desc", false, "latest start first")
	cmd.Flags().BoolVar(&all, "all", false, "include archived events")
	return cmd
}

func (a *app) eventTodayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "today",
		Short: "List today's events",
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := a.repo.TodayEvents()
			if err != nil {
				return err
			}
			a.printEvents(cmd.OutOrStdout(), repository.Active(events))
			return nil
		},
	}
}

func (a *app) eventShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a single event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.lookupEvent(args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, colorize(styleBold, fmt.Sprintf("#%d %s", e.ID, e.Title)))
			printField(w, "Start", a.formatTime(e.StartTime))
			if e.EndTime != nil {
				printField(w, "End", a.formatTime(*e.EndTime))
			}
			printField(w, "Location", e.Location)
			printField(w, "Description", e.Description)
			printField(w, "Created", a.formatTime(e.CreatedAt))
			if e.Archived {
				printField(w, "Archived", "yes")
			}
			return nil
		},
	}
}

func (a *app) eventEditCmd() *cobra.Command {
	var title, start, end, location, description string
	var clearEnd bool
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.lookupEvent(args[0])
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("title") {
				e.Title = title
			}
			if flags.Changed("location") {
				e.Location = location
			}
			if flags.Changed("description") {
				e.Description = description
			}
			if flags.Changed("start") {
				if e.StartTime, err = a.parseTime(start); err != nil {
					return err
				}
			}
			switch {
			case clearEnd:
				e.EndTime = nil
			case flags.Changed("end"):
				t, err := a.parseTime(end)
				if err != nil {
					return err
				}
				e.EndTime = &t
			}
			if err := a.repo.Update(e); err != nil {
				return err
			}
			printSuccess("Updated event %d", e.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "event title")
	cmd.Flags().StringVar(&start, "start", "", "start time (YYYY-MM-DD HH:MM)")
	cmd.Flags().StringVar(&end, "end", "", "end time (YYYY-MM-DD HH:MM)")
	cmd.Flags().BoolVar(&clearEnd, "clear-end", false, "remove the end time")
	cmd.Flags().StringVar(&location, "location", "", "where the event takes place")
	cmd.Flags().StringVar(&description, "description", "", "free-form notes")
	return cmd
}

func (a *app) eventDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an event (undo with 'event restore')",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.lookupEvent(args[0])
			if err != nil {
				return err
			}
			if err := a.repo.DeleteByID(e.ID); err != nil {
				return err
			}
			if err := saveUndo(a.cfg.Storage.DataDir, []storage.Event{e}); err != nil {
				printWarning("Deleted event %d but could not save undo snapshot: %v", e.ID, err)
				return nil
			}
			printSuccess("Deleted event %d", e.ID)
			return nil
		},
	}
}

func (a *app) eventRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore",
		Short: "Re-add the most recently deleted event",
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshots, err := loadUndo(a.cfg.Storage.DataDir)
			if err != nil {
				return err
			}
			if len(snapshots) == 0 {
				printWarning("Nothing to restore")
				return nil
			}
			for _, e := range snapshots {
				id, err := a.repo.Restore(e)
				if err != nil {
					return err
				}
				printSuccess("Restored %q as event %d", e.Title, id)
			}
			return clearUndo(a.cfg.Storage.DataDir)
		},
	}
}

func (a *app) eventArchiveCmd(archive bool) *cobra.Command {
	use, short := "archive <id>", "Move an event to the archive"
	if !archive {
		use, short = "unarchive <id>", "Move an event back from the archive"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if archive {
				err = a.repo.Archive(id)
			} else {
				err = a.repo.Unarchive(id)
			}
			if err != nil {
				return err
			}
			if archive {
				printSuccess("Archived event %d", id)
			} else {
				printSuccess("Unarchived event %d", id)
			}
			return nil
		},
	}
}

func (a *app) eventArchivedCmd() *cobra.Command {
	var query, from, to string
	var oldestFirst bool
	cmd := &cobra.Command{
		Use:   "archived",
		Short: "List archived events",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := a.archiveFilter(query, from, to, oldestFirst)
			if err != nil {
				return err
			}
			events, err := a.repo.Archived(f)
			if err != nil {
				return err
			}
			a.printEvents(cmd.OutOrStdout(), events)
			return nil
		},
	}
	cmd.Flags().StringVar(&query, "query", "", "text to match in title, location or description")
	cmd.Flags().StringVar(&from, "from", "", "earliest start date (YYYY-MM-DD, inclusive)")
	cmd.Flags().StringVar(&to, "to", "", "latest start date (YYYY-MM-DD, inclusive)")
	cmd.Flags().BoolVar(&oldestFirst, "oldest-first", false, "sort by ascending start")
	return cmd
}

func (a *app) archiveFilter(query, from, to string, oldestFirst bool) (repository.ArchiveFilter, error) {
	f := repository.ArchiveFilter{Query: query, OldestFirst: oldestFirst}
	var err error
	if from != "" {
		if f.From, err = a.parseTime(from); err != nil {
			return f, err
		}
	}
	if to != "" {
		if f.To, err = a.parseTime(to); err != nil {
			return f, err
		}
	}
	return f, nil
}

func (a *app) lookupEvent(arg string) (storage.Event, error) {
	id, err := parseID(arg)
	if err != nil {
		return storage.Event{}, err
	}
	e, found, err := a.repo.Get(id)
	if err != nil {
		return storage.Event{}, err
	}
	if !found {
		return storage.Event{}, fmt.Errorf("event %d: %w", id, storage.ErrNotFound)
	}
	return e, nil
}

func (a *app) printEvents(w io.Writer, events []storage.Event) {
	if len(events) == 0 {
		fmt.Fprintln(w, "No events.")
		return
	}
	for _, e := range events {
		when := a.formatTime(e.StartTime)
		if e.EndTime != nil {
			when += " to " + a.formatTime(*e.EndTime)
		}
		line := fmt.Sprintf("%s  %s  %s", colorize(styleStep, fmt.Sprintf("#%d", e.ID)), when, e.Title)
		if e.Location != "" {
			line += " @ " + e.Location
		}
		if e.Archived {
			line += " " + colorize(styleMuted, "[archived]")
		}
		fmt.Fprintln(w, line)
	}
}
