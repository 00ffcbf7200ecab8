package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/prospect/internal/ics"
	"github.com/kalambet/prospect/internal/repository"
	"github.com/kalambet/prospect/internal/storage"
)

func (a *app) exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export events",
	}

	var csvOut string
	var csvArchived bool
	csvCmd := &cobra.Command{
		Use:   "csv",
		Short: "Export events as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := a.exportSet(csvArchived)
			if err != nil {
				return err
			}
			w, done, err := openOutput(cmd, csvOut)
			if err != nil {
				return err
			}
			if err := a.repo.ExportEvents(w, events); err != nil {
				done()
				return err
			}
			if err := done(); err != nil {
				return err
			}
			if csvOut != "" {
				printSuccess("Exported %d events to %s", len(events), csvOut)
			}
			return nil
		},
	}
	csvCmd.Flags().StringVar(&csvOut, "output", "", "output file path (default: stdout)")
	csvCmd.Flags().BoolVar(&csvArchived, "archived", false, "export only archived events")

	var icsOut string
	var icsArchived bool
	icsCmd := &cobra.Command{
		Use:   "ics",
		Short: "Export events as an iCalendar file",
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := a.exportSet(icsArchived)
			if err != nil {
				return err
			}
			w, done, err := openOutput(cmd, icsOut)
			if err != nil {
				return err
			}
			if err := ics.Encode(w, events, ics.Options{Now: time.Now()}); err != nil {
				done()
				return err
			}
			if err := done(); err != nil {
				return err
			}
			if icsOut != "" {
				printSuccess("Exported %d events to %s", len(events), icsOut)
			}
			return nil
		},
	}
	icsCmd.Flags().StringVar(&icsOut, "output", "", "output file path (default: stdout)")
	icsCmd.Flags().BoolVar(&icsArchived, "archived", false, "export only archived events")

	cmd.AddCommand(csvCmd, icsCmd)
	return cmd
}

func (a *app) exportSet(archivedOnly bool) ([]storage.Event, error) {
	if archivedOnly {
		return a.repo.Archived(repository.ArchiveFilter{OldestFirst: true})
	}
	return a.repo.Events(storage.StartAscending)
}

func (a *app) importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import events",
	}

	var archived bool
	csvCmd := &cobra.Command{
		Use:   "csv <file>",
		Short: "Import events from a CSV file",
		Long: `Import events from a CSV file.

Every imported event gets a new id. Rows that cannot be read are skipped
and reported.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening %s: %w", args[0], err)
			}
			defer f.Close()

			report, err := a.repo.ImportEvents(f, repository.ImportOptions{MarkArchived: archived})
			if err != nil {
				return err
			}
			for _, s := range report.Skipped {
				printWarning("Skipped %v", s)
			}
			printSuccess("Imported %d events", len(report.IDs))
			return nil
		},
	}
	csvCmd.Flags().BoolVar(&archived, "archived", false, "file every imported event into the archive")

	cmd.AddCommand(csvCmd)
	return cmd
}
