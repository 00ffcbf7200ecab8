package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/prospect/internal/config"
	"github.com/kalambet/prospect/internal/csvcodec"
	"github.com/kalambet/prospect/internal/reminder"
	"github.com/kalambet/prospect/internal/repository"
	"github.com/kalambet/prospect/internal/storage"
)

// skipStore marks commands that run without opening the database.
const skipStore = "skip-store"

// app holds what a single CLI invocation needs. Commands are built as
// closures over it so each invocation gets fresh flag state.
type app struct {
	dataDir string

	cfg    config.Config
	loc    *time.Location
	logger *slog.Logger
	store  *storage.Store
	repo   *repository.Repository
}

func newApp() *app {
	return &app{logger: slog.Default(), loc: time.Local}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "prospect",
		Short:         "Track events, contacts and prospecting follow-ups",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "data directory (overrides storage.data_dir)")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		a.eventCmd(),
		a.exportCmd(),
		a.importCmd(),
		a.companyCmd(),
		a.contactCmd(),
		a.interactionCmd(),
		a.watchCmd(),
		a.serveCmd(),
		a.configCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if a.dataDir != "" {
		cfg.Storage.DataDir = a.dataDir
	}
	a.cfg = cfg

	a.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(a.logger)

	if skipsStore(cmd) {
		return nil
	}

	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("loading time zone: %w", err)
	}
	a.loc = loc

	store, err := storage.Open(cfg.Storage.DataDir, storage.WithLogger(a.logger))
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	a.store = store
	a.repo = repository.New(store,
		repository.WithClock(zoneClock{loc: loc}),
		repository.WithScheduler(reminder.NewQueue(store, cfg.Reminder.MaxAttempts)),
		repository.WithCodec(csvcodec.New(loc)),
		repository.WithLogger(a.logger),
	)
	a.logger.Debug("storage opened", "data_dir", cfg.Storage.DataDir, "tz", loc.String())
	return nil
}

func (a *app) close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
	}
	a.store = nil
}

func skipsStore(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[skipStore] != "" {
			return true
		}
	}
	return false
}

// zoneClock reports wall-clock time in a fixed location so day windows
// follow the configured time zone.
type zoneClock struct {
	loc *time.Location
}

func (c zoneClock) Now() time.Time { return time.Now().In(c.loc) }

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

var inputLayouts = []string{csvcodec.DateLayout, "2006-01-02T15:04", "2006-01-02"}

// parseTime reads a user-supplied time in loc. "now" is accepted.
func (a *app) parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "now") {
		return time.Now().In(a.loc), nil
	}
	for _, layout := range inputLayouts {
		if t, err := time.ParseInLocation(layout, s, a.loc); err == nil {
			return t, nil
		}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q (want YYYY-MM-DD HH:MM)", s)
}

func (a *app) formatTime(t time.Time) string {
	return t.In(a.loc).Format(csvcodec.DateLayout)
}

// openOutput returns stdout when path is empty, otherwise a created file.
func openOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("creating output file: %w", err)
	}
	return f, f.Close, nil
}
