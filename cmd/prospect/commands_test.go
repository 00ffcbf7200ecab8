package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/prospect/internal/config"
	"github.com/kalambet/prospect/internal/storage"
)

// newTestEnv isolates config lookups and returns a fresh data directory.
func newTestEnv(t *testing.T) string {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	for _, k := range config.ShowAll(config.Config{}) {
		t.Setenv(k.EnvVar, "")
	}
	t.Setenv("PROSPECT_CSV_TIMEZONE", "UTC")
	return t.TempDir()
}

func runCLIContext(ctx context.Context, t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()
	a := newApp()
	defer a.close()

	root := a.rootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"--data-dir", dataDir, "--no-color"}, args...))
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func runCLI(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()
	return runCLIContext(context.Background(), t, dataDir, args...)
}

func mustRun(t *testing.T, dataDir string, args ...string) string {
	t.Helper()
	out, err := runCLI(t, dataDir, args...)
	if err != nil {
		t.Fatalf("prospect %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func assertContains(t *testing.T, out, want string) {
	t.Helper()
	if !strings.Contains(out, want) {
		t.Errorf("output does not contain %q:\n%s", want, out)
	}
}

func assertNotContains(t *testing.T, out, unwanted string) {
	t.Helper()
	if strings.Contains(out, unwanted) {
		t.Errorf("output unexpectedly contains %q:\n%s", unwanted, out)
	}
}

func TestEventAddListShow(t *testing.T) {
	dir := newTestEnv(t)

	mustRun(t, dir, "event", "add", "--title", "Demo", "--start", "2024-03-10 09:00", "--end", "2024-03-10 10:00", "--location", "HQ")

	out := mustRun(t, dir, "event", "list")
	assertContains(t, out, "#1  2024-03-10 09:00 to 2024-03-10 10:00  Demo @ HQ")

	out = mustRun(t, dir, "event", "show", "1")
	assertContains(t, out, "#1 Demo")
	assertContains(t, out, "Start: 2024-03-10 09:00")
	assertContains(t, out, "Location: HQ")
}

func TestEventAddRequiresTitleAndStart(t *testing.T) {
	dir := newTestEnv(t)

	if _, err := runCLI(t, dir, "event", "add", "--start", "2024-03-10 09:00"); err == nil {
		t.Error("expected error without --title")
	}
	if _, err := runCLI(t, dir, "event", "add", "--title", "Demo", "--start", "tomorrowish"); err == nil {
		t.Error("expected error for unparsable start")
	}
}

func TestEventShowMissing(t *testing.T) {
	dir := newTestEnv(t)

	_, err := runCLI(t, dir, "event", "show", "42")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := runCLI(t, dir, "event", "show", "abc"); err == nil {
		t.Error("expected error for non-numeric id")
	}
}

func TestEventListOrdering(t *testing.T) {
	dir := newTestEnv(t)
	mustRun(t, dir, "event", "add", "--title", "Later", "--start", "2024-03-11 09:00")
	mustRun(t, dir, "event", "add", "--title", "Sooner", "--start", "2024-03-10 09:00")

	out := mustRun(t, dir, "event", "list")
	if strings.Index(out, "Sooner") > strings.Index(out, "Later") {
		t.Errorf("ascending list out of order:\n%s", out)
	}
	out = mustRun(t, dir, "event", "list", "--desc")
	if strings.Index(out, "Later") > strings.Index(out, "Sooner") {
		t.Errorf("descending list out of order:\n%s", out)
	}
}

func TestEventArchiveFlow(t *testing.T) {
	dir := newTestEnv(t)
	mustRun(t, dir, "event", "add", "--title", "Kickoff", "--start", "2024-03-10 09:00")
	mustRun(t, dir, "event", "add", "--title", "Review", "--start", "2024-03-12 09:00")

	mustRun(t, dir, "event", "archive", "1")

	out := mustRun(t, dir, "event", "list")
	assertNotContains(t, out, "Kickoff")
	assertContains(t, out, "Review")

	out = mustRun(t, dir, "event", "list", "--all")
	assertContains(t, out, "Kickoff [archived]")

	out = mustRun(t, dir, "event", "archived", "--query", "kick")
	assertContains(t, out, "Kickoff")
	assertNotContains(t, out, "Review")

	out = mustRun(t, dir, "event", "archived", "--from", "2024-03-11")
	assertContains(t, out, "No events.")

	mustRun(t, dir, "event", "unarchive", "1")
	out = mustRun(t, dir, "event", "archived")
	assertContains(t, out, "No events.")

	// Archiving a missing id is a no-op.
	mustRun(t, dir, "event", "archive", "99")
}

func TestEventEdit(t *testing.T) {
	dir := newTestEnv(t)
	mustRun(t, dir, "event", "add", "--title", "Draft", "--start", "2024-03-10 09:00", "--end", "2024-03-10 10:00")

	mustRun(t, dir, "event", "edit", "1", "--title", "Final", "--clear-end")

	out := mustRun(t, dir, "event", "show", "1")
	assertContains(t, out, "#1 Final")
	assertContains(t, out, "Start: 2024-03-10 09:00")
	assertNotContains(t, out, "End:")
}

func TestEventDeleteAndRestore(t *testing.T) {
	dir := newTestEnv(t)
	mustRun(t, dir, "event", "add", "--title", "Oops", "--start", "2024-03-10 09:00", "--description", "keep me")
	mustRun(t, dir, "event", "archive", "1")

	mustRun(t, dir, "event", "delete", "1")
	out := mustRun(t, dir, "event", "list", "--all")
	assertContains(t, out, "No events.")

	mustRun(t, dir, "event", "restore")
	out = mustRun(t, dir, "event", "show", "2")
	assertContains(t, out, "#2 Oops")
	assertContains(t, out, "Description: keep me")
	assertContains(t, out, "Archived: yes")

	if _, err := os.Stat(filepath.Join(dir, undoFile)); !os.IsNotExist(err) {
		t.Errorf("undo snapshot still present after restore: %v", err)
	}
	// Nothing left to restore.
	mustRun(t, dir, "event", "restore")
}

func TestEventToday(t *testing.T) {
	dir := newTestEnv(t)
	now := time.Now().UTC()
	mustRun(t, dir, "event", "add", "--title", "Now-ish", "--start", now.Format("2006-01-02 15:04"))
	mustRun(t, dir, "event", "add", "--title", "Long ago", "--start", "2001-01-01 09:00")

	out := mustRun(t, dir, "event", "today")
	assertContains(t, out, "Now-ish")
	assertNotContains(t, out, "Long ago")
}

func TestExportImportCSV(t *testing.T) {
	dir := newTestEnv(t)
	mustRun(t, dir, "event", "add", "--title", "Demo", "--start", "2024-03-10 09:00", "--location", "Room 1, 2nd floor")
	mustRun(t, dir, "event", "add", "--title", "Lunch", "--start", "2024-03-10 12:00")

	file := filepath.Join(t.TempDir(), "events.csv")
	mustRun(t, dir, "export", "csv", "--output", file)

	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	assertContains(t, text, "id,title,description,location,start,end\n")
	assertContains(t, text, `"Room 1, 2nd floor"`)

	other := t.TempDir()
	mustRun(t, other, "import", "csv", file, "--archived")

	out := mustRun(t, other, "event", "archived", "--oldest-first")
	assertContains(t, out, "#1  2024-03-10 09:00  Demo @ Room 1, 2nd floor")
	assertContains(t, out, "#2  2024-03-10 12:00  Lunch")
}

func TestImportSkipsBadRows(t *testing.T) {
	dir := newTestEnv(t)
	file := filepath.Join(t.TempDir(), "in.csv")
	content := "id,title,description,location,start,end\n" +
		"7,Good,,,2024-03-10 09:00,\n" +
		"8,Bad,,,not a date,\n"
	if err := os.WriteFile(file, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	mustRun(t, dir, "import", "csv", file)

	out := mustRun(t, dir, "event", "list")
	assertContains(t, out, "#1  2024-03-10 09:00  Good")
	assertNotContains(t, out, "Bad")
}

func TestImportMissingFile(t *testing.T) {
	dir := newTestEnv(t)
	if _, err := runCLI(t, dir, "import", "csv", filepath.Join(dir, "absent.csv")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestExportICS(t *testing.T) {
	dir := newTestEnv(t)
	mustRun(t, dir, "event", "add", "--title", "Demo", "--start", "2024-03-10 09:00")

	out := mustRun(t, dir, "export", "ics")
	assertContains(t, out, "BEGIN:VCALENDAR")
	assertContains(t, out, "SUMMARY:Demo")
	assertContains(t, out, "UID:event-1@prospect")
}

func TestContactsAndCompanies(t *testing.T) {
	dir := newTestEnv(t)

	mustRun(t, dir, "company", "add", "Initech", "--city", "Austin", "--state", "TX")
	mustRun(t, dir, "contact", "add", "--first", "Peter", "--last", "Gibbons", "--company-id", "1", "--email", "peter@initech.example")
	mustRun(t, dir, "contact", "add", "--first", "Ada", "--last", "Lovelace", "--company", "Engines")

	out := mustRun(t, dir, "company", "list")
	assertContains(t, out, "#2  Engines")
	assertContains(t, out, "#1  Initech  Austin, TX")

	out = mustRun(t, dir, "contact", "list")
	assertContains(t, out, "Peter Gibbons (Initech)  peter@initech.example")
	assertContains(t, out, "Ada Lovelace (Engines)")
	if strings.Index(out, "Gibbons") > strings.Index(out, "Lovelace") {
		t.Errorf("contacts not ordered by last name:\n%s", out)
	}

	mustRun(t, dir, "company", "delete", "1")
	out = mustRun(t, dir, "contact", "list")
	assertContains(t, out, "Peter Gibbons  peter@initech.example")

	if _, err := runCLI(t, dir, "contact", "add", "--email", "nobody@example.com"); err == nil {
		t.Error("expected error for contact without a name")
	}
}

func logFollowUp(t *testing.T, dir string) {
	t.Helper()
	mustRun(t, dir, "interaction", "log",
		"--first", "Ada", "--last", "Lovelace", "--company", "Engines",
		"--type", "call", "--notes", "asked for pricing",
		"--when", "2024-03-01 10:00",
		"--follow-up", "2024-03-02 09:00", "--follow-up-note", "send deck")
}

func TestInteractionQuickLogAndQueries(t *testing.T) {
	dir := newTestEnv(t)
	logFollowUp(t, dir)

	out := mustRun(t, dir, "interaction", "list")
	assertContains(t, out, "#1  2024-03-01 10:00  call  Ada Lovelace (Engines)  asked for pricing  follow up 2024-03-02 09:00")

	out = mustRun(t, dir, "interaction", "due")
	assertContains(t, out, "Ada Lovelace (Engines)")

	out = mustRun(t, dir, "interaction", "search", "PRICING")
	assertContains(t, out, "#1")
	out = mustRun(t, dir, "interaction", "search", "nothing like this")
	assertContains(t, out, "No interactions.")

	out = mustRun(t, dir, "interaction", "show", "1")
	assertContains(t, out, "Contact: Ada Lovelace")
	assertContains(t, out, "Company: Engines")
	assertContains(t, out, "Follow-up note: send deck")

	out = mustRun(t, dir, "interaction", "list", "--contact-id", "1")
	assertContains(t, out, "#1")

	out = mustRun(t, dir, "contact", "list")
	assertContains(t, out, "Ada Lovelace (Engines)")
}

func TestInteractionLogExistingContact(t *testing.T) {
	dir := newTestEnv(t)
	mustRun(t, dir, "contact", "add", "--first", "Grace", "--last", "Hopper", "--company", "Navy")

	mustRun(t, dir, "interaction", "log", "--contact-id", "1", "--type", "visit", "--when", "2024-03-05 14:00", "--where", "Pier 4", "--lat", "38.87", "--lng", "-77.01")

	out := mustRun(t, dir, "interaction", "show", "1")
	assertContains(t, out, "Company: Navy")
	assertContains(t, out, "Where: Pier 4")
	assertContains(t, out, "Coordinates: 38.870000, -77.010000")

	_, err := runCLI(t, dir, "interaction", "log", "--contact-id", "9")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := runCLI(t, dir, "interaction", "log", "--type", "call"); err == nil {
		t.Error("expected error without a contact")
	}
}

func TestInteractionFollowUp(t *testing.T) {
	dir := newTestEnv(t)
	logFollowUp(t, dir)

	mustRun(t, dir, "interaction", "follow-up", "1", "--clear")
	out := mustRun(t, dir, "interaction", "due")
	assertContains(t, out, "No interactions.")

	mustRun(t, dir, "interaction", "follow-up", "1", "--at", "2024-03-20 08:30", "--note", "call back")
	out = mustRun(t, dir, "interaction", "show", "1")
	assertContains(t, out, "Follow-up: 2024-03-20 08:30")
	assertContains(t, out, "Follow-up note: call back")

	_, err := runCLI(t, dir, "interaction", "follow-up", "5", "--clear")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := runCLI(t, dir, "interaction", "follow-up", "1"); err == nil {
		t.Error("expected error without --at or --clear")
	}
}

func TestInteractionExport(t *testing.T) {
	dir := newTestEnv(t)
	logFollowUp(t, dir)

	out := mustRun(t, dir, "interaction", "export")
	assertContains(t, out, "when,what,notes,where,why,next_follow_up\n")
	assertContains(t, out, `"call","asked for pricing"`)
}

func TestDeleteContactCascades(t *testing.T) {
	dir := newTestEnv(t)
	logFollowUp(t, dir)

	mustRun(t, dir, "contact", "delete", "1")

	out := mustRun(t, dir, "interaction", "list")
	assertContains(t, out, "No interactions.")
	out = mustRun(t, dir, "serve", "--once")
	assertNotContains(t, out, "Follow up with")
}

func TestServeOnceDeliversReminder(t *testing.T) {
	dir := newTestEnv(t)
	logFollowUp(t, dir)

	out := mustRun(t, dir, "serve", "--once")
	assertContains(t, out, "Follow up with Ada Lovelace (Engines) [call]: send deck")
	assertContains(t, out, "1 follow-up(s) due as of")

	// The reminder job is completed; only the digest mentions it now.
	out = mustRun(t, dir, "serve", "--once")
	assertNotContains(t, out, "Follow up with")
	assertContains(t, out, "2024-03-02 09:00  Ada Lovelace (Engines) [call]  send deck")
}

func TestServeOnceLogOnly(t *testing.T) {
	dir := newTestEnv(t)
	logFollowUp(t, dir)

	out := mustRun(t, dir, "serve", "--once", "--log")
	if out != "" {
		t.Errorf("expected reminders on the logger only, got stdout:\n%s", out)
	}
	out = mustRun(t, dir, "serve", "--once")
	assertNotContains(t, out, "Follow up with")
}

func TestServeOnceWithoutDigest(t *testing.T) {
	dir := newTestEnv(t)
	t.Setenv("PROSPECT_REMINDER_DIGEST_SCHEDULE", "")
	logFollowUp(t, dir)
	mustRun(t, dir, "interaction", "follow-up", "1", "--clear")

	out := mustRun(t, dir, "serve", "--once")
	if out != "" {
		t.Errorf("expected no output, got:\n%s", out)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	dir := newTestEnv(t)
	t.Setenv("PROSPECT_REMINDER_POLL_INTERVAL", "10ms")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := runCLIContext(ctx, t, dir, "serve"); err != nil {
		t.Fatalf("serve: %v", err)
	}
}

func TestWatchEventsPrintsSnapshot(t *testing.T) {
	dir := newTestEnv(t)
	mustRun(t, dir, "event", "add", "--title", "Watched", "--start", "2024-03-10 09:00")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	out, err := runCLIContext(ctx, t, dir, "watch", "events")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	assertContains(t, out, "== update 1 (1 rows) ==")
	assertContains(t, out, "Watched")
}

func TestWatchDue(t *testing.T) {
	dir := newTestEnv(t)
	logFollowUp(t, dir)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	out, err := runCLIContext(ctx, t, dir, "watch", "due")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	assertContains(t, out, "Ada Lovelace (Engines)")
}

func TestConfigShowSkipsStorage(t *testing.T) {
	newTestEnv(t)
	dir := filepath.Join(t.TempDir(), "never-created")

	out := mustRun(t, dir, "config", "show")
	assertContains(t, out, "reminder.max_attempts = 3")
	assertContains(t, out, "storage.data_dir = "+dir)

	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("config show created the data dir: %v", err)
	}
}

func TestConfigSet(t *testing.T) {
	if runtime.GOOS == "darwin" {
		t.Skip("writes to UserDefaults on macOS")
	}
	dir := newTestEnv(t)

	mustRun(t, dir, "config", "set", "reminder.max_attempts", "5")
	out := mustRun(t, dir, "config", "show")
	assertContains(t, out, "reminder.max_attempts = 5")

	if _, err := runCLI(t, dir, "config", "set", "server.port", "4000"); err == nil {
		t.Error("expected error for unknown key")
	}
	if _, err := runCLI(t, dir, "config", "set", "log.level", "loud"); err == nil {
		t.Error("expected error for invalid level")
	}
}

func TestColorizeNoColor(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	if got := colorize(styleBold, "hello"); got != "hello" {
		t.Errorf("colorize with noColor = %q, want plain text", got)
	}
}

func TestParseTime(t *testing.T) {
	a := newApp()
	a.loc = time.UTC

	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-03-10 09:30", time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)},
		{"2024-03-10T09:30", time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)},
		{"2024-03-10", time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)},
		{"2024-03-10T09:30:00+02:00", time.Date(2024, 3, 10, 7, 30, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := a.parseTime(tt.in)
		if err != nil {
			t.Errorf("parseTime(%q): %v", tt.in, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("parseTime(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if _, err := a.parseTime("10/03/2024"); err == nil {
		t.Error("expected error for unsupported layout")
	}
}
