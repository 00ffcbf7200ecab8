package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

type Config struct {
	Storage  StorageConfig
	Log      LogConfig
	CSV      CSVConfig
	Reminder ReminderConfig
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

type CSVConfig struct {
	// Timezone is an IANA zone name for CSV dates. Empty means the system
	// local zone.
	Timezone string
}

type ReminderConfig struct {
	PollInterval time.Duration
	MaxAttempts  int
	// DigestSchedule is a five-field cron expression. Empty disables the
	// digest.
	DigestSchedule string
}

func defaults() Config {
	return Config{
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
		Reminder: ReminderConfig{
			PollInterval:   30 * time.Second,
			MaxAttempts:    3,
			DigestSchedule: "0 8 * * 1-5",
		},
	}
}

// Load reads configuration from the platform-native backend and environment
// variables.
//
// On macOS the backend is UserDefaults (domain: com.prospect.app).
// On Linux the backend is a YAML file at $XDG_CONFIG_HOME/prospect/config.yaml.
//
// Environment variables (PROSPECT_*) override backend values on all platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// validate runs every key's validator against the merged config.
func validate(cfg Config) error {
	for _, s := range specs {
		if s.validate == nil {
			continue
		}
		if err := s.validate(fmt.Sprintf("%v", s.extract(cfg))); err != nil {
			return fmt.Errorf("invalid config %s: %w", s.key, err)
		}
	}
	return nil
}

// Location resolves CSV.Timezone.
func (c Config) Location() (*time.Location, error) {
	if c.CSV.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.CSV.Timezone)
}

// SlogLevel maps Log.Level to a slog level. Unknown names mean info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
