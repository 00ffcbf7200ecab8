package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kDuration
)

type keySpec struct {
	key      string
	typ      keyType
	env      string
	validate func(raw string) error
	apply    func(cfg *Config, v any)
	extract  func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "storage.data_dir", typ: kString, env: "PROSPECT_STORAGE_DATA_DIR",
		validate: func(raw string) error {
			if strings.TrimSpace(raw) == "" {
				return errors.New("must not be empty")
			}
			return nil
		},
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "PROSPECT_LOG_LEVEL",
		validate: func(raw string) error {
			switch strings.ToLower(raw) {
			case "debug", "info", "warn", "warning", "error":
				return nil
			}
			return fmt.Errorf("unknown level %q (want debug, info, warn or error)", raw)
		},
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "csv.timezone", typ: kString, env: "PROSPECT_CSV_TIMEZONE",
		validate: func(raw string) error {
			if raw == "" {
				return nil
			}
			_, err := time.LoadLocation(raw)
			return err
		},
		apply:   func(cfg *Config, v any) { cfg.CSV.Timezone = v.(string) },
		extract: func(cfg Config) any { return cfg.CSV.Timezone },
	},
	{
		key: "reminder.poll_interval", typ: kDuration, env: "PROSPECT_REMINDER_POLL_INTERVAL",
		validate: func(raw string) error {
			d, err := time.ParseDuration(raw)
			if err != nil {
				return err
			}
			if d <= 0 {
				return errors.New("must be positive")
			}
			return nil
		},
		apply:   func(cfg *Config, v any) { cfg.Reminder.PollInterval = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Reminder.PollInterval },
	},
	{
		key: "reminder.max_attempts", typ: kInt, env: "PROSPECT_REMINDER_MAX_ATTEMPTS",
		validate: func(raw string) error {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return err
			}
			if n < 1 {
				return errors.New("must be at least 1")
			}
			return nil
		},
		apply:   func(cfg *Config, v any) { cfg.Reminder.MaxAttempts = v.(int) },
		extract: func(cfg Config) any { return cfg.Reminder.MaxAttempts },
	},
	{
		key: "reminder.digest_schedule", typ: kString, env: "PROSPECT_REMINDER_DIGEST_SCHEDULE",
		validate: func(raw string) error {
			if raw == "" {
				return nil
			}
			_, err := cron.ParseStandard(raw)
			return err
		},
		apply:   func(cfg *Config, v any) { cfg.Reminder.DigestSchedule = v.(string) },
		extract: func(cfg Config) any { return cfg.Reminder.DigestSchedule },
	},
}

func lookupSpec(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kDuration:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if d, err := time.ParseDuration(v); err == nil {
					s.apply(cfg, d)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse duration from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kDuration:
			if d, err := time.ParseDuration(raw); err == nil {
				s.apply(cfg, d)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse duration from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
