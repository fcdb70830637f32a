package config

import (
	"fmt"
	"strconv"
	"strings"
)

// envBinding maps one environment variable onto a config field.
type envBinding struct {
	name  string
	apply func(cfg *Config, value string) error
}

var envBindings = []envBinding{
	{"LEDGER_CAPACITY", func(cfg *Config, v string) error {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		cfg.Ledger.Capacity = n
		return nil
	}},
	{"LEDGER_VERIFY_ON_RESTORE", func(cfg *Config, v string) error {
		b, err := parseBool(v)
		if err != nil {
			return err
		}
		cfg.Ledger.VerifyOnRestore = b
		return nil
	}},
	{"LOG_LEVEL", func(cfg *Config, v string) error {
		cfg.Logging.Level = strings.ToLower(strings.TrimSpace(v))
		return nil
	}},
	{"LOG_FORMAT", func(cfg *Config, v string) error {
		cfg.Logging.Format = strings.ToLower(strings.TrimSpace(v))
		return nil
	}},
	{"METRICS_ENABLED", func(cfg *Config, v string) error {
		b, err := parseBool(v)
		if err != nil {
			return err
		}
		cfg.Metrics.Enabled = b
		return nil
	}},
	{"METRICS_NAMESPACE", func(cfg *Config, v string) error {
		cfg.Metrics.Namespace = strings.TrimSpace(v)
		return nil
	}},
}

// applyEnv overlays UNDOLEDGER_* variables onto cfg.
// Empty values are treated as set.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if lookup == nil {
		return nil
	}
	for _, b := range envBindings {
		name := EnvPrefix + b.name
		value, ok := lookup(name)
		if !ok {
			continue
		}
		if err := b.apply(cfg, value); err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalid, name, value, err)
		}
	}
	return nil
}

// EnvNames returns the environment variables Load understands.
func EnvNames() []string {
	names := make([]string, len(envBindings))
	for i, b := range envBindings {
		names[i] = EnvPrefix + b.name
	}
	return names
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "on", "1":
		return true, nil
	case "false", "no", "off", "0":
		return false, nil
	default:
		return false, fmt.Errorf("not a boolean")
	}
}
