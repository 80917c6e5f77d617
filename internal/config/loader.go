package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"live": {"gemini-live", "openai-realtime"},
	"eval": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied. It is a convenience wrapper around
// [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, validates the result, and
// applies defaults. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil {
		if tls.CertFile == "" || tls.KeyFile == "" {
			errs = append(errs, fmt.Errorf("server.tls requires both cert_file and key_file"))
		}
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("live", cfg.Providers.Live.Name)
	validateProviderName("eval", cfg.Providers.Eval.Name)

	if cfg.Providers.Live.Name == "" {
		errs = append(errs, fmt.Errorf("providers.live.name is required; no interview can run without a realtime channel"))
	}
	if cfg.Providers.Eval.Name == "" {
		errs = append(errs, fmt.Errorf("providers.eval.name is required; finished interviews cannot be graded without it"))
	}

	// Interview
	if cfg.Interview.DurationSeconds < 0 {
		errs = append(errs, fmt.Errorf("interview.duration_seconds %d is negative", cfg.Interview.DurationSeconds))
	}
	if cfg.Interview.DurationSeconds > 3600 {
		slog.Warn("interview.duration_seconds exceeds an hour; realtime providers cap session length well below this",
			"duration_seconds", cfg.Interview.DurationSeconds,
		)
	}

	// Relay: partially configured Telegram credentials are a misconfiguration,
	// not a disabled relay.
	tg := cfg.Relay.Telegram
	if (tg.BotToken == "") != (tg.ChatID == "") {
		errs = append(errs, fmt.Errorf("relay.telegram requires both bot_token and chat_id (or neither)"))
	}
	if !tg.Enabled() {
		slog.Warn("relay.telegram is not configured; interview reports will not be delivered")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
