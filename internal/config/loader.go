package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied. It is a convenience wrapper around
// [LoadFromReader].
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

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. Unknown keys are rejected. An empty document yields
// the default configuration.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a [Config] holding only default values.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills every unset field of cfg with its default value.
// Thresholds of exactly zero count as unset.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}

	r := &cfg.Recognition
	if r.MinLength == 0 {
		r.MinLength = DefaultMinLength
	}
	if r.MatchThreshold == 0 {
		r.MatchThreshold = DefaultMatchThreshold
	}
	if r.PhoneticThreshold == 0 {
		r.PhoneticThreshold = DefaultPhoneticThreshold
	}
	if r.WindowThreshold == 0 {
		r.WindowThreshold = DefaultWindowThreshold
	}
	if r.MaxWindowWords == 0 {
		r.MaxWindowWords = DefaultMaxWindowWords
	}

	if cfg.Context.TTL == 0 {
		cfg.Context.TTL = DefaultContextTTL
	}
	if cfg.Context.MaxIdentifiers == 0 {
		cfg.Context.MaxIdentifiers = DefaultMaxIdentifiers
	}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = DefaultServiceName
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Recognition
	r := cfg.Recognition
	if r.MinLength < 0 {
		errs = append(errs, fmt.Errorf("recognition.min_length %d must not be negative", r.MinLength))
	}
	for _, th := range []struct {
		name  string
		value float64
	}{
		{"match_threshold", r.MatchThreshold},
		{"phonetic_threshold", r.PhoneticThreshold},
		{"window_threshold", r.WindowThreshold},
	} {
		if th.value < 0 || th.value > 1 {
			errs = append(errs, fmt.Errorf("recognition.%s %.2f is out of range [0, 1]", th.name, th.value))
		}
	}
	if r.PhoneticFallback && r.PhoneticThreshold < r.MatchThreshold {
		slog.Warn("recognition.phonetic_threshold is below match_threshold; phonetic matches may be looser than fuzzy ones",
			"phonetic_threshold", r.PhoneticThreshold,
			"match_threshold", r.MatchThreshold,
		)
	}
	if r.WindowThreshold < 1 {
		slog.Warn("recognition.window_threshold below 1 lets the formatter rewrite approximate phrases",
			"window_threshold", r.WindowThreshold,
		)
	}

	// Context
	if cfg.Context.TTL < 0 {
		errs = append(errs, fmt.Errorf("context.ttl %s must not be negative", cfg.Context.TTL))
	}
	if cfg.Context.MaxIdentifiers < 0 {
		errs = append(errs, fmt.Errorf("context.max_identifiers %d must not be negative", cfg.Context.MaxIdentifiers))
	}
	if cfg.Context.IdentifiersFile != "" && cfg.Context.IdentifiersFile == cfg.Context.SourceFile {
		errs = append(errs, fmt.Errorf("context.identifiers_file and context.source_file must differ (both %q)", cfg.Context.SourceFile))
	}

	return errors.Join(errs...)
}
