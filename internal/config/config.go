// Package config provides the configuration schema, loader, and hot-reload
// watcher for codevox.
package config

import (
	"log/slog"
	"time"
)

// LogLevel controls log verbosity for codevox.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// SlogLevel maps l to a [slog.Level]. Unknown levels map to info.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Default values filled in by [ApplyDefaults].
const (
	DefaultListenAddr        = ":8080"
	DefaultMinLength         = 2
	DefaultMatchThreshold    = 0.6
	DefaultPhoneticThreshold = 0.85
	DefaultWindowThreshold   = 1.0
	DefaultMaxWindowWords    = 6
	DefaultContextTTL        = 5 * time.Second
	DefaultMaxIdentifiers    = 50
	DefaultServiceName       = "codevox"
)

// Config is the root configuration structure for codevox.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Context     ContextConfig     `yaml:"context"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the HTTP API listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// RecognitionConfig tunes identifier discovery, matching and formatting.
// Zero values are replaced by their defaults.
type RecognitionConfig struct {
	// MinLength is the shortest token the classifier keeps.
	MinLength int `yaml:"min_length"`

	// ExtraStopwords are added to the built-in stopword set.
	ExtraStopwords []string `yaml:"extra_stopwords"`

	// MatchThreshold is the minimum confidence of a fuzzy match in [0, 1].
	MatchThreshold float64 `yaml:"match_threshold"`

	// PhoneticFallback enables the Double Metaphone fallback stage.
	PhoneticFallback bool `yaml:"phonetic_fallback"`

	// PhoneticThreshold is the minimum Jaro-Winkler confidence of a
	// phonetic match in [0, 1].
	PhoneticThreshold float64 `yaml:"phonetic_threshold"`

	// WindowThreshold is the match threshold used by the formatter's window
	// pass. 1 accepts only normalized equality.
	WindowThreshold float64 `yaml:"window_threshold"`

	// MaxWindowWords is the widest word window the formatter tries. A
	// negative value disables the window pass.
	MaxWindowWords int `yaml:"max_window_words"`
}

// ContextConfig configures where context identifiers come from.
type ContextConfig struct {
	// TTL is how long captured identifiers are reused.
	TTL time.Duration `yaml:"ttl"`

	// MaxIdentifiers caps the identifiers kept per capture.
	MaxIdentifiers int `yaml:"max_identifiers"`

	// IdentifiersFile is an optional YAML known-identifier list.
	IdentifiersFile string `yaml:"identifiers_file"`

	// SourceFile is an optional text file captured as the code context,
	// e.g. the buffer an editor plugin mirrors to disk.
	SourceFile string `yaml:"source_file"`
}

// TelemetryConfig holds OpenTelemetry resource settings.
type TelemetryConfig struct {
	// ServiceName is reported as the service.name resource attribute.
	ServiceName string `yaml:"service_name"`
}
