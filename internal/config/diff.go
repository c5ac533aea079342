package config

import (
	"reflect"
	"slices"
)

// ConfigDiff describes what changed between two configs.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// RecognitionChanged is true when the classifier, matcher or formatter
	// must be rebuilt.
	RecognitionChanged bool

	// ContextChanged is true when the context cache or identifier list must
	// be rebuilt.
	ContextChanged bool

	// RestartRequired lists settings that changed but only take effect after
	// a restart, by YAML path.
	RestartRequired []string
}

// Changed reports whether anything in d needs to be applied.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.RecognitionChanged || d.ContextChanged || len(d.RestartRequired) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if !old.Recognition.equal(new.Recognition) {
		d.RecognitionChanged = true
	}
	if old.Context != new.Context {
		d.ContextChanged = true
	}

	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = append(d.RestartRequired, "server.listen_addr")
	}
	if old.Telemetry != new.Telemetry {
		d.RestartRequired = append(d.RestartRequired, "telemetry")
	}
	return d
}

func (r RecognitionConfig) equal(o RecognitionConfig) bool {
	if !slices.Equal(r.ExtraStopwords, o.ExtraStopwords) {
		return false
	}
	r.ExtraStopwords, o.ExtraStopwords = nil, nil
	return reflect.DeepEqual(r, o)
}
