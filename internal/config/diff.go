package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked: log verbosity,
// the interview persona settings, and relay credentials. Server and provider
// changes require a restart and are deliberately not represented here.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// InterviewChanged is true when the persona, voice, duration, or
	// snapshot cadence changed. Applies to sessions started afterwards;
	// running interviews keep the settings they began with.
	InterviewChanged bool

	// RelayChanged is true when the Telegram destination or credentials
	// changed.
	RelayChanged bool
}

// Empty reports whether the diff contains no hot-reloadable changes.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.InterviewChanged && !d.RelayChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Interview != new.Interview {
		d.InterviewChanged = true
	}

	if old.Relay.Telegram != new.Relay.Telegram {
		d.RelayChanged = true
	}

	return d
}
