package config

import (
	"reflect"
	"slices"
)

// ConfigDiff describes what changed between two configs. Log level, lookup
// timings and scoring thresholds are applied live; everything listed in
// RestartRequired only takes effect after a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// LookupChanged is true when any popup timing or translation client
	// setting changed.
	LookupChanged bool

	// ScoringChanged is true when any scoring threshold changed.
	ScoringChanged bool

	// RestartRequired lists the sections that changed but cannot be
	// hot-reloaded, in config order.
	RestartRequired []string
}

// IsZero reports whether nothing changed.
func (d ConfigDiff) IsZero() bool {
	return !d.LogLevelChanged && !d.LookupChanged && !d.ScoringChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Lookup != new.Lookup {
		d.LookupChanged = true
	}

	if old.Scoring != new.Scoring {
		d.ScoringChanged = true
	}

	oldServer, newServer := old.Server, new.Server
	oldServer.LogLevel, newServer.LogLevel = "", ""
	if !reflect.DeepEqual(oldServer, newServer) {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if old.Auth != new.Auth {
		d.RestartRequired = append(d.RestartRequired, "auth")
	}
	if old.Database != new.Database {
		d.RestartRequired = append(d.RestartRequired, "database")
	}
	if !slices.Equal(old.Catalog.SeedFiles, new.Catalog.SeedFiles) {
		d.RestartRequired = append(d.RestartRequired, "catalog")
	}
	if !reflect.DeepEqual(old.Providers, new.Providers) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	if !reflect.DeepEqual(old.Voices, new.Voices) && (len(old.Voices) > 0 || len(new.Voices) > 0) {
		d.RestartRequired = append(d.RestartRequired, "voices")
	}
	return d
}

// NeedsRestart reports whether section is among the changes that require a
// restart.
func (d ConfigDiff) NeedsRestart(section string) bool {
	return slices.Contains(d.RestartRequired, section)
}
