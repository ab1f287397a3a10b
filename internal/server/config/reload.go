package config

import (
	"reflect"
	"time"
)

// Changes describes how a reloaded configuration differs from the
// running one.
type Changes struct {
	// LogLevel is set when log.level changed.
	LogLevel *string
	// MaintenanceInterval is set when cache.maintenance_interval changed.
	MaintenanceInterval *time.Duration
	// RestartRequired names the sections that changed in ways only a
	// restart applies.
	RestartRequired []string
}

// Empty reports whether nothing changed.
func (c Changes) Empty() bool {
	return c.LogLevel == nil && c.MaintenanceInterval == nil && len(c.RestartRequired) == 0
}

// Compare reports the differences between the running and the reloaded
// configuration. Only the log level and the maintenance interval are
// applied at runtime.
func Compare(running, reloaded *ServerConfig) Changes {
	var ch Changes

	if reloaded.Log.Level != running.Log.Level {
		level := reloaded.Log.Level
		ch.LogLevel = &level
	}
	if reloaded.Cache.MaintenanceInterval != running.Cache.MaintenanceInterval {
		d := reloaded.Cache.MaintenanceInterval
		ch.MaintenanceInterval = &d
	}

	rest := *reloaded
	rest.Log.Level = running.Log.Level
	rest.Cache.MaintenanceInterval = running.Cache.MaintenanceInterval

	sections := []struct {
		name     string
		old, new any
	}{
		{"server", running.Server, rest.Server},
		{"storage", running.Storage, rest.Storage},
		{"cache", running.Cache, rest.Cache},
		{"security", running.Security, rest.Security},
		{"bootstrap", running.Bootstrap, rest.Bootstrap},
		{"log", running.Log, rest.Log},
		{"metrics", running.Metrics, rest.Metrics},
	}
	for _, s := range sections {
		if !reflect.DeepEqual(s.old, s.new) {
			ch.RestartRequired = append(ch.RestartRequired, s.name)
		}
	}
	return ch
}
