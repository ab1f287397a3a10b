package main

import (
	"log/slog"

	"github.com/yndnr/abook-go/internal/core/service"
	"github.com/yndnr/abook-go/internal/server/config"
	"github.com/yndnr/abook-go/internal/telemetry/logger"
)

// applyReload applies the runtime-adjustable settings of reloaded and
// records them in running. Other changes are only reported.
func applyReload(running, reloaded *config.ServerConfig, gate *service.MaintenanceGate, log *slog.Logger) config.Changes {
	changes := config.Compare(running, reloaded)
	if changes.Empty() {
		log.Debug("config reloaded, nothing changed")
		return changes
	}

	if changes.LogLevel != nil {
		if err := logger.SetLevel(*changes.LogLevel); err != nil {
			log.Warn("log level not changed", "level", *changes.LogLevel, "error", err)
		} else {
			running.Log.Level = *changes.LogLevel
			log.Info("log level changed", "level", *changes.LogLevel)
		}
	}
	if changes.MaintenanceInterval != nil {
		if gate != nil {
			gate.SetInterval(*changes.MaintenanceInterval)
		}
		running.Cache.MaintenanceInterval = *changes.MaintenanceInterval
		log.Info("maintenance interval changed", "interval", *changes.MaintenanceInterval)
	}
	if len(changes.RestartRequired) > 0 {
		log.Warn("config changes need a restart to take effect", "sections", changes.RestartRequired)
	}
	return changes
}
