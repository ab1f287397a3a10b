package main

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"

	"github.com/yndnr/abook-go/internal/infra/confloader"
	"github.com/yndnr/abook-go/internal/server/config"
	"github.com/yndnr/abook-go/internal/telemetry/logger"
)

// loadConfig loads defaults, the optional file and the environment, then
// validates the result.
func loadConfig(configFile string) (*config.ServerConfig, error) {
	cfg := config.Default()

	var opts []confloader.Option
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}
	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, err
	}

	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// checkConfig validates the configuration and prints a masked summary.
func checkConfig(w io.Writer, configFile string) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return err
	}
	s := config.Sanitize(cfg)

	fmt.Fprintln(w, "configuration is valid")
	fmt.Fprintf(w, "  server.http.addr:            %s (tls: %v)\n", s.Server.HTTP.Addr, s.Server.HTTP.TLSEnabled())
	fmt.Fprintf(w, "  storage.driver:              %s\n", s.Storage.Driver)
	if s.Storage.DSN != "" {
		fmt.Fprintf(w, "  storage.dsn:                 %s\n", s.Storage.DSN)
	}
	fmt.Fprintf(w, "  cache.maintenance_interval:  %s\n", s.Cache.MaintenanceInterval)
	fmt.Fprintf(w, "  security.login_rate_limit:   %g/s (burst %d)\n", s.Security.LoginRateLimit, s.Security.LoginBurst)
	fmt.Fprintf(w, "  security.admin_allow_list:   %v\n", s.Security.AdminAllowList)
	fmt.Fprintf(w, "  log:                         %s/%s\n", s.Log.Level, s.Log.Format)
	fmt.Fprintf(w, "  metrics.enabled:             %v\n", s.Metrics.Enabled)
	return nil
}

// initLogger creates the process logger and installs it as the default.
func initLogger(cfg *config.ServerConfig) (logger.Logger, *slog.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return nil, nil, err
	}
	logger.SetDefault(log)
	return log, log.Slog(), nil
}

// allowList parses the admin allowlist. Entries were checked by Verify.
func allowList(entries []string) ([]*net.IPNet, error) {
	out := make([]*net.IPNet, 0, len(entries))
	for _, e := range entries {
		n, err := config.ParseAllowEntry(e)
		if err != nil {
			return nil, fmt.Errorf("admin allow list entry %q: %w", e, err)
		}
		out = append(out, n)
	}
	return out, nil
}
