package config

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/yndnr/abook-go/internal/telemetry/logger"
)

var validDrivers = []string{"sqlite", "postgres", "badger", "redis", "memory"}

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	if err := verifyCache(&cfg.Cache); err != nil {
		return err
	}
	if err := verifySecurity(&cfg.Security); err != nil {
		return err
	}
	if err := verifyBootstrap(&cfg.Bootstrap); err != nil {
		return err
	}
	return verifyLog(&cfg.Log)
}

func verifyServer(cfg *ServerSection) error {
	if cfg.HTTP.Addr == "" {
		return errors.New("server.http.addr is required")
	}
	if _, _, err := net.SplitHostPort(cfg.HTTP.Addr); err != nil {
		return fmt.Errorf("server.http.addr: %w", err)
	}

	if (cfg.HTTP.TLSCertFile == "") != (cfg.HTTP.TLSKeyFile == "") {
		return errors.New("server.http.tls_cert_file and tls_key_file must be set together")
	}
	for _, f := range []string{cfg.HTTP.TLSCertFile, cfg.HTTP.TLSKeyFile} {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); err != nil {
			return fmt.Errorf("server.http TLS file: %w", err)
		}
	}

	if cfg.HTTP.ReadTimeout < 0 || cfg.HTTP.WriteTimeout < 0 || cfg.ShutdownTimeout < 0 {
		return errors.New("server timeouts must not be negative")
	}
	if cfg.HTTP.MaxBodyBytes <= 0 {
		return errors.New("server.http.max_body_bytes must be positive")
	}
	return nil
}

func verifyStorage(cfg *StorageSection) error {
	driver := strings.ToLower(cfg.Driver)
	if !oneOf(driver, validDrivers) {
		return fmt.Errorf("storage.driver %q is not one of %s", cfg.Driver, strings.Join(validDrivers, ", "))
	}

	switch driver {
	case "postgres":
		if cfg.DSN == "" {
			return errors.New("storage.dsn is required for postgres")
		}
	case "redis":
		if cfg.Redis.Addr == "" && cfg.DSN == "" {
			return errors.New("storage.redis.addr is required for redis")
		}
		if cfg.Redis.DB < 0 {
			return errors.New("storage.redis.db must not be negative")
		}
	case "sqlite", "badger":
		if cfg.DSN == "" && cfg.DataDir == "" {
			return fmt.Errorf("storage.data_dir or storage.dsn is required for %s", driver)
		}
	}
	return nil
}

func verifyCache(cfg *CacheSection) error {
	if cfg.MaintenanceInterval <= 0 {
		return errors.New("cache.maintenance_interval must be positive")
	}
	return nil
}

func verifySecurity(cfg *SecuritySection) error {
	if cfg.LoginRateLimit < 0 {
		return errors.New("security.login_rate_limit must not be negative")
	}
	if cfg.LoginRateLimit > 0 && cfg.LoginBurst < 1 {
		return errors.New("security.login_burst must be at least 1 when rate limiting is enabled")
	}
	for _, entry := range cfg.AdminAllowList {
		if _, err := ParseAllowEntry(entry); err != nil {
			return fmt.Errorf("security.admin_allow_list: %w", err)
		}
	}
	if cfg.CookieName == "" {
		return errors.New("security.cookie_name is required")
	}
	if c := (&http.Cookie{Name: cfg.CookieName, Value: "x"}); c.Valid() != nil {
		return fmt.Errorf("security.cookie_name %q is not a valid cookie name", cfg.CookieName)
	}
	return nil
}

func verifyBootstrap(cfg *BootstrapSection) error {
	if cfg.AdminUsername != "" && cfg.AdminPassword == "" {
		return errors.New("bootstrap.admin_password is required with bootstrap.admin_username")
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	if _, err := logger.ParseLevel(cfg.Level); err != nil {
		return fmt.Errorf("log.level %q is not valid", cfg.Level)
	}
	if _, err := logger.ParseFormat(cfg.Format); err != nil {
		return fmt.Errorf("log.format %q is not valid", cfg.Format)
	}
	return nil
}

// ParseAllowEntry parses an allow-list entry, either a CIDR or a single IP.
func ParseAllowEntry(entry string) (*net.IPNet, error) {
	entry = strings.TrimSpace(entry)
	if strings.Contains(entry, "/") {
		_, n, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, err
		}
		return n, nil
	}
	ip := net.ParseIP(entry)
	if ip == nil {
		return nil, fmt.Errorf("invalid IP %q", entry)
	}
	bits := 128
	if v4 := ip.To4(); v4 != nil {
		ip, bits = v4, 32
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}, nil
}

func oneOf(s string, set []string) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}
