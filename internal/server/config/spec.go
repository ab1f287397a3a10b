package config

import "time"

// ServerConfig is the root configuration for abook-server.
type ServerConfig struct {
	Server    ServerSection    `koanf:"server"`
	Storage   StorageSection   `koanf:"storage"`
	Cache     CacheSection     `koanf:"cache"`
	Security  SecuritySection  `koanf:"security"`
	Bootstrap BootstrapSection `koanf:"bootstrap"`
	Log       LogSection       `koanf:"log"`
	Metrics   MetricsSection   `koanf:"metrics"`
}

// ServerSection configures server endpoints.
type ServerSection struct {
	HTTP            HTTPConfig    `koanf:"http"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr         string        `koanf:"addr"`
	TLSCertFile  string        `koanf:"tls_cert_file"`
	TLSKeyFile   string        `koanf:"tls_key_file"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	MaxBodyBytes int64         `koanf:"max_body_bytes"`
}

// TLSEnabled reports whether both certificate and key are configured.
func (c HTTPConfig) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

// StorageSection selects the persistent store.
type StorageSection struct {
	// Driver is one of sqlite, postgres, badger, redis, memory.
	Driver string `koanf:"driver"`
	// DSN is the driver-specific data source. For sqlite it is a file path,
	// for badger a directory, for postgres a connection string.
	DSN     string      `koanf:"dsn"`
	DataDir string      `koanf:"data_dir"`
	Redis   RedisConfig `koanf:"redis"`
}

// RedisConfig configures the redis driver.
type RedisConfig struct {
	Addr      string `koanf:"addr"`
	Password  string `koanf:"password"`
	DB        int    `koanf:"db"`
	KeyPrefix string `koanf:"key_prefix"`
}

// CacheSection configures the session and address-book cache.
type CacheSection struct {
	// MaintenanceInterval is the minimum time between two write-back sweeps.
	MaintenanceInterval time.Duration `koanf:"maintenance_interval"`
	// FlushOnShutdown runs a final sweep during graceful shutdown.
	FlushOnShutdown bool `koanf:"flush_on_shutdown"`
}

// SecuritySection configures authentication surfaces.
type SecuritySection struct {
	// LoginRateLimit is the sustained login attempts per second per client IP.
	// Zero disables limiting.
	LoginRateLimit float64 `koanf:"login_rate_limit"`
	LoginBurst     int     `koanf:"login_burst"`
	// AdminAllowList restricts /admin/v1 to these IPs or CIDRs. Empty allows all.
	AdminAllowList []string `koanf:"admin_allow_list"`
	CookieName     string   `koanf:"cookie_name"`
	CookieSecure   bool     `koanf:"cookie_secure"`
	// TrustProxyHeaders takes the client IP from X-Forwarded-For or
	// X-Real-IP. Enable only behind a reverse proxy that sets them.
	TrustProxyHeaders bool `koanf:"trust_proxy_headers"`
}

// BootstrapSection creates an administrator at startup when set.
type BootstrapSection struct {
	AdminUsername string `koanf:"admin_username"`
	AdminPassword string `koanf:"admin_password"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// MetricsSection configures the /metrics endpoint.
type MetricsSection struct {
	Enabled bool `koanf:"enabled"`
	// AuthRequired puts /metrics behind the admin guard.
	AuthRequired bool `koanf:"auth_required"`
}
