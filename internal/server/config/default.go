package config

import "time"

// Default configuration values.
const (
	DefaultHTTPAddr        = "0.0.0.0:21114"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultMaxBodyBytes    = 2 << 20
	DefaultShutdownTimeout = 30 * time.Second

	DefaultStorageDriver  = "sqlite"
	DefaultDataDir        = "."
	DefaultRedisKeyPrefix = "abook"

	DefaultMaintenanceInterval = 60 * time.Second

	DefaultLoginRateLimit = 1.0
	DefaultLoginBurst     = 5
	DefaultCookieName     = "Authorization"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			HTTP: HTTPConfig{
				Addr:         DefaultHTTPAddr,
				ReadTimeout:  DefaultReadTimeout,
				WriteTimeout: DefaultWriteTimeout,
				MaxBodyBytes: DefaultMaxBodyBytes,
			},
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Storage: StorageSection{
			Driver:  DefaultStorageDriver,
			DataDir: DefaultDataDir,
			Redis: RedisConfig{
				KeyPrefix: DefaultRedisKeyPrefix,
			},
		},
		Cache: CacheSection{
			MaintenanceInterval: DefaultMaintenanceInterval,
			FlushOnShutdown:     true,
		},
		Security: SecuritySection{
			LoginRateLimit: DefaultLoginRateLimit,
			LoginBurst:     DefaultLoginBurst,
			CookieName:     DefaultCookieName,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Metrics: MetricsSection{
			Enabled:      true,
			AuthRequired: false,
		},
	}
}
