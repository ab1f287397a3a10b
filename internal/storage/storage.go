package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/yndnr/abook-go/internal/core/service"
	"github.com/yndnr/abook-go/internal/storage/badgerstore"
	"github.com/yndnr/abook-go/internal/storage/memory"
	"github.com/yndnr/abook-go/internal/storage/redisstore"
	"github.com/yndnr/abook-go/internal/storage/sqlstore"
)

// Driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverBadger   = "badger"
	DriverRedis    = "redis"
	DriverMemory   = "memory"
)

// DefaultSQLiteFile is the database file used when no DSN is configured.
const DefaultSQLiteFile = ".api.db"

// Backend is implemented by every store.
type Backend interface {
	service.Store
	service.UserLister
	service.UserWriter
	service.Pinger
	io.Closer
}

// Config selects and configures a store.
type Config struct {
	Driver  string
	DSN     string
	DataDir string
	Redis   redisstore.Options
}

// Open opens the configured store. Connection failures are returned to the
// caller, which treats them as fatal at startup.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "storage")

	switch driver := strings.ToLower(cfg.Driver); driver {
	case "", DriverSQLite:
		dsn := cfg.DSN
		if dsn == "" {
			dsn = filepath.Join(cfg.DataDir, DefaultSQLiteFile)
		}
		if err := ensureDir(filepath.Dir(dsn)); err != nil {
			return nil, err
		}
		s, err := sqlstore.Open(ctx, DriverSQLite, dsn, logger)
		if err != nil {
			return nil, err
		}
		return s, nil

	case DriverPostgres:
		s, err := sqlstore.Open(ctx, DriverPostgres, cfg.DSN, logger)
		if err != nil {
			return nil, err
		}
		return s, nil

	case DriverBadger:
		dir := cfg.DSN
		if dir == "" {
			dir = filepath.Join(cfg.DataDir, "badger")
		}
		s, err := badgerstore.Open(badgerstore.DefaultConfig(dir), logger)
		if err != nil {
			return nil, err
		}
		return s, nil

	case DriverRedis:
		opts := cfg.Redis
		if opts.Addr == "" {
			opts.Addr = cfg.DSN
		}
		s, err := redisstore.Open(ctx, opts, logger)
		if err != nil {
			return nil, err
		}
		return s, nil

	case DriverMemory:
		logger.Warn("using the memory store, data is lost on exit")
		return memory.New(), nil

	default:
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
	}
}

func ensureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("storage: create data dir: %w", err)
	}
	return nil
}
