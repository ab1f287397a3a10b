// Package badgerstore implements the abook persistent store on an embedded
// Badger database.
package badgerstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/abook-go/internal/core/domain"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("badgerstore: closed")

var (
	prefixUserName = []byte("user/name/")
	prefixUserID   = []byte("user/id/")
	prefixPassword = []byte("pw/")
	prefixBook     = []byte("ab/")
	keyUserSeq     = []byte("seq/user")
)

// userRecord is the stored form of a user.
type userRecord struct {
	Username string `json:"username"`
	Active   bool   `json:"active"`
	Admin    bool   `json:"admin"`
}

// Store is a Badger-backed store.
type Store struct {
	db     *badger.DB
	seq    *badger.Sequence
	cfg    Config
	logger *slog.Logger

	closed     atomic.Bool
	lastGCTime atomic.Int64 // Unix milliseconds

	stopCh chan struct{}
	doneCh chan struct{}
}

// Open opens or creates the database.
func Open(cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.Dir == "" && !cfg.InMemory {
		return nil, fmt.Errorf("badgerstore: dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultConfig(cfg.Dir)
	if cfg.GCInterval <= 0 {
		cfg.GCInterval = defaults.GCInterval
	}
	if cfg.GCThreshold <= 0 || cfg.GCThreshold >= 1 {
		cfg.GCThreshold = defaults.GCThreshold
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaults.CacheSize
	}
	if cfg.MemTableSize <= 0 {
		cfg.MemTableSize = defaults.MemTableSize
	}
	if cfg.ValueLogFileSize <= 0 {
		cfg.ValueLogFileSize = defaults.ValueLogFileSize
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Dir).
			WithValueLogFileSize(cfg.ValueLogFileSize).
			WithSyncWrites(cfg.SyncWrites)
	}
	opts = opts.WithBlockCacheSize(cfg.CacheSize).
		WithMemTableSize(cfg.MemTableSize)
	opts.Logger = &badgerLogger{logger: logger}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open db: %w", err)
	}
	seq, err := db.GetSequence(keyUserSeq, 16)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("badgerstore: user sequence: %w", err)
	}

	s := &Store{
		db:     db,
		seq:    seq,
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	if cfg.InMemory {
		close(s.doneCh)
	} else {
		go s.gcLoop()
	}

	logger.Info("badger store ready",
		"dir", cfg.Dir,
		"in_memory", cfg.InMemory,
		"gc_interval", cfg.GCInterval)

	return s, nil
}

func idKey(prefix []byte, id domain.UserID) []byte {
	k := make([]byte, len(prefix)+8)
	copy(k, prefix)
	binary.BigEndian.PutUint64(k[len(prefix):], uint64(id))
	return k
}

func nameKey(username string) []byte {
	return append(append([]byte(nil), prefixUserName...), username...)
}

func (s *Store) get(txn *badger.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

// FindUserByName implements service.Store.
func (s *Store) FindUserByName(ctx context.Context, username string) (*domain.StoredUser, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	var user *domain.StoredUser
	err := s.db.View(func(txn *badger.Txn) error {
		raw, err := s.get(txn, nameKey(username))
		if err != nil {
			return err
		}
		if len(raw) != 8 {
			return fmt.Errorf("badgerstore: corrupt name index for %q", username)
		}
		id := domain.UserID(binary.BigEndian.Uint64(raw))
		user, err = s.readUser(txn, id)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badgerstore: find user: %w", err)
	}
	return user, nil
}

func (s *Store) readUser(txn *badger.Txn, id domain.UserID) (*domain.StoredUser, error) {
	raw, err := s.get(txn, idKey(prefixUserID, id))
	if err != nil {
		return nil, err
	}
	var rec userRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("badgerstore: decode user %d: %w", id, err)
	}
	return &domain.StoredUser{ID: id, Username: rec.Username, Active: rec.Active, Admin: rec.Admin}, nil
}

// GetPassword implements service.Store.
func (s *Store) GetPassword(ctx context.Context, userID domain.UserID) (*domain.PasswordRecord, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	var pw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		pw, err = s.get(txn, idKey(prefixPassword, userID))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badgerstore: get password: %w", err)
	}
	return &domain.PasswordRecord{UserID: userID, Password: string(pw)}, nil
}

// GetAddressBook implements service.Store.
func (s *Store) GetAddressBook(ctx context.Context, userID domain.UserID) (domain.AddressBook, error) {
	if s.closed.Load() {
		return "", ErrClosed
	}
	var ab []byte
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		ab, err = s.get(txn, idKey(prefixBook, userID))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", domain.ErrAddressBookNotFound
	}
	if err != nil {
		return "", fmt.Errorf("badgerstore: get address book: %w", err)
	}
	return domain.AddressBook(ab), nil
}

// UpsertAddressBooks implements service.Store. Records are committed in one
// transaction unless the batch exceeds Badger's transaction size, in which
// case they are committed in parts.
func (s *Store) UpsertAddressBooks(ctx context.Context, records []domain.AddressBookRecord) (int64, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	if len(records) == 0 {
		return 0, nil
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, r := range records {
			if err := txn.Set(idKey(prefixBook, r.UserID), []byte(r.Content)); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, badger.ErrTxnTooBig) {
		s.logger.Warn("address book batch exceeds one transaction, committing in parts",
			"records", len(records))
		err = s.upsertInParts(ctx, records)
	}
	if err != nil {
		return 0, fmt.Errorf("badgerstore: upsert address books: %w", err)
	}
	return int64(len(records)), nil
}

// upsertInParts commits records over as many transactions as needed. On
// failure the parts already committed stay written; the cache keeps every
// record dirty and writes them again on the next sweep.
func (s *Store) upsertInParts(ctx context.Context, records []domain.AddressBookRecord) error {
	txn := s.db.NewTransaction(true)
	defer func() { txn.Discard() }()

	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		key, value := idKey(prefixBook, r.UserID), []byte(r.Content)
		err := txn.Set(key, value)
		if errors.Is(err, badger.ErrTxnTooBig) {
			if err := txn.Commit(); err != nil {
				return err
			}
			txn = s.db.NewTransaction(true)
			err = txn.Set(key, value)
		}
		if err != nil {
			return err
		}
	}
	return txn.Commit()
}

// ListUsers implements service.UserLister.
func (s *Store) ListUsers(ctx context.Context) ([]domain.UserSummary, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	var out []domain.UserSummary
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefixUserID
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := item.Key()
			if len(key) != len(prefixUserID)+8 {
				continue
			}
			id := domain.UserID(binary.BigEndian.Uint64(key[len(prefixUserID):]))

			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			var rec userRecord
			if err := json.Unmarshal(raw, &rec); err != nil {
				s.logger.Warn("skipping corrupt user record", "user_id", id, "error", err)
				continue
			}

			summary := domain.UserSummary{
				ID:       id,
				Username: rec.Username,
				Active:   rec.Active,
				Admin:    rec.Admin,
			}
			if _, err := txn.Get(idKey(prefixPassword, id)); err == nil {
				summary.HasPassword = true
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			ab, err := s.get(txn, idKey(prefixBook, id))
			if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			summary.AddressBook = string(ab)

			out = append(out, summary)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badgerstore: list users: %w", err)
	}
	return out, nil
}

// PutUser implements service.UserWriter. An existing user with the same
// name is updated in place. An empty password leaves the stored one alone.
func (s *Store) PutUser(ctx context.Context, user *domain.StoredUser, password string) (domain.UserID, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}

	var id domain.UserID
	err := s.db.Update(func(txn *badger.Txn) error {
		raw, err := s.get(txn, nameKey(user.Username))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			next, err := s.seq.Next()
			if err != nil {
				return err
			}
			// Sequences start at zero; user ids start at one.
			id = domain.UserID(next + 1)
			buf := make([]byte, 8)
			binary.BigEndian.PutUint64(buf, uint64(id))
			if err := txn.Set(nameKey(user.Username), buf); err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			id = domain.UserID(binary.BigEndian.Uint64(raw))
		}

		rec, err := json.Marshal(userRecord{Username: user.Username, Active: user.Active, Admin: user.Admin})
		if err != nil {
			return err
		}
		if err := txn.Set(idKey(prefixUserID, id), rec); err != nil {
			return err
		}
		if password != "" {
			return txn.Set(idKey(prefixPassword, id), []byte(password))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("badgerstore: put user: %w", err)
	}
	return id, nil
}

// Ping implements service.Pinger.
func (s *Store) Ping(ctx context.Context) error {
	if s.closed.Load() || s.db.IsClosed() {
		return ErrClosed
	}
	return nil
}

// GC runs value log garbage collection until nothing is left to rewrite
// and reports the number of rewrites.
func (s *Store) GC() (int, error) {
	if s.cfg.InMemory {
		return 0, nil
	}
	start := time.Now()
	runs := 0
	for {
		err := s.db.RunValueLogGC(s.cfg.GCThreshold)
		if errors.Is(err, badger.ErrNoRewrite) {
			break
		}
		if err != nil {
			return runs, fmt.Errorf("badgerstore: gc: %w", err)
		}
		runs++
	}
	s.lastGCTime.Store(time.Now().UnixMilli())
	s.logger.Debug("value log gc completed", "rewrites", runs, "elapsed", time.Since(start))
	return runs, nil
}

func (s *Store) gcLoop() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.GC(); err != nil {
				s.logger.Error("auto gc failed", "error", err)
			}
		case <-s.stopCh:
			return
		}
	}
}

// RegisterMetrics registers size and GC gauges with registry.
func (s *Store) RegisterMetrics(registry prometheus.Registerer) error {
	size := func(pick func(lsm, vlog int64) int64) func() float64 {
		return func() float64 {
			if s.db.IsClosed() {
				return 0
			}
			lsm, vlog := s.db.Size()
			return float64(pick(lsm, vlog))
		}
	}

	collectors := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "abook",
			Subsystem: "badger",
			Name:      "lsm_size_bytes",
			Help:      "Badger LSM tree size in bytes",
		}, size(func(lsm, _ int64) int64 { return lsm })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "abook",
			Subsystem: "badger",
			Name:      "value_log_size_bytes",
			Help:      "Badger value log size in bytes",
		}, size(func(_, vlog int64) int64 { return vlog })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "abook",
			Subsystem: "badger",
			Name:      "last_gc_timestamp_seconds",
			Help:      "Unix timestamp of the last Badger value log GC",
		}, func() float64 { return float64(s.lastGCTime.Load()) / 1000.0 }),
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Close stops background GC and closes the database.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.logger.Info("shutting down badger store")

	if !s.cfg.InMemory {
		close(s.stopCh)
	}
	<-s.doneCh

	if err := s.seq.Release(); err != nil {
		s.logger.Warn("release user sequence", "error", err)
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("badgerstore: close db: %w", err)
	}
	return nil
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
