// Package redisstore implements the abook persistent store on Redis.
//
// Key layout, under a configurable prefix:
//
//	<p>:user:seq            INCR counter for user ids
//	<p>:users               set of user ids
//	<p>:user:<id>           hash {username, active, admin}
//	<p>:user:name:<name>    user id
//	<p>:password:<id>       password record
//	<p>:ab:<id>             address book
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/yndnr/abook-go/internal/core/domain"
)

// DefaultPrefix is the key prefix used when none is configured.
const DefaultPrefix = "abook"

// Options configures the Redis connection.
type Options struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// Store is a Redis-backed store.
type Store struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
	owned  bool
}

// Open connects to Redis and checks connectivity.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (*Store, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("redisstore: addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redisstore: ping: %w", err)
	}

	s := New(client, opts.KeyPrefix, logger)
	s.owned = true
	s.logger.Info("redis store ready", "addr", opts.Addr, "db", opts.DB, "prefix", s.prefix)
	return s, nil
}

// New wraps an existing client. The caller keeps ownership of client.
func New(client *redis.Client, prefix string, logger *slog.Logger) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{client: client, prefix: prefix, logger: logger}
}

func (s *Store) key(parts ...string) string {
	k := s.prefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

func idString(id domain.UserID) string {
	return strconv.FormatInt(int64(id), 10)
}

// FindUserByName implements service.Store.
func (s *Store) FindUserByName(ctx context.Context, username string) (*domain.StoredUser, error) {
	raw, err := s.client.Get(ctx, s.key("user", "name", username)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: find user: %w", err)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redisstore: corrupt user id %q: %w", raw, err)
	}
	return s.getUser(ctx, domain.UserID(id))
}

func (s *Store) getUser(ctx context.Context, id domain.UserID) (*domain.StoredUser, error) {
	fields, err := s.client.HGetAll(ctx, s.key("user", idString(id))).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: get user: %w", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrUserNotFound
	}
	return &domain.StoredUser{
		ID:       id,
		Username: fields["username"],
		Active:   fields["active"] == "1",
		Admin:    fields["admin"] == "1",
	}, nil
}

// GetPassword implements service.Store.
func (s *Store) GetPassword(ctx context.Context, userID domain.UserID) (*domain.PasswordRecord, error) {
	pw, err := s.client.Get(ctx, s.key("password", idString(userID))).Result()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: get password: %w", err)
	}
	return &domain.PasswordRecord{UserID: userID, Password: pw}, nil
}

// GetAddressBook implements service.Store.
func (s *Store) GetAddressBook(ctx context.Context, userID domain.UserID) (domain.AddressBook, error) {
	ab, err := s.client.Get(ctx, s.key("ab", idString(userID))).Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.ErrAddressBookNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redisstore: get address book: %w", err)
	}
	return domain.AddressBook(ab), nil
}

// UpsertAddressBooks implements service.Store. The writes run in one
// MULTI/EXEC block.
func (s *Store) UpsertAddressBooks(ctx context.Context, records []domain.AddressBookRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	cmds, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, r := range records {
			pipe.Set(ctx, s.key("ab", idString(r.UserID)), string(r.Content), 0)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redisstore: upsert address books: %w", err)
	}

	var n int64
	for _, cmd := range cmds {
		if cmd.Err() == nil {
			n++
		}
	}
	return n, nil
}

// ListUsers implements service.UserLister.
func (s *Store) ListUsers(ctx context.Context) ([]domain.UserSummary, error) {
	members, err := s.client.SMembers(ctx, s.key("users")).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: list users: %w", err)
	}

	ids := make([]domain.UserID, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			s.logger.Warn("skipping corrupt user id", "member", m)
			continue
		}
		ids = append(ids, domain.UserID(id))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]domain.UserSummary, 0, len(ids))
	for _, id := range ids {
		u, err := s.getUser(ctx, id)
		if errors.Is(err, domain.ErrUserNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		hasPassword, err := s.client.Exists(ctx, s.key("password", idString(id))).Result()
		if err != nil {
			return nil, fmt.Errorf("redisstore: list users: %w", err)
		}
		ab, err := s.client.Get(ctx, s.key("ab", idString(id))).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("redisstore: list users: %w", err)
		}
		out = append(out, domain.UserSummary{
			ID:          id,
			Username:    u.Username,
			Active:      u.Active,
			Admin:       u.Admin,
			HasPassword: hasPassword > 0,
			AddressBook: ab,
		})
	}
	return out, nil
}

// PutUser implements service.UserWriter. An existing user with the same
// name is updated in place. An empty password leaves the stored one alone.
func (s *Store) PutUser(ctx context.Context, user *domain.StoredUser, password string) (domain.UserID, error) {
	nameKey := s.key("user", "name", user.Username)

	var id domain.UserID
	raw, err := s.client.Get(ctx, nameKey).Result()
	switch {
	case errors.Is(err, redis.Nil):
		next, err := s.client.Incr(ctx, s.key("user", "seq")).Result()
		if err != nil {
			return 0, fmt.Errorf("redisstore: allocate user id: %w", err)
		}
		id = domain.UserID(next)
		ok, err := s.client.SetNX(ctx, nameKey, idString(id), 0).Result()
		if err != nil {
			return 0, fmt.Errorf("redisstore: reserve username: %w", err)
		}
		if !ok {
			return 0, fmt.Errorf("redisstore: username %q created concurrently", user.Username)
		}
	case err != nil:
		return 0, fmt.Errorf("redisstore: find user: %w", err)
	default:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("redisstore: corrupt user id %q: %w", raw, err)
		}
		id = domain.UserID(v)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key("user", idString(id)),
			"username", user.Username,
			"active", boolString(user.Active),
			"admin", boolString(user.Admin),
		)
		pipe.SAdd(ctx, s.key("users"), idString(id))
		if password != "" {
			pipe.Set(ctx, s.key("password", idString(id)), password, 0)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redisstore: put user: %w", err)
	}
	return id, nil
}

func boolString(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// Ping implements service.Pinger.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client if the store opened it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}
