// Package sqlstore implements the abook persistent store on database/sql.
//
// SQLite (modernc.org/sqlite) is the default backend; PostgreSQL is served
// by github.com/lib/pq. Both share the users, passwords and address_books
// tables.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/yndnr/abook-go/internal/core/domain"
)

// batchSize bounds the number of rows per upsert statement.
const batchSize = 256

// Store is a SQL-backed store.
type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

// Open connects to dsn, checks connectivity and creates the schema.
func Open(ctx context.Context, driver, dsn string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}
	if dsn == "" {
		return nil, fmt.Errorf("sqlstore: dsn is required")
	}

	db, err := sql.Open(dialect.Name, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open: %w", err)
	}
	if dialect.maxConns > 0 {
		db.SetMaxOpenConns(dialect.maxConns)
	}

	s, err := New(ctx, db, dialect, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("sql store ready", "driver", dialect.Name)
	return s, nil
}

// New wraps an open database. The schema is created if missing.
func New(ctx context.Context, db *sql.DB, dialect Dialect, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("sqlstore: ping: %w", err)
	}
	for _, stmt := range dialect.setup {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("sqlstore: setup: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, dialect.schema); err != nil {
		return nil, fmt.Errorf("sqlstore: create schema: %w", err)
	}
	return &Store{db: db, dialect: dialect, logger: logger}, nil
}

// FindUserByName implements service.Store.
func (s *Store) FindUserByName(ctx context.Context, username string) (*domain.StoredUser, error) {
	u := &domain.StoredUser{Username: username}
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(`
		SELECT user_id, active, admin
		FROM users
		WHERE username = ?
		ORDER BY user_id
		LIMIT 1
	`), username).Scan(&u.ID, &u.Active, &u.Admin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: find user: %w", err)
	}
	return u, nil
}

// GetPassword implements service.Store.
func (s *Store) GetPassword(ctx context.Context, userID domain.UserID) (*domain.PasswordRecord, error) {
	rec := &domain.PasswordRecord{UserID: userID}
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(`
		SELECT password FROM passwords WHERE user_id = ?
	`), userID).Scan(&rec.Password)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: get password: %w", err)
	}
	return rec, nil
}

// GetAddressBook implements service.Store.
func (s *Store) GetAddressBook(ctx context.Context, userID domain.UserID) (domain.AddressBook, error) {
	var ab string
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(`
		SELECT ab FROM address_books WHERE user_id = ?
	`), userID).Scan(&ab)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrAddressBookNotFound
	}
	if err != nil {
		return "", fmt.Errorf("sqlstore: get address book: %w", err)
	}
	return domain.AddressBook(ab), nil
}

// UpsertAddressBooks implements service.Store. All records are written in
// one transaction; on any error nothing is committed.
func (s *Store) UpsertAddressBooks(ctx context.Context, records []domain.AddressBookRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: begin: %w", err)
	}
	defer tx.Rollback()

	var total int64
	for start := 0; start < len(records); start += batchSize {
		end := start + batchSize
		if end > len(records) {
			end = len(records)
		}
		chunk := records[start:end]

		args := make([]any, 0, 2*len(chunk))
		for _, r := range chunk {
			args = append(args, int64(r.UserID), string(r.Content))
		}

		res, err := tx.ExecContext(ctx, s.dialect.upsertQuery(len(chunk)), args...)
		if err != nil {
			return 0, fmt.Errorf("sqlstore: upsert address books: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("sqlstore: rows affected: %w", err)
		}
		total += n
	}

	if total != int64(len(records)) {
		return total, nil
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlstore: commit: %w", err)
	}
	return total, nil
}

// ListUsers implements service.UserLister.
func (s *Store) ListUsers(ctx context.Context) ([]domain.UserSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			users.user_id,
			users.active,
			users.admin,
			users.username,
			passwords.password IS NOT NULL,
			address_books.ab
		FROM users
			LEFT JOIN passwords ON passwords.user_id = users.user_id
			LEFT JOIN address_books ON address_books.user_id = users.user_id
		ORDER BY users.user_id
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list users: %w", err)
	}
	defer rows.Close()

	var out []domain.UserSummary
	for rows.Next() {
		var (
			u  domain.UserSummary
			ab sql.NullString
		)
		if err := rows.Scan(&u.ID, &u.Active, &u.Admin, &u.Username, &u.HasPassword, &ab); err != nil {
			return nil, fmt.Errorf("sqlstore: scan user: %w", err)
		}
		u.AddressBook = ab.String
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: list users: %w", err)
	}
	return out, nil
}

// PutUser implements service.UserWriter. An existing user with the same
// name is updated in place. An empty password leaves the stored one alone.
func (s *Store) PutUser(ctx context.Context, user *domain.StoredUser, password string) (domain.UserID, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: begin: %w", err)
	}
	defer tx.Rollback()

	var id domain.UserID
	err = tx.QueryRowContext(ctx, s.dialect.rebind(`
		SELECT user_id FROM users WHERE username = ? ORDER BY user_id LIMIT 1
	`), user.Username).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		err = tx.QueryRowContext(ctx, s.dialect.rebind(`
			INSERT INTO users (active, admin, username) VALUES (?, ?, ?) RETURNING user_id
		`), user.Active, user.Admin, user.Username).Scan(&id)
		if err != nil {
			return 0, fmt.Errorf("sqlstore: insert user: %w", err)
		}
	case err != nil:
		return 0, fmt.Errorf("sqlstore: find user: %w", err)
	default:
		_, err = tx.ExecContext(ctx, s.dialect.rebind(`
			UPDATE users SET active = ?, admin = ? WHERE user_id = ?
		`), user.Active, user.Admin, id)
		if err != nil {
			return 0, fmt.Errorf("sqlstore: update user: %w", err)
		}
	}

	if password != "" {
		_, err = tx.ExecContext(ctx, s.dialect.rebind(`DELETE FROM passwords WHERE user_id = ?`), id)
		if err != nil {
			return 0, fmt.Errorf("sqlstore: replace password: %w", err)
		}
		_, err = tx.ExecContext(ctx, s.dialect.rebind(`
			INSERT INTO passwords (user_id, password) VALUES (?, ?)
		`), id, password)
		if err != nil {
			return 0, fmt.Errorf("sqlstore: replace password: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlstore: commit: %w", err)
	}
	return id, nil
}

// Ping implements service.Pinger.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
