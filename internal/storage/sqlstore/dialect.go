package sqlstore

import (
	"fmt"
	"strings"
)

// Dialect holds the SQL that differs between backends.
type Dialect struct {
	// Name is the database/sql driver name.
	Name string

	schema     string
	upsertHead string
	upsertTail string
	setup      []string
	maxConns   int
	param      func(n int) string
}

// SQLite is the default dialect, served by modernc.org/sqlite.
var SQLite = Dialect{
	Name: "sqlite",
	schema: `
CREATE TABLE IF NOT EXISTS "users" (
	"user_id"  INTEGER NOT NULL,
	"active"   BOOLEAN NOT NULL,
	"admin"    BOOLEAN NOT NULL,
	"username" TEXT NOT NULL,
	PRIMARY KEY("user_id")
);
CREATE INDEX IF NOT EXISTS "index_users_username" ON "users" ("username");

CREATE TABLE IF NOT EXISTS "passwords" (
	"user_id"  INTEGER NOT NULL,
	"password" TEXT NOT NULL,
	PRIMARY KEY("user_id"),
	FOREIGN KEY("user_id") REFERENCES "users"("user_id")
);

CREATE TABLE IF NOT EXISTS "address_books" (
	"user_id" INTEGER NOT NULL,
	"ab"      TEXT NOT NULL,
	PRIMARY KEY("user_id"),
	FOREIGN KEY("user_id") REFERENCES "users"("user_id")
);
`,
	upsertHead: `INSERT OR REPLACE INTO address_books (user_id, ab) VALUES `,
	setup:      []string{`PRAGMA journal_mode=WAL`, `PRAGMA busy_timeout=5000`},
	maxConns:   1,
	param:      func(int) string { return "?" },
}

// Postgres is served by github.com/lib/pq.
var Postgres = Dialect{
	Name: "postgres",
	schema: `
CREATE TABLE IF NOT EXISTS users (
	user_id  BIGSERIAL PRIMARY KEY,
	active   BOOLEAN NOT NULL,
	admin    BOOLEAN NOT NULL,
	username TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS index_users_username ON users (username);

CREATE TABLE IF NOT EXISTS passwords (
	user_id  BIGINT PRIMARY KEY REFERENCES users(user_id) ON DELETE CASCADE,
	password TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS address_books (
	user_id BIGINT PRIMARY KEY REFERENCES users(user_id) ON DELETE CASCADE,
	ab      TEXT NOT NULL
);
`,
	upsertHead: `INSERT INTO address_books (user_id, ab) VALUES `,
	upsertTail: ` ON CONFLICT (user_id) DO UPDATE SET ab = EXCLUDED.ab`,
	param:      func(n int) string { return fmt.Sprintf("$%d", n) },
}

// DialectFor returns the dialect for a storage driver name.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "", "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pq":
		return Postgres, nil
	default:
		return Dialect{}, fmt.Errorf("sqlstore: unknown driver %q", driver)
	}
}

// rebind rewrites "?" placeholders for the dialect.
func (d Dialect) rebind(query string) string {
	if d.Name != Postgres.Name {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(d.param(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// upsertQuery builds a multi-row upsert for rows records.
func (d Dialect) upsertQuery(rows int) string {
	var b strings.Builder
	b.WriteString(d.upsertHead)
	n := 0
	for i := 0; i < rows; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		n++
		b.WriteString(d.param(n))
		b.WriteString(", ")
		n++
		b.WriteString(d.param(n))
		b.WriteString(")")
	}
	b.WriteString(d.upsertTail)
	return b.String()
}
