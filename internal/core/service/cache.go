// Package service provides the session and address-book cache for abook.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/yndnr/abook-go/internal/core/domain"
	"github.com/yndnr/abook-go/internal/telemetry/metric"
)

// Cache owns all live session state and the write-back address book cache.
//
// Each collection has its own lock. Operations that hold several locks
// take them in the order tokens, sessions, users, books.
type Cache struct {
	store    Store
	verifier PasswordVerifier
	metrics  *metric.Registry
	logger   *slog.Logger

	lastSessionID atomic.Uint64

	tokensMu sync.RWMutex
	tokens   map[domain.Token]domain.AccessTokenInfo

	sessionsMu sync.RWMutex
	sessions   map[domain.SessionID]domain.SessionInfo

	usersMu sync.RWMutex
	users   map[domain.UserID]*domain.UserInfo

	booksMu sync.RWMutex
	books   map[domain.UserID]*domain.AddressBookInfo

	// flushMu serializes write-back sweeps.
	flushMu sync.Mutex
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithPasswordVerifier sets the password verifier. Default: RecordVerifier.
func WithPasswordVerifier(v PasswordVerifier) CacheOption {
	return func(c *Cache) {
		c.verifier = v
	}
}

// WithMetrics sets the metrics registry.
func WithMetrics(m *metric.Registry) CacheOption {
	return func(c *Cache) {
		c.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) CacheOption {
	return func(c *Cache) {
		c.logger = l
	}
}

// NewCache creates an empty cache backed by store.
func NewCache(store Store, opts ...CacheOption) *Cache {
	c := &Cache{
		store:    store,
		verifier: RecordVerifier{},
		logger:   slog.Default(),
		tokens:   make(map[domain.Token]domain.AccessTokenInfo),
		sessions: make(map[domain.SessionID]domain.SessionInfo),
		users:    make(map[domain.UserID]*domain.UserInfo),
		books:    make(map[domain.UserID]*domain.AddressBookInfo),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	DisplayName string
	Token       domain.Token
	SessionID   domain.SessionID
	UserID      domain.UserID
	Admin       bool
}

// Login checks credentials against the store and opens a new session.
//
// Unknown users, inactive users and wrong passwords all fail with
// domain.ErrAuthenticationFailed. Store failures other than "not found"
// are returned as domain.ErrPersistence. No cache state is touched until
// both checks have passed.
func (c *Cache) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	// 1. Look up the user
	user, err := c.store.FindUserByName(ctx, username)
	if err != nil {
		return nil, c.loginStoreError(err)
	}
	if !user.Active {
		c.metrics.RecordLogin("failure")
		return nil, domain.ErrAuthenticationFailed
	}

	// 2. Check the password
	record, err := c.store.GetPassword(ctx, user.ID)
	if err != nil {
		return nil, c.loginStoreError(err)
	}
	ok, err := c.verifier.Verify(password, record)
	if err != nil {
		c.logger.Warn("unreadable password record", "user_id", user.ID, "error", err)
	}
	if !ok {
		c.metrics.RecordLogin("failure")
		return nil, domain.ErrAuthenticationFailed
	}

	// 3. Open the session
	tok, err := domain.GenerateToken()
	if err != nil {
		c.metrics.RecordLogin("error")
		return nil, err
	}

	c.tokensMu.Lock()
	defer c.tokensMu.Unlock()
	c.sessionsMu.Lock()
	defer c.sessionsMu.Unlock()
	c.usersMu.Lock()
	defer c.usersMu.Unlock()

	sessionID := domain.SessionID(c.lastSessionID.Add(1))

	if info, exists := c.users[user.ID]; exists {
		info.SessionsCount++
	} else {
		c.users[user.ID] = &domain.UserInfo{
			SessionsCount: 1,
			Username:      user.Username,
			Admin:         user.Admin,
		}
		c.reclaimAddressBook(user.ID)
	}

	c.sessions[sessionID] = domain.SessionInfo{UserID: user.ID}
	c.tokens[tok] = domain.AccessTokenInfo{SessionID: sessionID, UserID: user.ID}

	c.metrics.RecordLogin("success")

	return &LoginResult{
		DisplayName: user.Username,
		Token:       tok,
		SessionID:   sessionID,
		UserID:      user.ID,
		Admin:       user.Admin,
	}, nil
}

// reclaimAddressBook clears a pending eviction left by a previous full logout.
// Caller holds tokens, sessions and users locks.
func (c *Cache) reclaimAddressBook(userID domain.UserID) {
	c.booksMu.Lock()
	defer c.booksMu.Unlock()
	if book, ok := c.books[userID]; ok {
		book.RemoveAfterFlush = false
	}
}

func (c *Cache) loginStoreError(err error) error {
	if errors.Is(err, domain.ErrUserNotFound) {
		c.metrics.RecordLogin("failure")
		return domain.ErrAuthenticationFailed
	}
	c.metrics.RecordLogin("error")
	return domain.ErrPersistence.WithDetails("login lookup").WithCause(err)
}

// FindSession returns the live record behind tok.
func (c *Cache) FindSession(tok domain.Token) (domain.AccessTokenInfo, bool) {
	c.tokensMu.RLock()
	defer c.tokensMu.RUnlock()
	info, ok := c.tokens[tok]
	return info, ok
}

// LookupUser returns a copy of the live record of a user.
func (c *Cache) LookupUser(userID domain.UserID) (domain.UserInfo, bool) {
	c.usersMu.RLock()
	defer c.usersMu.RUnlock()
	info, ok := c.users[userID]
	if !ok {
		return domain.UserInfo{}, false
	}
	return *info, true
}

// CurrentUserName returns the username captured when the session's user logged in.
func (c *Cache) CurrentUserName(user *domain.AuthenticatedUser) (string, error) {
	info, ok := c.LookupUser(user.UserID)
	if !ok {
		return "", domain.ErrNotLoggedIn
	}
	return info.Username, nil
}

// Logout closes the session of user.
//
// It fails with domain.ErrNotLoggedIn when the user has no live sessions or
// the token has already been closed, so a repeated logout never decrements
// the session count twice.
func (c *Cache) Logout(user *domain.AuthenticatedUser) error {
	c.tokensMu.Lock()
	defer c.tokensMu.Unlock()
	c.sessionsMu.Lock()
	defer c.sessionsMu.Unlock()
	c.usersMu.Lock()
	defer c.usersMu.Unlock()

	info, ok := c.users[user.UserID]
	if !ok {
		return domain.ErrNotLoggedIn
	}
	live, ok := c.tokens[user.AccessToken]
	if !ok || live.SessionID != user.SessionID || live.UserID != user.UserID {
		return domain.ErrNotLoggedIn
	}

	info.SessionsCount--
	if info.SessionsCount <= 0 {
		delete(c.users, user.UserID)
		c.markForEviction(user.UserID)
	}

	delete(c.sessions, user.SessionID)
	delete(c.tokens, user.AccessToken)

	c.metrics.RecordLogout()
	return nil
}

// markForEviction flags the user's cached book, if any.
// Caller holds tokens, sessions and users locks.
func (c *Cache) markForEviction(userID domain.UserID) {
	c.booksMu.Lock()
	defer c.booksMu.Unlock()
	if book, ok := c.books[userID]; ok {
		book.RemoveAfterFlush = true
	}
}

// CacheStats is a point-in-time view of cache occupancy.
type CacheStats struct {
	Tokens       int `json:"tokens"`
	Sessions     int `json:"sessions"`
	Users        int `json:"users"`
	AddressBooks int `json:"address_books"`
	Dirty        int `json:"dirty"`
	PendingEvict int `json:"pending_evict"`
}

// Stats samples cache occupancy. Locks are taken one at a time, so the
// counts are not a single consistent snapshot.
func (c *Cache) Stats() CacheStats {
	var s CacheStats

	c.tokensMu.RLock()
	s.Tokens = len(c.tokens)
	c.tokensMu.RUnlock()

	c.sessionsMu.RLock()
	s.Sessions = len(c.sessions)
	c.sessionsMu.RUnlock()

	c.usersMu.RLock()
	s.Users = len(c.users)
	c.usersMu.RUnlock()

	c.booksMu.RLock()
	s.AddressBooks = len(c.books)
	for _, b := range c.books {
		if b.Modified {
			s.Dirty++
		}
		if b.RemoveAfterFlush {
			s.PendingEvict++
		}
	}
	c.booksMu.RUnlock()

	return s
}

// MetricStats adapts Stats for metric.NewCollector.
func (c *Cache) MetricStats() metric.CacheStats {
	s := c.Stats()
	return metric.CacheStats{
		Tokens:       s.Tokens,
		Sessions:     s.Sessions,
		Users:        s.Users,
		AddressBooks: s.AddressBooks,
		Dirty:        s.Dirty,
	}
}

// sessionCount returns the number of live tokens of a user.
// Used by tests to check the session count invariant.
func (c *Cache) sessionCount(userID domain.UserID) int {
	c.tokensMu.RLock()
	defer c.tokensMu.RUnlock()
	n := 0
	for _, info := range c.tokens {
		if info.UserID == userID {
			n++
		}
	}
	return n
}
