package service

import (
	"context"
	"errors"
	"sync"

	"github.com/yndnr/abook-go/internal/core/domain"
)

// mockStore is an in-memory Store that counts calls and can be told to fail.
type mockStore struct {
	mu        sync.Mutex
	users     map[string]*domain.StoredUser
	passwords map[domain.UserID]string
	books     map[domain.UserID]domain.AddressBook

	bookReads   int
	upsertCalls int
	upserted    []domain.AddressBookRecord

	failLookup error  // returned by FindUserByName
	failUpsert error  // returned by UpsertAddressBooks
	shortCount bool   // UpsertAddressBooks reports one row fewer
	onUpsert   func() // runs before the upsert returns
	onBookRead func() // runs before GetAddressBook reads the store
}

func newMockStore() *mockStore {
	return &mockStore{
		users:     make(map[string]*domain.StoredUser),
		passwords: make(map[domain.UserID]string),
		books:     make(map[domain.UserID]domain.AddressBook),
	}
}

func (m *mockStore) addUser(id domain.UserID, name, password string, active, admin bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[name] = &domain.StoredUser{ID: id, Username: name, Active: active, Admin: admin}
	if password != "" {
		m.passwords[id] = password
	}
}

func (m *mockStore) FindUserByName(ctx context.Context, username string) (*domain.StoredUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLookup != nil {
		return nil, m.failLookup
	}
	u, ok := m.users[username]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	copy := *u
	return &copy, nil
}

func (m *mockStore) GetPassword(ctx context.Context, userID domain.UserID) (*domain.PasswordRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pw, ok := m.passwords[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &domain.PasswordRecord{UserID: userID, Password: pw}, nil
}

func (m *mockStore) GetAddressBook(ctx context.Context, userID domain.UserID) (domain.AddressBook, error) {
	if m.onBookRead != nil {
		m.onBookRead()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookReads++
	book, ok := m.books[userID]
	if !ok {
		return "", domain.ErrAddressBookNotFound
	}
	return book, nil
}

func (m *mockStore) UpsertAddressBooks(ctx context.Context, records []domain.AddressBookRecord) (int64, error) {
	if m.onUpsert != nil {
		m.onUpsert()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertCalls++
	if m.failUpsert != nil {
		return 0, m.failUpsert
	}
	for _, r := range records {
		m.books[r.UserID] = r.Content
	}
	m.upserted = append(m.upserted, records...)
	n := int64(len(records))
	if m.shortCount {
		n--
	}
	return n, nil
}

func (m *mockStore) reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bookReads
}

func (m *mockStore) upserts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upsertCalls
}

var errStoreDown = errors.New("store down")

// bookState returns a copy of the cached entry for userID.
func bookState(c *Cache, userID domain.UserID) (domain.AddressBookInfo, bool) {
	c.booksMu.RLock()
	defer c.booksMu.RUnlock()
	b, ok := c.books[userID]
	if !ok {
		return domain.AddressBookInfo{}, false
	}
	return *b, true
}

func authenticated(res *LoginResult) *domain.AuthenticatedUser {
	return &domain.AuthenticatedUser{
		SessionID:   res.SessionID,
		UserID:      res.UserID,
		AccessToken: res.Token,
	}
}
