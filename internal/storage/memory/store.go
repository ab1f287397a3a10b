package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/yndnr/abook-go/internal/core/domain"
)

// Store is an in-memory persistent store. Data is lost on exit.
type Store struct {
	mu        sync.RWMutex
	nextID    domain.UserID
	users     map[domain.UserID]domain.StoredUser
	byName    map[string]domain.UserID
	passwords map[domain.UserID]string
	books     map[domain.UserID]domain.AddressBook

	// maxBatch rejects larger batches; zero means unlimited.
	maxBatch int
}

// Option configures the Store.
type Option func(*Store)

// WithMaxBatch makes UpsertAddressBooks fail for batches larger than n.
func WithMaxBatch(n int) Option {
	return func(s *Store) {
		s.maxBatch = n
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		users:     make(map[domain.UserID]domain.StoredUser),
		byName:    make(map[string]domain.UserID),
		passwords: make(map[domain.UserID]string),
		books:     make(map[domain.UserID]domain.AddressBook),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FindUserByName implements service.Store.
func (s *Store) FindUserByName(_ context.Context, username string) (*domain.StoredUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byName[username]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	u := s.users[id]
	return &u, nil
}

// GetPassword implements service.Store.
func (s *Store) GetPassword(_ context.Context, userID domain.UserID) (*domain.PasswordRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pw, ok := s.passwords[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &domain.PasswordRecord{UserID: userID, Password: pw}, nil
}

// GetAddressBook implements service.Store.
func (s *Store) GetAddressBook(_ context.Context, userID domain.UserID) (domain.AddressBook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ab, ok := s.books[userID]
	if !ok {
		return "", domain.ErrAddressBookNotFound
	}
	return ab, nil
}

// UpsertAddressBooks implements service.Store.
func (s *Store) UpsertAddressBooks(_ context.Context, records []domain.AddressBookRecord) (int64, error) {
	if s.maxBatch > 0 && len(records) > s.maxBatch {
		return 0, domain.ErrPersistence.WithDetails("batch too large")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		s.books[r.UserID] = r.Content
	}
	return int64(len(records)), nil
}

// ListUsers implements service.UserLister.
func (s *Store) ListUsers(_ context.Context) ([]domain.UserSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.UserSummary, 0, len(s.users))
	for id, u := range s.users {
		_, hasPassword := s.passwords[id]
		out = append(out, domain.UserSummary{
			ID:          id,
			Username:    u.Username,
			Active:      u.Active,
			Admin:       u.Admin,
			HasPassword: hasPassword,
			AddressBook: string(s.books[id]),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// PutUser implements service.UserWriter.
func (s *Store) PutUser(_ context.Context, user *domain.StoredUser, password string) (domain.UserID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byName[user.Username]
	if !ok {
		s.nextID++
		id = s.nextID
		s.byName[user.Username] = id
	}
	s.users[id] = domain.StoredUser{
		ID:       id,
		Username: user.Username,
		Active:   user.Active,
		Admin:    user.Admin,
	}
	if password != "" {
		s.passwords[id] = password
	}
	return id, nil
}

// Ping implements service.Pinger.
func (s *Store) Ping(context.Context) error {
	return nil
}

// Close implements io.Closer.
func (s *Store) Close() error {
	return nil
}
