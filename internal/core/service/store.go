// Package service provides the session and address-book cache for abook.
package service

import (
	"context"

	"github.com/yndnr/abook-go/internal/core/domain"
)

// Store is the persistent storage the cache depends on.
type Store interface {
	// FindUserByName returns the user with the given name, or domain.ErrUserNotFound.
	FindUserByName(ctx context.Context, username string) (*domain.StoredUser, error)

	// GetPassword returns the password record of a user, or domain.ErrUserNotFound.
	GetPassword(ctx context.Context, userID domain.UserID) (*domain.PasswordRecord, error)

	// GetAddressBook returns the durable address book of a user,
	// or domain.ErrAddressBookNotFound.
	GetAddressBook(ctx context.Context, userID domain.UserID) (domain.AddressBook, error)

	// UpsertAddressBooks writes all records in one transaction and reports
	// the number of rows affected.
	UpsertAddressBooks(ctx context.Context, records []domain.AddressBookRecord) (int64, error)
}

// UserLister is implemented by stores that can list all users.
type UserLister interface {
	ListUsers(ctx context.Context) ([]domain.UserSummary, error)
}

// UserWriter is implemented by stores that can create or replace users.
type UserWriter interface {
	PutUser(ctx context.Context, user *domain.StoredUser, password string) (domain.UserID, error)
}

// Pinger is implemented by stores that support a readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}
