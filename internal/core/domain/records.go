// Package domain defines the core domain models for abook.
package domain

// UserID identifies a user in the persistent store.
type UserID int64

// SessionID identifies a live session. It is allocated from a process-local
// counter and is never persisted.
type SessionID uint64

// AddressBook is an opaque serialized address book.
// The cache never interprets it, it only compares values.
type AddressBook string

// EmptyAddressBook is returned to clients that have never stored a book.
const EmptyAddressBook AddressBook = "{}"

// AccessTokenInfo is the live record behind a session token.
type AccessTokenInfo struct {
	SessionID SessionID
	UserID    UserID
}

// SessionInfo is the live record behind a session id.
type SessionInfo struct {
	UserID UserID
}

// UserInfo is the live record of a user with at least one session.
//
// Username and Admin are captured at login and are not re-read from the
// store while the user has live sessions.
type UserInfo struct {
	SessionsCount int
	Username      string
	Admin         bool
}

// AddressBookInfo is a cached address book with write-back state.
type AddressBookInfo struct {
	// Modified is true while Content differs from the last durably written value.
	Modified bool
	// RemoveAfterFlush marks the entry for eviction once it is clean.
	RemoveAfterFlush bool
	Content          AddressBook
}

// AuthenticatedUser is the identity resolved from a live session token.
type AuthenticatedUser struct {
	SessionID   SessionID
	UserID      UserID
	AccessToken Token
}

// AuthenticatedAdmin is an AuthenticatedUser whose session carries admin privilege.
type AuthenticatedAdmin struct {
	SessionID   SessionID
	UserID      UserID
	AccessToken Token
	Username    string
}

// User returns the non-privileged identity of the admin.
func (a *AuthenticatedAdmin) User() AuthenticatedUser {
	return AuthenticatedUser{
		SessionID:   a.SessionID,
		UserID:      a.UserID,
		AccessToken: a.AccessToken,
	}
}

// StoredUser is a user row from the persistent store.
type StoredUser struct {
	ID       UserID
	Username string
	Active   bool
	Admin    bool
}

// PasswordRecord is the stored secret for a user. Password holds either a
// plaintext secret or an argon2id PHC string.
type PasswordRecord struct {
	UserID   UserID
	Password string
}

// AddressBookRecord is one row of a batch address book write.
type AddressBookRecord struct {
	UserID  UserID
	Content AddressBook
}

// UserSummary is a row of the admin user listing.
// Passwords are never part of it.
type UserSummary struct {
	ID          UserID `json:"id"`
	Username    string `json:"username"`
	Active      bool   `json:"active"`
	Admin       bool   `json:"admin"`
	HasPassword bool   `json:"has_password"`
	AddressBook string `json:"address_book"`
}
