package guard

import (
	"context"
	"net/http"

	"github.com/yndnr/abook-go/internal/core/domain"
)

// SessionSource answers whether a token is live. service.Cache implements it.
type SessionSource interface {
	FindSession(tok domain.Token) (domain.AccessTokenInfo, bool)
	LookupUser(userID domain.UserID) (domain.UserInfo, bool)
}

// Chain authenticates requests against a SessionSource.
type Chain struct {
	extractor Extractor
	sessions  SessionSource
}

// NewChain creates a Chain.
func NewChain(extractor Extractor, sessions SessionSource) *Chain {
	return &Chain{extractor: extractor, sessions: sessions}
}

// Authenticate resolves the request's token into a user identity.
func (c *Chain) Authenticate(r *http.Request) (*domain.AuthenticatedUser, error) {
	tok, err := c.extractor.Extract(r)
	if err != nil {
		return nil, err
	}
	return c.Resolve(tok)
}

// Resolve maps a token to the identity of its live session.
func (c *Chain) Resolve(tok domain.Token) (*domain.AuthenticatedUser, error) {
	info, ok := c.sessions.FindSession(tok)
	if !ok {
		return nil, domain.ErrUnauthenticated
	}
	return &domain.AuthenticatedUser{
		SessionID:   info.SessionID,
		UserID:      info.UserID,
		AccessToken: tok,
	}, nil
}

// Escalate upgrades user to an admin identity. The admin flag is the one
// captured when the user logged in.
func (c *Chain) Escalate(user *domain.AuthenticatedUser) (*domain.AuthenticatedAdmin, error) {
	info, ok := c.sessions.LookupUser(user.UserID)
	if !ok || !info.Admin {
		return nil, domain.ErrForbidden
	}
	return &domain.AuthenticatedAdmin{
		SessionID:   user.SessionID,
		UserID:      user.UserID,
		AccessToken: user.AccessToken,
		Username:    info.Username,
	}, nil
}

// AuthenticateAdmin runs Authenticate then Escalate.
func (c *Chain) AuthenticateAdmin(r *http.Request) (*domain.AuthenticatedAdmin, error) {
	user, err := c.Authenticate(r)
	if err != nil {
		return nil, err
	}
	return c.Escalate(user)
}

type contextKey int

const (
	userKey contextKey = iota
	adminKey
)

// WithUser stores user in ctx.
func WithUser(ctx context.Context, user *domain.AuthenticatedUser) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the user stored by WithUser.
func UserFromContext(ctx context.Context) (*domain.AuthenticatedUser, bool) {
	user, ok := ctx.Value(userKey).(*domain.AuthenticatedUser)
	return user, ok && user != nil
}

// WithAdmin stores admin in ctx. The non-privileged identity is stored too.
func WithAdmin(ctx context.Context, admin *domain.AuthenticatedAdmin) context.Context {
	user := admin.User()
	ctx = context.WithValue(ctx, userKey, &user)
	return context.WithValue(ctx, adminKey, admin)
}

// AdminFromContext returns the admin stored by WithAdmin.
func AdminFromContext(ctx context.Context) (*domain.AuthenticatedAdmin, bool) {
	admin, ok := ctx.Value(adminKey).(*domain.AuthenticatedAdmin)
	return admin, ok && admin != nil
}
