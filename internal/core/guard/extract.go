// Package guard resolves request credentials into authenticated identities.
//
// A Chain combines one Extractor, which pulls a token out of a request, with
// a SessionSource, which knows which tokens are live. Resolution and admin
// escalation are independent of how the token was carried.
package guard

import (
	"net/http"
	"strings"

	"github.com/yndnr/abook-go/internal/core/domain"
)

// DefaultCookieName is the cookie that carries the token on browser surfaces.
const DefaultCookieName = "Authorization"

// Extractor pulls a session token out of a request.
type Extractor interface {
	Extract(r *http.Request) (domain.Token, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(r *http.Request) (domain.Token, error)

// Extract implements Extractor.
func (f ExtractorFunc) Extract(r *http.Request) (domain.Token, error) {
	return f(r)
}

// BearerExtractor reads "Authorization: Bearer <token>".
type BearerExtractor struct{}

// Extract implements Extractor.
func (BearerExtractor) Extract(r *http.Request) (domain.Token, error) {
	values := r.Header.Values("Authorization")
	if len(values) != 1 {
		return domain.Token{}, domain.ErrUnauthenticated
	}

	scheme, rest, ok := strings.Cut(values[0], " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return domain.Token{}, domain.ErrUnauthenticated
	}

	tok, err := domain.ParseToken(strings.TrimSpace(rest))
	if err != nil {
		return domain.Token{}, domain.ErrUnauthenticated.WithCause(err)
	}
	return tok, nil
}

// CookieExtractor reads the token from a named cookie.
type CookieExtractor struct {
	// Name defaults to DefaultCookieName.
	Name string
}

// Extract implements Extractor.
func (e CookieExtractor) Extract(r *http.Request) (domain.Token, error) {
	name := e.Name
	if name == "" {
		name = DefaultCookieName
	}

	var found *http.Cookie
	for _, c := range r.Cookies() {
		if c.Name != name {
			continue
		}
		if found != nil {
			// Ambiguous.
			return domain.Token{}, domain.ErrUnauthenticated
		}
		found = c
	}
	if found == nil {
		return domain.Token{}, domain.ErrUnauthenticated
	}

	tok, err := domain.ParseToken(strings.TrimSpace(found.Value))
	if err != nil {
		return domain.Token{}, domain.ErrUnauthenticated.WithCause(err)
	}
	return tok, nil
}

// FirstOf tries each extractor in order and returns the first token found.
// If all fail, the first extractor's error is returned.
func FirstOf(extractors ...Extractor) Extractor {
	return ExtractorFunc(func(r *http.Request) (domain.Token, error) {
		var firstErr error
		for _, e := range extractors {
			tok, err := e.Extract(r)
			if err == nil {
				return tok, nil
			}
			if firstErr == nil {
				firstErr = err
			}
		}
		if firstErr == nil {
			firstErr = domain.ErrUnauthenticated
		}
		return domain.Token{}, firstErr
	})
}
