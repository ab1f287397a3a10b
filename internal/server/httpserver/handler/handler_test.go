package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/yndnr/abook-go/internal/core/domain"
	"github.com/yndnr/abook-go/internal/core/guard"
	"github.com/yndnr/abook-go/internal/core/service"
	"github.com/yndnr/abook-go/internal/storage/memory"
	"github.com/yndnr/abook-go/internal/telemetry/logger"
)

// flakyStore wraps the memory store and fails selected calls.
type flakyStore struct {
	*memory.Store
	failBooks error
	failPing  error
	failList  error
}

func (s *flakyStore) GetAddressBook(ctx context.Context, userID domain.UserID) (domain.AddressBook, error) {
	if s.failBooks != nil {
		return "", s.failBooks
	}
	return s.Store.GetAddressBook(ctx, userID)
}

func (s *flakyStore) Ping(ctx context.Context) error {
	if s.failPing != nil {
		return s.failPing
	}
	return s.Store.Ping(ctx)
}

func (s *flakyStore) ListUsers(ctx context.Context) ([]domain.UserSummary, error) {
	if s.failList != nil {
		return nil, s.failList
	}
	return s.Store.ListUsers(ctx)
}

func testHandler(t *testing.T) (*Handler, *flakyStore, *service.Cache) {
	t.Helper()
	store := &flakyStore{Store: memory.New()}
	if _, err := store.PutUser(context.Background(), &domain.StoredUser{Username: "alice", Active: true}, "secret"); err != nil {
		t.Fatalf("PutUser() error = %v", err)
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cache := service.NewCache(store, service.WithLogger(log))
	h := New(Config{Cache: cache, Users: store, Store: store, Logger: log})
	return h, store, cache
}

// loggedIn returns a request carrying the identity of a fresh alice session.
func loggedIn(t *testing.T, cache *service.Cache, method, path, body string) *http.Request {
	t.Helper()
	res, err := cache.Login(context.Background(), "alice", "secret")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	user := &domain.AuthenticatedUser{SessionID: res.SessionID, UserID: res.UserID, AccessToken: res.Token}
	return req.WithContext(guard.WithUser(req.Context(), user))
}

func TestHandler_LoginReplyShape(t *testing.T) {
	h, _, _ := testHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"username":"alice","password":"secret"}`))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(raw["user"]) != `{"name":"alice"}` {
		t.Errorf("user = %s", raw["user"])
	}
	var tok string
	_ = json.Unmarshal(raw["access_token"], &tok)
	if _, err := domain.ParseToken(tok); err != nil {
		t.Errorf("access_token %q is not a token: %v", tok, err)
	}
}

func TestHandler_LoginLogsFingerprint(t *testing.T) {
	prev := logger.GetLevel()
	t.Cleanup(func() { _ = logger.SetLevel(prev) })

	var buf bytes.Buffer
	l, err := logger.New(logger.Config{Level: "debug", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("logger.New() error = %v", err)
	}
	store := memory.New()
	if _, err := store.PutUser(context.Background(), &domain.StoredUser{Username: "alice", Active: true}, "secret"); err != nil {
		t.Fatalf("PutUser() error = %v", err)
	}
	h := New(Config{Cache: service.NewCache(store), Logger: l.Slog()})

	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"username":"alice","password":"secret"}`))
	req = req.WithContext(logger.WithRequestID(req.Context(), "req-login"))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	var reply LoginReply
	if err := json.Unmarshal(rec.Body.Bytes(), &reply); err != nil {
		t.Fatalf("decode: %v", err)
	}
	tok, err := domain.ParseToken(reply.AccessToken)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}

	out := buf.String()
	if strings.Contains(out, reply.AccessToken) {
		t.Fatalf("log output carries the access token: %s", out)
	}
	for _, want := range []string{`"token":"fp:` + tok.Fingerprint() + `"`, `"request_id":"req-login"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %s missing %s", out, want)
		}
	}
}

func TestHandler_LoginForbiddenOnBadCredentials(t *testing.T) {
	h, _, _ := testHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"username":"alice","password":"wrong"}`))
	rec := httptest.NewRecorder()
	h.Login(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
	if got := rec.Header().Get("X-Error-Code"); got != domain.ErrAuthenticationFailed.Code {
		t.Errorf("X-Error-Code = %q", got)
	}
}

func TestHandler_GetAddressBook_StoreFailure(t *testing.T) {
	h, store, cache := testHandler(t)
	store.failBooks = errors.New("disk on fire")

	rec := httptest.NewRecorder()
	h.GetAddressBook(rec, loggedIn(t, cache, http.MethodPost, "/api/ab/get", ""))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "disk on fire") {
		t.Error("store error details must not reach the client")
	}
}

func TestHandler_SetAddressBook_InvalidBody(t *testing.T) {
	h, _, cache := testHandler(t)

	rec := httptest.NewRecorder()
	h.SetAddressBook(rec, loggedIn(t, cache, http.MethodPost, "/api/ab", `{"data":`))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if cache.Stats().AddressBooks != 0 {
		t.Error("a rejected write must not reach the cache")
	}
}

func TestHandler_WithoutIdentity(t *testing.T) {
	h, _, _ := testHandler(t)

	handlers := map[string]http.HandlerFunc{
		"ab/get":      h.GetAddressBook,
		"ab":          h.SetAddressBook,
		"currentUser": h.CurrentUser,
		"logout":      h.Logout,
		"adminLogout": h.AdminLogout,
	}
	for name, fn := range handlers {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			fn(rec, httptest.NewRequest(http.MethodPost, "/", nil))
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestHandler_LogoutTwice(t *testing.T) {
	h, _, cache := testHandler(t)
	req := loggedIn(t, cache, http.MethodPost, "/api/logout", "{}")

	rec := httptest.NewRecorder()
	h.Logout(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first logout status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Logout(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("second logout status = %d, want 401", rec.Code)
	}
	if got := rec.Header().Get("X-Error-Code"); got != domain.ErrNotLoggedIn.Code {
		t.Errorf("X-Error-Code = %q", got)
	}
}

func TestHandler_Audit(t *testing.T) {
	h, _, _ := testHandler(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"full event", `{"Id":3,"action":"new","id":"123","ip":"1.2.3.4","uuid":"u"}`, http.StatusOK},
		{"empty object", `{}`, http.StatusOK},
		{"empty body", ``, http.StatusOK},
		{"garbage", `not json`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Audit(rec, httptest.NewRequest(http.MethodPost, "/api/audit", strings.NewReader(tt.body)))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestHandler_ListUsers_StoreFailure(t *testing.T) {
	h, store, _ := testHandler(t)
	store.failList = errors.New("connection reset")

	rec := httptest.NewRecorder()
	h.ListUsers(rec, httptest.NewRequest(http.MethodGet, "/admin/v1/users", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if got := rec.Header().Get("X-Error-Code"); got != domain.ErrPersistence.Code {
		t.Errorf("X-Error-Code = %q", got)
	}
}

func TestHandler_Health(t *testing.T) {
	h, _, _ := testHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req = req.WithContext(logger.WithRequestID(req.Context(), "req-1"))
	rec := httptest.NewRecorder()
	h.Health(rec, req)

	var resp struct {
		Response
		Data HealthResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Code != "OK" || resp.RequestID != "req-1" || resp.Timestamp == 0 {
		t.Errorf("envelope = %+v", resp.Response)
	}
	if resp.Data.Status != "healthy" || resp.Data.Version == "" {
		t.Errorf("data = %+v", resp.Data)
	}
}

func TestHandler_Ready(t *testing.T) {
	h, store, _ := testHandler(t)

	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	store.failPing = errors.New("no route to host")
	rec = httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if got := rec.Header().Get("X-Error-Code"); got != domain.ErrStoreUnavailable.Code {
		t.Errorf("X-Error-Code = %q", got)
	}
}

func TestHandler_AdminLoginRequired(t *testing.T) {
	h, _, _ := testHandler(t)

	rec := httptest.NewRecorder()
	h.AdminLoginRequired(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	var resp struct {
		Code string               `json:"code"`
		Data AdminLoginDescriptor `json:"data"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Code != domain.ErrUnauthenticated.Code || resp.Data.LoginURL != AdminLoginPath {
		t.Errorf("response = %+v", resp)
	}
}

func TestHandler_SessionCookie(t *testing.T) {
	h := New(Config{CookieName: "ab_session", CookieSecure: true})

	c := h.sessionCookie("value", 0)
	if c.Name != "ab_session" || !c.Secure || !c.HttpOnly || c.SameSite != http.SameSiteStrictMode || c.Path != "/" {
		t.Errorf("cookie = %+v", c)
	}
	if c := New(Config{}).sessionCookie("", -1); c.Name != guard.DefaultCookieName || c.MaxAge != -1 {
		t.Errorf("default cookie = %+v", c)
	}
}

func TestWriteError_NonDomainError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("secret detail"))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "secret detail") {
		t.Error("plain errors must not reach the client")
	}
	if got := rec.Header().Get("X-Error-Code"); got != domain.ErrInternal.Code {
		t.Errorf("X-Error-Code = %q", got)
	}
}

func TestStatusForCode(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{domain.ErrAuthenticationFailed.Code, http.StatusUnauthorized},
		{domain.ErrUnauthenticated.Code, http.StatusUnauthorized},
		{domain.ErrNotLoggedIn.Code, http.StatusUnauthorized},
		{domain.ErrForbidden.Code, http.StatusForbidden},
		{domain.ErrIPNotAllowed.Code, http.StatusForbidden},
		{domain.ErrMalformedToken.Code, http.StatusBadRequest},
		{domain.ErrUserNotFound.Code, http.StatusNotFound},
		{domain.ErrAddressBookNotFound.Code, http.StatusNotFound},
		{domain.ErrBadRequest.Code, http.StatusBadRequest},
		{domain.ErrRateLimited.Code, http.StatusTooManyRequests},
		{domain.ErrInternal.Code, http.StatusInternalServerError},
		{domain.ErrPersistence.Code, http.StatusInternalServerError},
		{domain.ErrStoreUnavailable.Code, http.StatusServiceUnavailable},
		{"", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := StatusForCode(tt.code); got != tt.want {
				t.Errorf("StatusForCode(%q) = %d, want %d", tt.code, got, tt.want)
			}
		})
	}
}
