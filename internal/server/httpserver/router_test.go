package httpserver

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/abook-go/internal/core/domain"
	"github.com/yndnr/abook-go/internal/core/service"
	"github.com/yndnr/abook-go/internal/server/httpserver/handler"
	"github.com/yndnr/abook-go/internal/storage/memory"
	"github.com/yndnr/abook-go/internal/telemetry/metric"
)

type testEnv struct {
	router http.Handler
	store  *memory.Store
	cache  *service.Cache
}

func newTestEnv(t *testing.T, configure func(*RouterConfig)) *testEnv {
	t.Helper()
	ctx := context.Background()

	store := memory.New()
	if _, err := store.PutUser(ctx, &domain.StoredUser{Username: "alice", Active: true}, "secret"); err != nil {
		t.Fatalf("PutUser() error = %v", err)
	}
	if _, err := store.PutUser(ctx, &domain.StoredUser{Username: "root", Active: true, Admin: true}, "rootpw"); err != nil {
		t.Fatalf("PutUser() error = %v", err)
	}

	reg := metric.NewRegistry()
	cache := service.NewCache(store, service.WithLogger(quietLogger()), service.WithMetrics(reg))
	gate := service.NewMaintenanceGate(cache, service.WithInterval(time.Hour), service.WithGateLogger(quietLogger()))

	cfg := &RouterConfig{
		Handler: handler.New(handler.Config{
			Cache:  cache,
			Gate:   gate,
			Users:  store,
			Store:  store,
			Logger: quietLogger(),
		}),
		Sessions:            cache,
		Logger:              quietLogger(),
		Metrics:             reg,
		MetricsAuthRequired: true,
		MaxBodyBytes:        1 << 20,
	}
	if configure != nil {
		configure(cfg)
	}

	return &testEnv{router: NewRouter(cfg), store: store, cache: cache}
}

type reqOption func(*http.Request)

func withBearer(tok string) reqOption {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }
}

func withCookie(c *http.Cookie) reqOption {
	return func(r *http.Request) { r.AddCookie(c) }
}

func withRemote(addr string) reqOption {
	return func(r *http.Request) { r.RemoteAddr = addr }
}

func (e *testEnv) do(method, path, body string, opts ...reqOption) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	rec := e.do(http.MethodPost, "/api/login", `{"username":"`+username+`","password":"`+password+`","id":"123","uuid":"dev"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var reply handler.LoginReply
	if err := json.Unmarshal(rec.Body.Bytes(), &reply); err != nil {
		t.Fatalf("decode login reply: %v", err)
	}
	if reply.User.Name != username {
		t.Errorf("user.name = %q, want %q", reply.User.Name, username)
	}
	return reply.AccessToken
}

func TestRouter_ClientProtocol(t *testing.T) {
	env := newTestEnv(t, nil)
	tok := env.login(t, "alice", "secret")

	rec := env.do(http.MethodPost, "/api/ab/get", "", withBearer(tok))
	if rec.Code != http.StatusOK {
		t.Fatalf("ab/get status = %d", rec.Code)
	}
	var got handler.AbGetResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if got.Data != "{}" || got.UpdatedAt != "now" || got.Error {
		t.Errorf("empty ab/get = %+v", got)
	}

	rec = env.do(http.MethodPost, "/api/ab", `{"data":"{\"peers\":[]}"}`, withBearer(tok))
	if rec.Code != http.StatusOK {
		t.Fatalf("ab status = %d", rec.Code)
	}

	rec = env.do(http.MethodPost, "/api/ab/get", "", withBearer(tok))
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if got.Data != `{"peers":[]}` {
		t.Errorf("ab/get data = %q", got.Data)
	}

	rec = env.do(http.MethodPost, "/api/currentUser", `{"id":"123","uuid":"dev"}`, withBearer(tok))
	var cu handler.CurrentUserResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &cu)
	if rec.Code != http.StatusOK || cu.Name != "alice" {
		t.Errorf("currentUser = %d %+v", rec.Code, cu)
	}

	rec = env.do(http.MethodPost, "/api/logout", `{}`, withBearer(tok))
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"data":""}` {
		t.Errorf("logout = %d %s", rec.Code, rec.Body.String())
	}

	rec = env.do(http.MethodPost, "/api/ab/get", "", withBearer(tok))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("ab/get after logout status = %d, want 401", rec.Code)
	}
	if s := env.cache.Stats(); s.Tokens != 0 || s.Users != 0 {
		t.Errorf("stats after logout = %+v", s)
	}
}

func TestRouter_LoginFailure(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"wrong password", `{"username":"alice","password":"nope"}`, http.StatusForbidden},
		{"unknown user", `{"username":"mallory","password":"x"}`, http.StatusForbidden},
		{"invalid json", `{"username":`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(http.MethodPost, "/api/login", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}

	if s := env.cache.Stats(); s.Tokens != 0 {
		t.Errorf("failed logins left %d tokens", s.Tokens)
	}
}

func TestRouter_GuardedRoutesRejectWithoutToken(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, path := range []string{"/api/ab/get", "/api/ab", "/api/currentUser", "/api/logout"} {
		t.Run(path, func(t *testing.T) {
			rec := env.do(http.MethodPost, path, `{}`)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestRouter_AuditNeedsNoToken(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodPost, "/api/audit", `{"Id":7,"action":"new","id":"123","ip":"1.2.3.4","uuid":"u"}`)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRouter_AdminCookieFlow(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/admin", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous /admin status = %d, want 401", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"login_url":"/admin/login"`) {
		t.Errorf("anonymous /admin body = %s", rec.Body.String())
	}

	form := url.Values{"username": {"root"}, "password": {"rootpw"}}.Encode()
	req := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/admin" {
		t.Fatalf("admin login = %d %q", rec.Code, rec.Header().Get("Location"))
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("cookies = %v", cookies)
	}
	cookie := cookies[0]
	if cookie.Name != "Authorization" || !cookie.HttpOnly || cookie.SameSite != http.SameSiteStrictMode {
		t.Errorf("cookie = %+v", cookie)
	}

	rec = env.do(http.MethodGet, "/admin", "", withCookie(cookie))
	if rec.Code != http.StatusOK {
		t.Fatalf("/admin status = %d", rec.Code)
	}
	var home struct {
		Data handler.AdminHomeResponse `json:"data"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &home)
	if home.Data.CurrentUser != "root" || len(home.Data.Users) != 2 {
		t.Errorf("admin home = %+v", home.Data)
	}
	if strings.Contains(rec.Body.String(), "rootpw") {
		t.Error("admin home must not expose passwords")
	}

	rec = env.do(http.MethodPost, "/admin/logout", "", withCookie(cookie))
	if rec.Code != http.StatusOK {
		t.Fatalf("admin logout status = %d", rec.Code)
	}
	cleared := rec.Result().Cookies()
	if len(cleared) != 1 || cleared[0].MaxAge >= 0 {
		t.Errorf("logout should clear the cookie, got %v", cleared)
	}

	rec = env.do(http.MethodGet, "/admin", "", withCookie(cookie))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("/admin after logout status = %d, want 401", rec.Code)
	}
}

func TestRouter_AdminLoginByNonAdmin(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodPost, "/admin/login", `{"username":"alice","password":"secret"}`)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Error("no cookie should be set")
	}
	if s := env.cache.Stats(); s.Tokens != 0 || s.Users != 0 {
		t.Errorf("rejected admin login left a session: %+v", s)
	}
}

func TestRouter_AdminAPI(t *testing.T) {
	env := newTestEnv(t, nil)
	adminTok := env.login(t, "root", "rootpw")
	userTok := env.login(t, "alice", "secret")

	rec := env.do(http.MethodGet, "/admin/v1/users", "", withBearer(userTok))
	if rec.Code != http.StatusForbidden {
		t.Errorf("non-admin users listing status = %d, want 403", rec.Code)
	}

	rec = env.do(http.MethodGet, "/admin/v1/users", "", withBearer(adminTok))
	var users struct {
		Data handler.ListUsersResponse `json:"data"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &users)
	if rec.Code != http.StatusOK || users.Data.Total != 2 {
		t.Errorf("users listing = %d %+v", rec.Code, users.Data)
	}

	// The first write creates a clean entry; the second one is dirty.
	env.do(http.MethodPost, "/api/ab", `{"data":"v1"}`, withBearer(userTok))
	env.do(http.MethodPost, "/api/ab", `{"data":"v2"}`, withBearer(userTok))

	rec = env.do(http.MethodGet, "/admin/v1/cache/stats", "", withBearer(adminTok))
	var stats struct {
		Data handler.CacheStatsResponse `json:"data"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &stats)
	if stats.Data.Dirty != 1 || stats.Data.Tokens != 2 || stats.Data.MaintenanceIntervalSeconds != 3600 {
		t.Errorf("stats = %+v", stats.Data)
	}

	rec = env.do(http.MethodPost, "/admin/v1/cache/flush", "", withBearer(adminTok))
	var flushed struct {
		Data handler.FlushResponse `json:"data"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &flushed)
	if rec.Code != http.StatusOK || flushed.Data.Written != 1 {
		t.Errorf("flush = %d %+v", rec.Code, flushed.Data)
	}

	book, err := env.store.GetAddressBook(context.Background(), 1)
	if err != nil || book != "v2" {
		t.Errorf("stored book = %q, %v", book, err)
	}
}

func TestRouter_AdminAllowList(t *testing.T) {
	_, allowed, _ := net.ParseCIDR("10.0.0.0/8")
	env := newTestEnv(t, func(cfg *RouterConfig) {
		cfg.AdminAllowList = []*net.IPNet{allowed}
	})
	adminTok := env.login(t, "root", "rootpw")

	rec := env.do(http.MethodGet, "/admin/v1/users", "", withBearer(adminTok), withRemote("192.0.2.1:1000"))
	if rec.Code != http.StatusForbidden || rec.Header().Get("X-Error-Code") != domain.ErrIPNotAllowed.Code {
		t.Errorf("outside allowlist = %d %q", rec.Code, rec.Header().Get("X-Error-Code"))
	}

	rec = env.do(http.MethodGet, "/admin/v1/users", "", withBearer(adminTok), withRemote("10.1.1.1:1000"))
	if rec.Code != http.StatusOK {
		t.Errorf("inside allowlist status = %d", rec.Code)
	}

	// the client protocol is not restricted
	rec = env.do(http.MethodPost, "/api/currentUser", "{}", withBearer(adminTok), withRemote("192.0.2.1:1000"))
	if rec.Code != http.StatusOK {
		t.Errorf("client protocol status = %d", rec.Code)
	}
}

func TestRouter_LoginRateLimit(t *testing.T) {
	env := newTestEnv(t, func(cfg *RouterConfig) {
		cfg.LoginRateLimit = 0.01
		cfg.LoginBurst = 1
	})

	env.login(t, "alice", "secret")
	rec := env.do(http.MethodPost, "/api/login", `{"username":"alice","password":"secret"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
}

func TestRouter_Probes(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, path := range []string{"/health", "/ready"} {
		rec := env.do(http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, rec.Code)
		}
		if rec.Header().Get("X-Request-ID") == "" {
			t.Errorf("%s missing X-Request-ID", path)
		}
	}
}

func TestRouter_Metrics(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous /metrics status = %d, want 401", rec.Code)
	}

	adminTok := env.login(t, "root", "rootpw")
	rec = env.do(http.MethodGet, "/metrics", "", withBearer(adminTok))
	if rec.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `abook_logins_total{result="success"} 1`) {
		t.Errorf("login counter missing from scrape")
	}
}

func TestRouter_BodyLimit(t *testing.T) {
	env := newTestEnv(t, func(cfg *RouterConfig) { cfg.MaxBodyBytes = 128 })
	tok := env.login(t, "alice", "secret")

	rec := env.do(http.MethodPost, "/api/ab", `{"data":"`+strings.Repeat("x", 256)+`"}`, withBearer(tok))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
