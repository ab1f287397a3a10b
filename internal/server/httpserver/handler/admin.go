package handler

import (
	"errors"
	"mime"
	"net/http"

	"github.com/yndnr/abook-go/internal/core/domain"
	"github.com/yndnr/abook-go/internal/core/guard"
)

// AdminLoginPath is where unauthenticated admin callers are sent.
const AdminLoginPath = "/admin/login"

// AdminLogin handles POST /admin/login. Credentials come from a form or a
// JSON body. A successful admin login sets the session cookie and redirects
// to /admin; a valid non-admin login is closed again and rejected.
func (h *Handler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	username, password, err := adminCredentials(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	res, err := h.cache.Login(r.Context(), username, password)
	if err != nil {
		if errors.Is(err, domain.ErrAuthenticationFailed) {
			h.logger.Info("admin login rejected", "username", username, "client_ip", h.clientIP(r))
		}
		h.handleServiceError(w, r, err)
		return
	}

	if !res.Admin {
		_ = h.cache.Logout(&domain.AuthenticatedUser{
			SessionID:   res.SessionID,
			UserID:      res.UserID,
			AccessToken: res.Token,
		})
		h.logger.Warn("admin login by non-admin user", "user_id", res.UserID, "client_ip", h.clientIP(r))
		WriteError(w, r, domain.ErrForbidden)
		return
	}

	h.logger.Info("admin login", "user_id", res.UserID, "session_id", res.SessionID)
	h.maintain(r)

	http.SetCookie(w, h.sessionCookie(res.Token.String(), 0))
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

func adminCredentials(r *http.Request) (username, password string, err error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req AdminLoginRequest
		if err := decodeJSON(r, &req); err != nil {
			return "", "", err
		}
		return req.Username, req.Password, nil
	}

	if err := r.ParseForm(); err != nil {
		return "", "", domain.ErrBadRequest.WithDetails("invalid form body").WithCause(err)
	}
	return r.PostFormValue("username"), r.PostFormValue("password"), nil
}

// sessionCookie builds the admin cookie. A negative maxAge deletes it.
func (h *Handler) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     h.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	}
}

// AdminHome handles GET /admin for an authenticated admin.
func (h *Handler) AdminHome(w http.ResponseWriter, r *http.Request) {
	admin, ok := guard.AdminFromContext(r.Context())
	if !ok {
		h.AdminLoginRequired(w, r)
		return
	}

	users, err := h.listUsers(r)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, AdminHomeResponse{
		CurrentUser: admin.Username,
		Users:       users,
	})
}

// AdminLoginRequired answers callers without an admin session with a
// pointer to the login endpoint.
func (h *Handler) AdminLoginRequired(w http.ResponseWriter, r *http.Request) {
	code, message := describe(domain.ErrUnauthenticated)
	response := NewErrorResponse(requestIDOf(r), code, message, nil)
	response.Data = AdminLoginDescriptor{LoginURL: AdminLoginPath}

	w.Header().Set("X-Error-Code", code)
	h.writeBody(w, http.StatusUnauthorized, response)
}

// AdminLogout handles POST /admin/logout. The cookie is cleared even when
// the session had already ended.
func (h *Handler) AdminLogout(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	if err := h.cache.Logout(user); err != nil && !errors.Is(err, domain.ErrNotLoggedIn) {
		h.handleServiceError(w, r, err)
		return
	}
	h.maintain(r)

	http.SetCookie(w, h.sessionCookie("", -1))
	h.writeJSON(w, r, http.StatusOK, map[string]bool{"logged_out": true})
}

// ListUsers handles GET /admin/v1/users.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.listUsers(r)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, ListUsersResponse{Users: users, Total: len(users)})
}

func (h *Handler) listUsers(r *http.Request) ([]domain.UserSummary, error) {
	if h.users == nil {
		return []domain.UserSummary{}, nil
	}
	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrPersistence) {
			return nil, err
		}
		return nil, domain.ErrPersistence.WithDetails("list users").WithCause(err)
	}
	if users == nil {
		users = []domain.UserSummary{}
	}
	return users, nil
}

// CacheStats handles GET /admin/v1/cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	resp := CacheStatsResponse{CacheStats: h.cache.Stats()}
	if h.gate != nil {
		resp.MaintenanceIntervalSeconds = h.gate.Interval().Seconds()
	}
	h.writeJSON(w, r, http.StatusOK, resp)
}

// FlushCache handles POST /admin/v1/cache/flush. The sweep runs now,
// regardless of the maintenance interval.
func (h *Handler) FlushCache(w http.ResponseWriter, r *http.Request) {
	res, err := h.cache.FlushDirtyAddressBooks(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	admin, _ := guard.AdminFromContext(r.Context())
	attrs := []any{"written", res.Written, "evicted", res.Evicted, "elapsed", res.Elapsed}
	if admin != nil {
		attrs = append(attrs, "admin_id", admin.UserID)
	}
	h.logger.Info("forced address book flush", attrs...)

	h.writeJSON(w, r, http.StatusOK, FlushResponse{
		Written:   res.Written,
		Evicted:   res.Evicted,
		ElapsedMS: res.Elapsed.Milliseconds(),
	})
}
