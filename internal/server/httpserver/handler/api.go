package handler

import (
	"errors"
	"net/http"

	"github.com/yndnr/abook-go/internal/core/domain"
)

// Login handles POST /api/login.
//
// Any credential failure is answered with 403, which is what clients expect.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	res, err := h.cache.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrAuthenticationFailed) {
			h.logger.Info("login rejected",
				"username", req.Username,
				"client_ip", h.clientIP(r),
			)
			WriteErrorStatus(w, r, http.StatusForbidden, err)
			return
		}
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.DebugContext(r.Context(), "login",
		"user_id", res.UserID,
		"session_id", res.SessionID,
		"token", res.Token,
		"device_id", req.ID,
		"device_uuid", req.UUID,
	)

	h.maintain(r)

	h.writeBody(w, http.StatusOK, LoginReply{
		User:        UserName{Name: res.DisplayName},
		AccessToken: res.Token.String(),
	})
}

// GetAddressBook handles POST /api/ab/get. A user without a stored book
// gets the empty book.
func (h *Handler) GetAddressBook(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	book, err := h.cache.GetAddressBook(r.Context(), user.UserID)
	switch {
	case errors.Is(err, domain.ErrAddressBookNotFound):
		book = domain.EmptyAddressBook
	case err != nil:
		h.handleServiceError(w, r, err)
		return
	}

	h.maintain(r)

	h.writeBody(w, http.StatusOK, AbGetResponse{
		Error:     false,
		UpdatedAt: "now",
		Data:      string(book),
	})
}

// SetAddressBook handles POST /api/ab. The write reaches the store on a
// later sweep.
func (h *Handler) SetAddressBook(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	var req AbRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	h.cache.SetAddressBook(user.UserID, domain.AddressBook(req.Data))
	h.logger.Debug("address book updated", "user_id", user.UserID, "bytes", len(req.Data))

	h.maintain(r)

	w.WriteHeader(http.StatusOK)
}

// CurrentUser handles POST /api/currentUser.
func (h *Handler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	var req CurrentUserRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	name, err := h.cache.CurrentUserName(user)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeBody(w, http.StatusOK, CurrentUserResponse{Error: false, Name: name})
}

// Audit handles POST /api/audit. Events are logged only.
func (h *Handler) Audit(w http.ResponseWriter, r *http.Request) {
	var req AuditRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	h.logger.Debug("client audit event",
		"conn_id", req.ConnID,
		"action", req.Action,
		"device_id", req.ID,
		"peer_ip", req.IP,
		"device_uuid", req.UUID,
	)

	h.maintain(r)

	w.WriteHeader(http.StatusOK)
}

// Logout handles POST /api/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	var req CurrentUserRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	if err := h.cache.Logout(user); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.logger.DebugContext(r.Context(), "logout", "user_id", user.UserID, "session_id", user.SessionID, "token", user.AccessToken)

	h.maintain(r)

	h.writeBody(w, http.StatusOK, LogoutReply{Data: ""})
}
