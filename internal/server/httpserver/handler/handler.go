package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/yndnr/abook-go/internal/core/domain"
	"github.com/yndnr/abook-go/internal/core/guard"
	"github.com/yndnr/abook-go/internal/core/service"
	"github.com/yndnr/abook-go/internal/telemetry/logger"
)

// Config holds the dependencies of a Handler.
type Config struct {
	// Cache owns sessions and address books.
	Cache *service.Cache

	// Gate runs write-back sweeps after mutating requests. Optional.
	Gate *service.MaintenanceGate

	// Users lists users for the admin surface. Optional.
	Users service.UserLister

	// Store is probed by GET /ready. Optional.
	Store service.Pinger

	Logger *slog.Logger

	// CookieName is the admin session cookie. Defaults to guard.DefaultCookieName.
	CookieName string

	// CookieSecure sets the Secure attribute on the admin cookie.
	CookieSecure bool

	// ClientIP resolves the client address for logging. Defaults to RemoteAddr.
	ClientIP func(*http.Request) string
}

// Handler serves the client protocol, the admin surface and the probes.
// Routing and guards are set up by the caller.
type Handler struct {
	cache        *service.Cache
	gate         *service.MaintenanceGate
	users        service.UserLister
	store        service.Pinger
	logger       *slog.Logger
	cookieName   string
	cookieSecure bool
	clientIP     func(*http.Request) string
}

// New creates a Handler.
func New(cfg Config) *Handler {
	h := &Handler{
		cache:        cfg.Cache,
		gate:         cfg.Gate,
		users:        cfg.Users,
		store:        cfg.Store,
		logger:       cfg.Logger,
		cookieName:   cfg.CookieName,
		cookieSecure: cfg.CookieSecure,
		clientIP:     cfg.ClientIP,
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.cookieName == "" {
		h.cookieName = guard.DefaultCookieName
	}
	if h.clientIP == nil {
		h.clientIP = func(r *http.Request) string { return r.RemoteAddr }
	}
	return h
}

// maintain gives the maintenance gate a chance to run. A client hanging up
// must not abort a sweep already in progress.
func (h *Handler) maintain(r *http.Request) {
	if h.gate == nil {
		return
	}
	h.gate.Trigger(context.WithoutCancel(r.Context()))
}

// writeJSON writes a JSON response with the standard envelope.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	response := NewResponse(requestIDOf(r), data)
	h.writeBody(w, status, response)
}

// writeBody writes v as JSON without an envelope.
func (h *Handler) writeBody(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// handleServiceError converts service errors to HTTP responses.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if StatusForCode(domain.GetErrorCode(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			"path", r.URL.Path,
			"error", err,
		)
	}
	WriteError(w, r, err)
}

// WriteError writes err with the status mapped from its code.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.GetErrorCode(err)
	WriteErrorStatus(w, r, StatusForCode(code), err)
}

// WriteErrorStatus writes err with an explicit status.
func WriteErrorStatus(w http.ResponseWriter, r *http.Request, status int, err error) {
	code, message := describe(err)
	response := NewErrorResponse(requestIDOf(r), code, message, nil)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}

// describe returns the public code and message of err. Causes stay in logs.
func describe(err error) (code, message string) {
	var de *domain.DomainError
	if !errors.As(err, &de) {
		return domain.ErrInternal.Code, domain.ErrInternal.Message
	}
	message = de.Message
	if de.Details != "" {
		message += ": " + de.Details
	}
	return de.Code, message
}

// StatusForCode maps an error code to an HTTP status.
func StatusForCode(code string) int {
	switch {
	case code == "":
		return http.StatusInternalServerError
	case strings.HasSuffix(code, "-4040"):
		return http.StatusNotFound
	case strings.HasSuffix(code, "-4290"):
		return http.StatusTooManyRequests
	case strings.HasSuffix(code, "-4010"), strings.HasSuffix(code, "-4011"), strings.HasSuffix(code, "-4012"):
		return http.StatusUnauthorized
	case strings.HasSuffix(code, "-4030"), strings.HasSuffix(code, "-4031"):
		return http.StatusForbidden
	case strings.HasSuffix(code, "-4000"):
		return http.StatusBadRequest
	case strings.HasSuffix(code, "-5030"):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a JSON body into v. An empty body leaves v unchanged.
func decodeJSON(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return nil
	default:
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.ErrBadRequest.WithDetails("request body too large")
		}
		return domain.ErrBadRequest.WithDetails("invalid JSON body").WithCause(err)
	}
}

// currentUser returns the identity stored by the guard middleware.
func currentUser(r *http.Request) (*domain.AuthenticatedUser, error) {
	user, ok := guard.UserFromContext(r.Context())
	if !ok {
		return nil, domain.ErrUnauthenticated
	}
	return user, nil
}

func requestIDOf(r *http.Request) string {
	return logger.RequestIDFromContext(r.Context())
}
