package handler

import (
	"time"

	"github.com/yndnr/abook-go/internal/core/domain"
	"github.com/yndnr/abook-go/internal/core/service"
)

// Response is the envelope used by the admin, health and error responses.
// The client protocol under /api replies with bare objects.
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      "OK",
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message string, details any) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Details:   details,
	}
}

// LoginRequest is the body of POST /api/login. ID and UUID identify the
// client device and are only logged.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	ID       string `json:"id,omitempty"`
	UUID     string `json:"uuid,omitempty"`
}

// UserName carries a display name.
type UserName struct {
	Name string `json:"name"`
}

// LoginReply is the body of a successful POST /api/login.
type LoginReply struct {
	User        UserName `json:"user"`
	AccessToken string   `json:"access_token"`
}

// AbGetResponse is the body of POST /api/ab/get.
type AbGetResponse struct {
	Error     bool   `json:"error"`
	UpdatedAt string `json:"updated_at"`
	Data      string `json:"data"`
}

// AbRequest is the body of POST /api/ab.
type AbRequest struct {
	Data string `json:"data"`
}

// CurrentUserRequest is the body of POST /api/currentUser and POST /api/logout.
type CurrentUserRequest struct {
	ID   string `json:"id,omitempty"`
	UUID string `json:"uuid,omitempty"`
}

// CurrentUserResponse is the body of POST /api/currentUser.
type CurrentUserResponse struct {
	Error bool   `json:"error"`
	Name  string `json:"name"`
}

// AuditRequest is the body of POST /api/audit. Every field is optional.
type AuditRequest struct {
	ConnID int64  `json:"Id,omitempty"`
	Action string `json:"action,omitempty"`
	ID     string `json:"id,omitempty"`
	IP     string `json:"ip,omitempty"`
	UUID   string `json:"uuid,omitempty"`
}

// LogoutReply is the body of POST /api/logout.
type LogoutReply struct {
	Data string `json:"data"`
}

// AdminLoginRequest is the JSON form of POST /admin/login.
type AdminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AdminLoginDescriptor tells unauthenticated callers where to log in.
type AdminLoginDescriptor struct {
	LoginURL string `json:"login_url"`
}

// AdminHomeResponse is the data of GET /admin.
type AdminHomeResponse struct {
	CurrentUser string               `json:"current_user"`
	Users       []domain.UserSummary `json:"users"`
}

// ListUsersResponse is the data of GET /admin/v1/users.
type ListUsersResponse struct {
	Users []domain.UserSummary `json:"users"`
	Total int                  `json:"total"`
}

// CacheStatsResponse is the data of GET /admin/v1/cache/stats.
type CacheStatsResponse struct {
	service.CacheStats
	MaintenanceIntervalSeconds float64 `json:"maintenance_interval_seconds"`
}

// FlushResponse is the data of POST /admin/v1/cache/flush.
type FlushResponse struct {
	Written   int   `json:"written"`
	Evicted   int   `json:"evicted"`
	ElapsedMS int64 `json:"elapsed_ms"`
}

// HealthResponse is the data of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
	Time    string `json:"time"`
}
