package logger

import (
	"bytes"
	"context"
	"testing"
)

func TestRequestIDFromContext(t *testing.T) {
	ctx := context.Background()
	if got := RequestIDFromContext(ctx); got != "" {
		t.Errorf("RequestIDFromContext(empty) = %q", got)
	}

	ctx = WithRequestID(ctx, "01J0000000000000000000000A")
	if got := RequestIDFromContext(ctx); got != "01J0000000000000000000000A" {
		t.Errorf("RequestIDFromContext() = %q", got)
	}
}

func TestRequestIDFromContext_OtherKeys(t *testing.T) {
	type otherKey string
	ctx := context.WithValue(context.Background(), otherKey("request_id"), "not-ours")
	if got := RequestIDFromContext(ctx); got != "" {
		t.Errorf("RequestIDFromContext() = %q, want empty", got)
	}
}

func TestContextHandler_AddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(t, &buf, "info").Slog()

	l.InfoContext(WithRequestID(context.Background(), "req-7"), "request completed")

	entry := decodeEntry(t, &buf)
	if entry["request_id"] != "req-7" {
		t.Errorf("request_id = %v, want req-7", entry["request_id"])
	}
}

func TestContextHandler_NoRequestID(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(t, &buf, "info").Slog()

	l.InfoContext(context.Background(), "startup")

	if _, ok := decodeEntry(t, &buf)["request_id"]; ok {
		t.Error("request_id added without one in the context")
	}
}

func TestContextHandler_KeepsAttrs(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(t, &buf, "info").With("component", "http").Slog()

	l.WarnContext(WithRequestID(context.Background(), "req-8"), "client error", "status", 404)

	entry := decodeEntry(t, &buf)
	if entry["component"] != "http" || entry["request_id"] != "req-8" || entry["status"] != float64(404) {
		t.Errorf("entry = %v", entry)
	}
}
