package main

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/abook-go/internal/core/domain"
	"github.com/yndnr/abook-go/internal/core/service"
)

func runApp(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp(strings.NewReader(stdin), &out)
	err := app.Run(append([]string{"abook-server"}, args...))
	return out.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "abook.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestHashPassword(t *testing.T) {
	tests := []struct {
		name    string
		stdin   string
		args    []string
		want    string
		wantErr bool
	}{
		{name: "argument", args: []string{"s3cret"}, want: "s3cret"},
		{name: "stdin", stdin: "from-stdin\n", want: "from-stdin"},
		{name: "stdin without newline", stdin: "bare", want: "bare"},
		{name: "crlf", stdin: "windows\r\n", want: "windows"},
		{name: "empty stdin", stdin: "", wantErr: true},
		{name: "blank line", stdin: "\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runApp(t, tt.stdin, append([]string{"hash-password"}, tt.args...)...)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("error = nil, output %q", out)
				}
				return
			}
			if err != nil {
				t.Fatalf("error = %v", err)
			}

			record := strings.TrimSpace(out)
			if !strings.HasPrefix(record, "$argon2id$") {
				t.Fatalf("output = %q, want argon2id record", out)
			}
			ok, err := service.RecordVerifier{}.Verify(tt.want, &domain.PasswordRecord{Password: record})
			if err != nil || !ok {
				t.Errorf("Verify(%q) = %v, %v", tt.want, ok, err)
			}
		})
	}
}

func TestCheckConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  http:
    addr: 127.0.0.1:8080
storage:
  driver: postgres
  dsn: postgres://abook:hunter22@db/abook
bootstrap:
  admin_username: root
  admin_password: topsecret
`)

	out, err := runApp(t, "", "check-config", "--config", path)
	if err != nil {
		t.Fatalf("check-config error = %v", err)
	}
	if !strings.Contains(out, "configuration is valid") {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(out, "127.0.0.1:8080") || !strings.Contains(out, "postgres") {
		t.Errorf("summary missing settings: %q", out)
	}
	for _, secret := range []string{"hunter22", "topsecret"} {
		if strings.Contains(out, secret) {
			t.Errorf("output leaks %q: %q", secret, out)
		}
	}
}

func TestCheckConfig_Invalid(t *testing.T) {
	path := writeConfig(t, `
storage:
  driver: mongodb
`)
	if _, err := runApp(t, "", "check-config", "-c", path); err == nil {
		t.Fatal("check-config error = nil, want invalid driver")
	}
}

func TestCheckConfig_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := runApp(t, "", "check-config", "-c", path); err == nil {
		t.Fatal("check-config error = nil, want load failure")
	}
}

func TestServe_StopsOnCancel(t *testing.T) {
	path := writeConfig(t, `
server:
  http:
    addr: 127.0.0.1:0
  shutdown_timeout: 5s
storage:
  driver: memory
log:
  level: error
metrics:
  enabled: false
`)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, path) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}

func TestServe_AddressInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	path := writeConfig(t, `
server:
  http:
    addr: `+ln.Addr().String()+`
storage:
  driver: memory
log:
  level: error
`)

	err = serve(context.Background(), path)
	if err == nil || !strings.Contains(err.Error(), "listen") {
		t.Fatalf("serve() error = %v, want listen failure", err)
	}
}
