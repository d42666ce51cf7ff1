package main

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/scramctl/internal/testutil/scramtest"
	"github.com/danmuck/scramctl/internal/testutil/testlog"
	"github.com/danmuck/scramctl/internal/testutil/tlstest"
	"github.com/xdg-go/scram"
)

func startTLSServer(t *testing.T, srv *scramtest.Server) (string, int, string) {
	t.Helper()
	ca := tlstest.NewAuthority(t, "scramctl-test-ca")
	ln, err := tls.Listen("tcp", "127.0.0.1:0", ca.ServerConfig(t))
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				_ = srv.Serve(conn)
			}()
		}
	}()
	addr := ln.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port, ca.CAFile(t)
}

func writeRunConfig(t *testing.T, host string, port int, caFile, password string) string {
	t.Helper()
	dir := t.TempDir()
	pwFile := filepath.Join(dir, "password")
	if err := os.WriteFile(pwFile, []byte(password+"\n"), 0o600); err != nil {
		t.Fatalf("write password: %v", err)
	}
	body := fmt.Sprintf(`
host = %q
port = %d
ca_file = %q
username = "admin"
password_env = ""
password_file = %q
max_retries = 2
backoff_unit = "20ms"
first_read_timeout = "2s"
metrics_file = %q
`, host, port, caFile, pwFile, filepath.Join(dir, "scramctl.prom"))
	path := filepath.Join(dir, "scramctl.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestRunAuthenticatesOverTLS(t *testing.T) {
	testlog.Start(t)
	srv := scramtest.New(t, scram.SHA256, map[string]string{"admin": "s3cret"})
	srv.Faults = map[int]scramtest.Fault{1: scramtest.FaultMalformedFirst}
	host, port, caFile := startTLSServer(t, srv)
	path := writeRunConfig(t, host, port, caFile, "s3cret")

	var stderr bytes.Buffer
	if code := run(context.Background(), []string{"-config", path}, &stderr); code != exitAuthenticated {
		t.Fatalf("exit=%d stderr=%s", code, stderr.String())
	}
	if srv.Attempts() != 2 {
		t.Fatalf("expected one retry, server saw %d attempts", srv.Attempts())
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(path), "scramctl.prom")); err != nil {
		t.Fatalf("metrics file not written: %v", err)
	}
}

func TestRunWrongPasswordExitsRejected(t *testing.T) {
	testlog.Start(t)
	srv := scramtest.New(t, scram.SHA256, map[string]string{"admin": "s3cret"})
	host, port, caFile := startTLSServer(t, srv)
	path := writeRunConfig(t, host, port, caFile, "guess")

	var stderr bytes.Buffer
	code := run(context.Background(), []string{"-config", path, "-retries", "0"}, &stderr)
	if code != exitRejected {
		t.Fatalf("exit=%d stderr=%s", code, stderr.String())
	}
	if !strings.Contains(stderr.String(), "protocol") {
		t.Fatalf("expected failure kind in output: %s", stderr.String())
	}
	if srv.Attempts() != 1 {
		t.Fatalf("retries=0 must make exactly one attempt, got %d", srv.Attempts())
	}
}

func TestRunUsageErrors(t *testing.T) {
	testlog.Start(t)
	cases := [][]string{
		{"-bogus"},
		{"-host", "", "-user", "admin"},
		{"-host", "127.0.0.1", "-port", "0", "-user", "admin"},
		{"-config", filepath.Join(t.TempDir(), "missing.toml")},
	}
	for _, args := range cases {
		var stderr bytes.Buffer
		if code := run(context.Background(), args, &stderr); code != exitUsage {
			t.Fatalf("args=%v exit=%d stderr=%s", args, code, stderr.String())
		}
	}
}

func TestRunUnreachableEndpointIsUsageError(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()

	t.Setenv(defaultPasswordEnv, "pw")
	var stderr bytes.Buffer
	code := run(context.Background(), []string{"-host", "127.0.0.1", "-port", fmt.Sprint(port), "-user", "admin"}, &stderr)
	if code != exitUsage || !strings.Contains(stderr.String(), "no endpoint reachable") {
		t.Fatalf("exit=%d stderr=%s", code, stderr.String())
	}
}
