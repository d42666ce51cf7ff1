package auth

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCredentialsValidate(t *testing.T) {
	if err := (Credentials{Username: " ", Password: "pw"}).Validate(); !errors.Is(err, ErrUsernameRequired) {
		t.Fatalf("expected ErrUsernameRequired, got %v", err)
	}
	if err := (Credentials{Username: "admin"}).Validate(); !errors.Is(err, ErrPasswordRequired) {
		t.Fatalf("expected ErrPasswordRequired, got %v", err)
	}
	if err := (Credentials{Username: "admin", Password: "admin"}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCredentialsEqualAndRedaction(t *testing.T) {
	a := Credentials{Username: "admin", Password: "s3cret"}
	if !a.Equal(Credentials{Username: "admin", Password: "s3cret"}) {
		t.Fatalf("expected equal credentials")
	}
	if a.Equal(Credentials{Username: "admin", Password: "s3cre"}) {
		t.Fatalf("expected password mismatch")
	}
	if strings.Contains(a.String(), "s3cret") {
		t.Fatalf("password leaked: %s", a.String())
	}
}

func TestPasswordSourceResolveOrder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "password")
	if err := os.WriteFile(path, []byte("from-file\n"), 0o600); err != nil {
		t.Fatalf("write password file: %v", err)
	}
	t.Setenv("SCRAMCTL_TEST_PASSWORD", "from-env")

	cases := []struct {
		src  PasswordSource
		want string
	}{
		{PasswordSource{Value: "inline", Env: "SCRAMCTL_TEST_PASSWORD", File: path}, "inline"},
		{PasswordSource{Env: "SCRAMCTL_TEST_PASSWORD", File: path}, "from-env"},
		{PasswordSource{Env: "SCRAMCTL_TEST_UNSET", File: path}, "from-file"},
	}
	for _, tc := range cases {
		got, err := tc.src.Resolve()
		if err != nil || got != tc.want {
			t.Fatalf("resolve %+v got=(%q,%v) want=%q", tc.src, got, err, tc.want)
		}
	}

	if _, err := (PasswordSource{}).Resolve(); !errors.Is(err, ErrPasswordRequired) {
		t.Fatalf("expected ErrPasswordRequired, got %v", err)
	}
	if _, err := (PasswordSource{File: filepath.Join(dir, "missing")}).Resolve(); !errors.Is(err, ErrPasswordSource) {
		t.Fatalf("expected ErrPasswordSource, got %v", err)
	}
}
