package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/scramctl/internal/testutil/testlog"
)

func TestScramctlTemplateMatchesExample(t *testing.T) {
	testlog.Start(t)
	example, err := os.ReadFile(filepath.Join("..", "..", "cmd", "scramctl", "ex.config.toml"))
	if err != nil {
		t.Fatalf("read example: %v", err)
	}
	if string(example) != scramctlTemplate {
		t.Fatalf("cmd/scramctl/ex.config.toml drifted from the scramctl template")
	}
}

func TestWriteTemplateAndCheck(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "scramctl.toml")
	if err := WriteTemplate(path, KindScramctl, false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if err := WriteTemplate(path, KindScramctl, false); err == nil {
		t.Fatalf("expected refusal to overwrite")
	}
	f, err := CheckFile(path)
	if err != nil {
		t.Fatalf("check template: %v", err)
	}
	if f.Port != 7443 || f.Discovery.Namespace != "scramctl" || f.BackoffUnit != "1s" {
		t.Fatalf("unexpected decoded template: %+v", f)
	}
	if _, err := Template("cluster"); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}

func TestCheckFileRejectsUnknownKeys(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "typo.toml")
	if err := os.WriteFile(path, []byte("host = \"h\"\nmax_retry = 3\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := CheckFile(path)
	if err == nil || !strings.Contains(err.Error(), "max_retry") {
		t.Fatalf("expected unknown key error naming max_retry, got %v", err)
	}
}

func TestLoadInventory(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "inventory.toml")
	if err := WriteTemplate(path, KindInventory, true); err != nil {
		t.Fatalf("write inventory: %v", err)
	}
	inv, err := LoadInventory(path)
	if err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	s, ok := inv.Lookup(" staging ")
	if !ok || s.Mechanism != "SCRAM-SHA-512" || s.Port != 7443 {
		t.Fatalf("unexpected staging entry: %+v ok=%v", s, ok)
	}
	if _, ok := inv.Lookup("prod"); ok {
		t.Fatalf("unexpected prod entry")
	}
	eps := Endpoints(inv.Servers)
	if len(eps) != 2 || eps[0].Addr() != "127.0.0.1:7443" || eps[1].Attrs["name"] != "staging" {
		t.Fatalf("unexpected endpoints: %+v", eps)
	}
}

func TestValidateInventory(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		name string
		inv  Inventory
		want string
	}{
		{"empty", Inventory{}, "no servers"},
		{"missing name", Inventory{Servers: []ServerEntry{{Host: "h", Port: 1}}}, "name is required"},
		{"bad port", Inventory{Servers: []ServerEntry{{Name: "a", Host: "h"}}}, "port"},
		{"duplicate", Inventory{Servers: []ServerEntry{{Name: "a", Host: "h", Port: 1}, {Name: "a", Host: "g", Port: 2}}}, "duplicate"},
	}
	for _, tc := range cases {
		err := ValidateInventory(tc.inv)
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: expected error containing %q, got %v", tc.name, tc.want, err)
		}
	}
}
