package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/danmuck/scramctl/internal/protocol/transport"
	"github.com/pelletier/go-toml/v2"
)

// File mirrors the scramctl TOML config. Durations are Go duration strings.
type File struct {
	Host             string        `toml:"host"`
	Port             int           `toml:"port"`
	Server           string        `toml:"server"`
	Inventory        string        `toml:"inventory"`
	ServerName       string        `toml:"server_name"`
	CAFile           string        `toml:"ca_file"`
	Mechanism        string        `toml:"mechanism"`
	Username         string        `toml:"username"`
	PasswordEnv      string        `toml:"password_env"`
	PasswordFile     string        `toml:"password_file"`
	MaxRetries       int           `toml:"max_retries"`
	BackoffUnit      string        `toml:"backoff_unit"`
	BackoffMax       string        `toml:"backoff_max"`
	BackoffJitter    bool          `toml:"backoff_jitter"`
	IdleTimeout      string        `toml:"idle_timeout"`
	ConnectTimeout   string        `toml:"connect_timeout"`
	HandshakeTimeout string        `toml:"handshake_timeout"`
	WriteTimeout     string        `toml:"write_timeout"`
	FirstReadTimeout string        `toml:"first_read_timeout"`
	MetricsFile      string        `toml:"metrics_file"`
	Discovery        DiscoveryFile `toml:"discovery"`
}

type DiscoveryFile struct {
	Zookeeper      string `toml:"zookeeper"`
	Namespace      string `toml:"namespace"`
	SessionTimeout string `toml:"session_timeout"`
}

// Inventory is a named list of servers selectable with -server.
type Inventory struct {
	Servers []ServerEntry `toml:"servers"`
}

type ServerEntry struct {
	Name       string `toml:"name"`
	Host       string `toml:"host"`
	Port       int    `toml:"port"`
	ServerName string `toml:"server_name"`
	CAFile     string `toml:"ca_file"`
	Mechanism  string `toml:"mechanism"`
}

func LoadInventory(path string) (Inventory, error) {
	var inv Inventory
	if err := loadToml(path, &inv); err != nil {
		return Inventory{}, err
	}
	for i := range inv.Servers {
		inv.Servers[i].Name = strings.TrimSpace(inv.Servers[i].Name)
		inv.Servers[i].Host = strings.TrimSpace(inv.Servers[i].Host)
	}
	if err := ValidateInventory(inv); err != nil {
		return Inventory{}, err
	}
	return inv, nil
}

// Lookup finds a server by name.
func (inv Inventory) Lookup(name string) (ServerEntry, bool) {
	name = strings.TrimSpace(name)
	for _, s := range inv.Servers {
		if s.Name == name {
			return s, true
		}
	}
	return ServerEntry{}, false
}

// CheckFile strictly decodes a scramctl config; unknown keys are errors.
func CheckFile(path string) (File, error) {
	var f File
	if err := loadToml(path, &f); err != nil {
		return File{}, err
	}
	return f, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("config parse failed (%s): unknown keys:\n%s", path, strict.String())
		}
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateInventory(inv Inventory) error {
	if len(inv.Servers) == 0 {
		return fmt.Errorf("inventory lists no servers")
	}
	seen := make(map[string]bool, len(inv.Servers))
	for i, s := range inv.Servers {
		if err := ValidateServerEntry(s); err != nil {
			return fmt.Errorf("servers[%d] invalid: %w", i, err)
		}
		if seen[s.Name] {
			return fmt.Errorf("servers[%d] duplicate name %q", i, s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}

func ValidateServerEntry(s ServerEntry) error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("name is required")
	}
	return transport.ValidateEndpoint(s.Host, s.Port)
}
