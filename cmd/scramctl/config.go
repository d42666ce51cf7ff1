package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/scramctl/internal/auth"
	"github.com/danmuck/scramctl/internal/config"
	"github.com/danmuck/scramctl/internal/discovery"
	"github.com/danmuck/scramctl/internal/protocol/mechanism"
	"github.com/danmuck/scramctl/internal/protocol/session"
	"github.com/danmuck/scramctl/internal/protocol/transport"
)

const (
	defaultPort        = 7443
	defaultMaxRetries  = 3
	defaultPasswordEnv = "SCRAMCTL_PASSWORD"

	// A silent server must not hang the CLI.
	defaultFirstReadTimeout = 10 * time.Second
)

// runConfig is everything one scramctl invocation needs.
type runConfig struct {
	Host        string
	Port        int
	Server      string
	Inventory   string
	Mechanism   string
	Username    string
	Password    auth.PasswordSource
	MaxRetries  int
	MetricsFile string
	Transport   transport.Config
	Session     session.Config
	Discovery   discovery.Config
}

func defaultRunConfig() runConfig {
	tcfg := transport.DefaultConfig()
	tcfg.FirstReadTimeout = defaultFirstReadTimeout
	return runConfig{
		Port:       defaultPort,
		Mechanism:  mechanism.SHA256,
		Password:   auth.PasswordSource{Env: defaultPasswordEnv},
		MaxRetries: defaultMaxRetries,
		Transport:  tcfg,
		Session:    session.DefaultConfig(),
	}
}

func (c runConfig) discoveryEnabled() bool {
	return len(c.Discovery.Hosts) > 0
}

func loadRunConfig(path string) (runConfig, error) {
	cfg := defaultRunConfig()

	var raw config.File
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return runConfig{}, fmt.Errorf("load scramctl config: %w", err)
	}

	if meta.IsDefined("host") {
		cfg.Host = strings.TrimSpace(raw.Host)
	}
	if meta.IsDefined("port") {
		cfg.Port = raw.Port
	}
	if meta.IsDefined("server") {
		cfg.Server = strings.TrimSpace(raw.Server)
	}
	if meta.IsDefined("inventory") {
		cfg.Inventory = strings.TrimSpace(raw.Inventory)
	}
	if meta.IsDefined("server_name") {
		cfg.Transport.ServerName = strings.TrimSpace(raw.ServerName)
	}
	if meta.IsDefined("ca_file") {
		cfg.Transport.CAFile = strings.TrimSpace(raw.CAFile)
	}
	if meta.IsDefined("mechanism") {
		cfg.Mechanism = strings.TrimSpace(raw.Mechanism)
	}
	if meta.IsDefined("username") {
		cfg.Username = strings.TrimSpace(raw.Username)
	}
	if meta.IsDefined("password_env") {
		cfg.Password.Env = strings.TrimSpace(raw.PasswordEnv)
	}
	if meta.IsDefined("password_file") {
		cfg.Password.File = strings.TrimSpace(raw.PasswordFile)
	}
	if meta.IsDefined("max_retries") {
		cfg.MaxRetries = raw.MaxRetries
	}
	if meta.IsDefined("metrics_file") {
		cfg.MetricsFile = strings.TrimSpace(raw.MetricsFile)
	}
	if meta.IsDefined("backoff_jitter") {
		cfg.Session.Backoff.Jitter = raw.BackoffJitter
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"backoff_unit", raw.BackoffUnit, &cfg.Session.Backoff.InitialDelay},
		{"backoff_max", raw.BackoffMax, &cfg.Session.Backoff.MaxDelay},
		{"idle_timeout", raw.IdleTimeout, &cfg.Session.FixedIdleTimeout},
		{"connect_timeout", raw.ConnectTimeout, &cfg.Transport.ConnectTimeout},
		{"handshake_timeout", raw.HandshakeTimeout, &cfg.Transport.HandshakeTimeout},
		{"write_timeout", raw.WriteTimeout, &cfg.Transport.WriteTimeout},
		{"first_read_timeout", raw.FirstReadTimeout, &cfg.Transport.FirstReadTimeout},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := parseDuration(d.raw)
		if err != nil {
			return runConfig{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if meta.IsDefined("discovery", "zookeeper") {
		cfg.Discovery.Hosts = discovery.ParseHosts(raw.Discovery.Zookeeper)
	}
	if meta.IsDefined("discovery", "namespace") {
		cfg.Discovery.Namespace = strings.TrimSpace(raw.Discovery.Namespace)
	}
	if meta.IsDefined("discovery", "session_timeout") {
		v, err := parseDuration(raw.Discovery.SessionTimeout)
		if err != nil {
			return runConfig{}, fmt.Errorf("parse discovery.session_timeout: %w", err)
		}
		cfg.Discovery.SessionTimeout = v
	}

	return cfg, nil
}

func parseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return time.ParseDuration(raw)
}

// applyInventory replaces host/port, and any TLS or mechanism settings the
// entry carries, with the named inventory server.
func (c *runConfig) applyInventory() error {
	if c.Server == "" {
		return nil
	}
	if c.Inventory == "" {
		return fmt.Errorf("server %q requested without an inventory", c.Server)
	}
	inv, err := config.LoadInventory(c.Inventory)
	if err != nil {
		return err
	}
	entry, ok := inv.Lookup(c.Server)
	if !ok {
		return fmt.Errorf("server %q not in inventory %s", c.Server, c.Inventory)
	}
	c.Host = entry.Host
	c.Port = entry.Port
	c.Discovery.Hosts = nil
	if entry.ServerName != "" {
		c.Transport.ServerName = entry.ServerName
	}
	if entry.CAFile != "" {
		c.Transport.CAFile = entry.CAFile
	}
	if entry.Mechanism != "" {
		c.Mechanism = entry.Mechanism
	}
	return nil
}

// validate checks everything that can be checked before touching the network.
func (c runConfig) validate() error {
	if !c.discoveryEnabled() {
		if err := transport.ValidateEndpoint(c.Host, c.Port); err != nil {
			return err
		}
	}
	if c.MaxRetries < 0 {
		return session.ErrNegativeRetries
	}
	if err := c.Transport.WithDefaults().Validate(); err != nil {
		return err
	}
	if err := c.Session.WithDefaults().Validate(); err != nil {
		return err
	}
	if _, err := mechanism.NewSCRAM(c.Mechanism); err != nil {
		return err
	}
	return nil
}
