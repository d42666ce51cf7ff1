package transport

import (
	"crypto/x509"
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	DefaultMaxMessageBytes = 64 * 1024
	readChunkBytes         = 4096
)

// Config defines connect and stream defaults.
type Config struct {
	ServerName string
	// CAFile adds a private CA bundle on top of the system roots.
	CAFile string
	// RootCAs replaces the system roots entirely when set.
	RootCAs *x509.CertPool

	ConnectTimeout   time.Duration
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	// FirstReadTimeout bounds the wait for the first fragment of a message.
	// Zero waits until data, EOF, or context cancellation.
	FirstReadTimeout time.Duration
	MaxMessageBytes  int
}

// Options are the per-stream knobs a Handle carries.
type Options struct {
	WriteTimeout     time.Duration
	FirstReadTimeout time.Duration
	MaxMessageBytes  int
}

func DefaultConfig() Config {
	return Config{
		ConnectTimeout:   5 * time.Second,
		HandshakeTimeout: 5 * time.Second,
		WriteTimeout:     15 * time.Second,
		MaxMessageBytes:  DefaultMaxMessageBytes,
	}
}

// WithDefaults fills unset fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = def.MaxMessageBytes
	}
	c.ServerName = strings.TrimSpace(c.ServerName)
	c.CAFile = strings.TrimSpace(c.CAFile)
	return c
}

func (c Config) Options() Options {
	return Options{
		WriteTimeout:     c.WriteTimeout,
		FirstReadTimeout: c.FirstReadTimeout,
		MaxMessageBytes:  c.MaxMessageBytes,
	}
}

func (c Config) Validate() error {
	for name, d := range map[string]time.Duration{
		"connect_timeout":    c.ConnectTimeout,
		"handshake_timeout":  c.HandshakeTimeout,
		"write_timeout":      c.WriteTimeout,
		"first_read_timeout": c.FirstReadTimeout,
	} {
		if d < 0 {
			return fmt.Errorf("%w: %s=%v", ErrInvalidTimeout, name, d)
		}
	}
	if c.CAFile != "" {
		if _, err := loadCAFile(nil, c.CAFile); err != nil {
			return err
		}
	}
	return nil
}

// ValidateEndpoint checks a caller-supplied host/port pair.
func ValidateEndpoint(host string, port int) error {
	if strings.TrimSpace(host) == "" {
		return ErrHostRequired
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, port)
	}
	return nil
}

func loadCAFile(pool *x509.CertPool, path string) (*x509.CertPool, error) {
	caPEM, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCAFileUnusable, err)
	}
	if pool == nil {
		pool = x509.NewCertPool()
	}
	if ok := pool.AppendCertsFromPEM(caPEM); !ok {
		return nil, fmt.Errorf("%w: no certificates in %s", ErrCAFileUnusable, path)
	}
	return pool, nil
}
