package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"net"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// Connector dials TLS streams for authentication.
type Connector struct {
	cfg Config
}

func NewConnector(cfg Config) (*Connector, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Connector{cfg: cfg}, nil
}

// Connect dials host:port and completes a TLS client handshake verified
// against the configured roots. Failures are *ConnectionError.
func (c *Connector) Connect(ctx context.Context, host string, port int) (*Handle, error) {
	host = strings.TrimSpace(host)
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	if err := ValidateEndpoint(host, port); err != nil {
		return nil, &ConnectionError{Op: "connect", Addr: addr, Err: err}
	}

	tlsCfg, err := c.clientTLSConfig(host)
	if err != nil {
		return nil, &ConnectionError{Op: "connect", Addr: addr, Err: err}
	}

	dialer := net.Dialer{Timeout: c.cfg.ConnectTimeout}
	rawConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &ConnectionError{Op: "connect", Addr: addr, Err: err}
	}
	conn := tls.Client(rawConn, tlsCfg)
	handshakeCtx, cancel := context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
	defer cancel()
	if err := conn.HandshakeContext(handshakeCtx); err != nil {
		_ = rawConn.Close()
		return nil, &ConnectionError{Op: "connect", Addr: addr, Err: err}
	}

	state := conn.ConnectionState()
	log.Debug().
		Str("addr", addr).
		Str("tls_version", tls.VersionName(state.Version)).
		Str("cipher", tls.CipherSuiteName(state.CipherSuite)).
		Msg("transport.Connector.Connect ok")

	h := NewHandle(conn, c.cfg.Options())
	h.addr = addr
	return h, nil
}

func (c *Connector) clientTLSConfig(host string) (*tls.Config, error) {
	cfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
		ServerName: host,
	}
	if c.cfg.ServerName != "" {
		cfg.ServerName = c.cfg.ServerName
	}

	switch {
	case c.cfg.RootCAs != nil:
		cfg.RootCAs = c.cfg.RootCAs
	case c.cfg.CAFile != "":
		base, err := x509.SystemCertPool()
		if err != nil || base == nil {
			base = x509.NewCertPool()
		}
		pool, err := loadCAFile(base, c.cfg.CAFile)
		if err != nil {
			return nil, err
		}
		cfg.RootCAs = pool
	}
	return cfg, nil
}
