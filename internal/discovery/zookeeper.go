package discovery

import (
	"context"
	"math/rand"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const DefaultNamespace = "scramctl"

var (
	ErrNoEndpoints  = errors.New("discovery: no endpoints registered")
	ErrNoZooKeepers = errors.New("discovery: zookeeper hosts required")
)

// Endpoint is one registered server.
type Endpoint struct {
	Host  string
	Port  int
	Attrs map[string]string
}

func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

type Config struct {
	Hosts          []string
	Namespace      string
	SessionTimeout time.Duration
}

func (c Config) WithDefaults() Config {
	if strings.TrimSpace(c.Namespace) == "" {
		c.Namespace = DefaultNamespace
	}
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = time.Second
	}
	return c
}

func (c Config) path() string {
	return "/" + strings.Trim(c.Namespace, "/")
}

// ChildLister is the slice of *zk.Conn the resolver needs.
type ChildLister interface {
	Children(path string) ([]string, *zk.Stat, error)
}

type Resolver struct {
	cfg    Config
	lister ChildLister
	close  func()
	rng    *rand.Rand
}

// Dial connects to the ZooKeeper ensemble in cfg.Hosts.
func Dial(cfg Config) (*Resolver, error) {
	cfg = cfg.WithDefaults()
	if len(cfg.Hosts) == 0 {
		return nil, ErrNoZooKeepers
	}
	conn, _, err := zk.Connect(cfg.Hosts, cfg.SessionTimeout, zk.WithLogger(zkLogger{log.With().Str("component", "zk").Logger()}))
	if err != nil {
		return nil, errors.Wrapf(err, "discovery: connect %s", strings.Join(cfg.Hosts, ","))
	}
	r := NewResolver(conn, cfg)
	r.close = conn.Close
	return r, nil
}

func NewResolver(lister ChildLister, cfg Config) *Resolver {
	return &Resolver{
		cfg:    cfg.WithDefaults(),
		lister: lister,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Resolve lists the namespace and returns its endpoints in random order.
func (r *Resolver) Resolve(ctx context.Context) ([]Endpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := r.cfg.path()
	children, _, err := r.lister.Children(path)
	if err != nil {
		return nil, errors.Wrapf(err, "discovery: list %s", path)
	}
	endpoints := ParseServerInfo(children)
	if len(endpoints) == 0 {
		return nil, errors.Wrapf(ErrNoEndpoints, "namespace %s (%d children)", path, len(children))
	}
	r.rng.Shuffle(len(endpoints), func(i, j int) {
		endpoints[i], endpoints[j] = endpoints[j], endpoints[i]
	})
	log.Debug().Str("path", path).Int("endpoints", len(endpoints)).Msg("discovery.Resolve")
	return endpoints, nil
}

func (r *Resolver) Close() {
	if r.close != nil {
		r.close()
	}
}

// ParseServerInfo parses child znode names into endpoints.
func ParseServerInfo(children []string) []Endpoint {
	out := make([]Endpoint, 0, len(children))
	for _, child := range children {
		attrs := make(map[string]string)
		valid := true
		for _, param := range strings.Split(child, ";") {
			if param == "" {
				continue
			}
			key, value, ok := strings.Cut(param, "=")
			if !ok {
				valid = false
				break
			}
			attrs[key] = value
		}
		if !valid {
			continue
		}
		host, rawPort, err := net.SplitHostPort(attrs["serverUri"])
		if err != nil || host == "" {
			continue
		}
		port, err := strconv.Atoi(rawPort)
		if err != nil || port < 1 || port > 65535 {
			continue
		}
		out = append(out, Endpoint{Host: host, Port: port, Attrs: attrs})
	}
	return out
}

// ParseHosts splits a comma-separated ensemble string.
func ParseHosts(raw string) []string {
	var out []string
	for _, h := range strings.Split(raw, ",") {
		if h = strings.TrimSpace(h); h != "" {
			out = append(out, h)
		}
	}
	return out
}

type zkLogger struct {
	logger zerolog.Logger
}

func (l zkLogger) Printf(format string, args ...interface{}) {
	l.logger.Debug().Msgf(format, args...)
}
