package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/scramctl/internal/auth"
	"github.com/danmuck/scramctl/internal/discovery"
	"github.com/danmuck/scramctl/internal/logging"
	"github.com/danmuck/scramctl/internal/observability"
	"github.com/danmuck/scramctl/internal/protocol/handshake"
	"github.com/danmuck/scramctl/internal/protocol/mechanism"
	"github.com/danmuck/scramctl/internal/protocol/session"
	"github.com/danmuck/scramctl/internal/protocol/transport"
	"github.com/rs/zerolog"
)

const (
	exitAuthenticated = 0
	exitRejected      = 1
	exitUsage         = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("scramctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to a scramctl TOML config")
	host := fs.String("host", "", "server host (overrides config)")
	port := fs.Int("port", 0, "server port (overrides config)")
	server := fs.String("server", "", "named server from the inventory file (overrides host/port)")
	user := fs.String("user", "", "username (overrides config)")
	retries := fs.Int("retries", -1, "max retries after the first attempt (overrides config)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	logging.ConfigureRuntime()
	logger := observability.Logger("scramctl")

	cfg := defaultRunConfig()
	if *configPath != "" {
		loaded, err := loadRunConfig(*configPath)
		if err != nil {
			fmt.Fprintf(stderr, "scramctl: %v\n", err)
			return exitUsage
		}
		cfg = loaded
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			cfg.Host = *host
			cfg.Discovery.Hosts = nil
		case "port":
			cfg.Port = *port
		case "server":
			cfg.Server = *server
		case "user":
			cfg.Username = *user
		case "retries":
			cfg.MaxRetries = *retries
		}
	})
	if err := cfg.applyInventory(); err != nil {
		fmt.Fprintf(stderr, "scramctl: %v\n", err)
		return exitUsage
	}
	if err := cfg.validate(); err != nil {
		fmt.Fprintf(stderr, "scramctl: %v\n", err)
		return exitUsage
	}

	password, err := cfg.Password.Resolve()
	if err != nil {
		fmt.Fprintf(stderr, "scramctl: %v\n", err)
		return exitUsage
	}
	creds := auth.Credentials{Username: cfg.Username, Password: password}
	if err := creds.Validate(); err != nil {
		fmt.Fprintf(stderr, "scramctl: %v\n", err)
		return exitUsage
	}

	engine, err := mechanism.NewSCRAM(cfg.Mechanism)
	if err != nil {
		fmt.Fprintf(stderr, "scramctl: %v\n", err)
		return exitUsage
	}
	controller, err := session.NewController(
		handshake.New(engine),
		cfg.Session,
		session.WithObserver(observability.SessionObserver{}),
	)
	if err != nil {
		fmt.Fprintf(stderr, "scramctl: %v\n", err)
		return exitUsage
	}
	connector, err := transport.NewConnector(cfg.Transport)
	if err != nil {
		fmt.Fprintf(stderr, "scramctl: %v\n", err)
		return exitUsage
	}

	endpoints, err := resolveEndpoints(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "scramctl: %v\n", err)
		return exitUsage
	}
	defer writeMetrics(logger, cfg.MetricsFile)

	for _, ep := range endpoints {
		h, err := connector.Connect(ctx, ep.Host, ep.Port)
		if err != nil {
			logger.Warn().Err(err).Str("addr", ep.Addr()).Msg("scramctl connect failed")
			continue
		}
		rep := controller.AuthenticateReport(ctx, creds, h, cfg.MaxRetries)
		if err := h.Close(); err != nil {
			logger.Warn().Err(err).Str("addr", ep.Addr()).Msg("scramctl disconnect failed")
		}

		ev := logger.Info()
		if !rep.Succeeded {
			ev = logger.Warn()
		}
		ev.Str("auth_id", rep.AuthID).
			Str("addr", ep.Addr()).
			Str("mechanism", engine.Name()).
			Int("attempts", len(rep.Attempts)).
			Dur("total_delay", rep.TotalDelay()).
			Bool("authenticated", rep.Succeeded).
			Msg("scramctl done")
		if rep.Succeeded {
			fmt.Fprintf(stderr, "scramctl: authenticated %s at %s\n", creds.Username, ep.Addr())
			return exitAuthenticated
		}
		if last, ok := rep.LastResult(); ok {
			fmt.Fprintf(stderr, "scramctl: authentication failed at %s: %s: %v\n", ep.Addr(), last.Failure, last.Err)
		}
		return exitRejected
	}

	fmt.Fprintf(stderr, "scramctl: no endpoint reachable (%d tried)\n", len(endpoints))
	return exitUsage
}

// resolveEndpoints returns the static endpoint or, when configured, the
// ZooKeeper-registered ones in random order.
func resolveEndpoints(ctx context.Context, cfg runConfig) ([]discovery.Endpoint, error) {
	if !cfg.discoveryEnabled() {
		return []discovery.Endpoint{{Host: cfg.Host, Port: cfg.Port}}, nil
	}
	resolver, err := discovery.Dial(cfg.Discovery)
	if err != nil {
		return nil, err
	}
	defer resolver.Close()
	return resolver.Resolve(ctx)
}

func writeMetrics(logger zerolog.Logger, path string) {
	if path == "" {
		return
	}
	if err := observability.WriteTextfile(path); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("scramctl metrics write failed")
	}
}
