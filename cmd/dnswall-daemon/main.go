// Command dnswall-daemon is the DNS front-end: it answers A/AAAA
// queries authoritatively out of the Registry and forwards everything
// else upstream, while serving the HTTP admin API that lets operators
// and the agent read and write the Registry directly.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/dnswall-io/dnswall/internal/adminapi"
	"github.com/dnswall-io/dnswall/internal/config"
	"github.com/dnswall-io/dnswall/internal/kvstore"
	"github.com/dnswall-io/dnswall/internal/logging"
	"github.com/dnswall-io/dnswall/internal/registry"
	"github.com/dnswall-io/dnswall/internal/resolvers"
	"github.com/dnswall-io/dnswall/internal/server"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

type cliFlags struct {
	backend     string
	addr        string
	httpAddr    string
	nameservers string
	patterns    string
	logLevel    string
	jsonLogs    bool
}

func parseFlags() cliFlags {
	var f cliFlags
	flag.StringVar(&f.backend, "backend", "", "Backend store URL, e.g. etcd://host:2379/dnswall (required)")
	flag.StringVar(&f.addr, "addr", "", "DNS front-end bind address (default "+config.DefaultAddr+")")
	flag.StringVar(&f.httpAddr, "http-addr", "", "Admin HTTP bind address (default "+config.DefaultHTTPAddr+")")
	flag.StringVar(&f.nameservers, "nameservers", "", "Comma-separated upstream DNS servers for non-authoritative queries")
	flag.StringVar(&f.patterns, "patterns", "", "Comma-separated name suffixes the registry accepts (default: accept all)")
	flag.StringVar(&f.logLevel, "log-level", "INFO", "Log level: DEBUG, INFO, WARN, ERROR")
	flag.BoolVar(&f.jsonLogs, "json-logs", false, "Enable JSON structured logging")
	flag.Parse()
	return f
}

func run() error {
	f := parseFlags()

	runID := uuid.New().String()[:8]
	logger := logging.Configure(logging.Config{
		Level:            f.logLevel,
		Structured:       f.jsonLogs,
		StructuredFormat: "json",
		IncludePID:       true,
		ExtraFields:      map[string]string{"run_id": runID},
	})

	cfg, err := config.LoadDaemonConfig(config.DaemonFlags{
		Backend:     f.backend,
		Addr:        f.addr,
		HTTPAddr:    f.httpAddr,
		Nameservers: f.nameservers,
		Patterns:    f.patterns,
	})
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, backendCfg, err := kvstore.NewStore(cfg.Backend)
	if err != nil {
		return fmt.Errorf("connecting to backend: %w", err)
	}

	patterns := cfg.Patterns
	if len(patterns) == 0 {
		patterns = backendCfg.Patterns
	}

	reg := registry.New(store, backendCfg.BasePath, patterns, logger)

	logger.Info("daemon starting", "run_id", runID, "addr", cfg.Addr, "http_addr", cfg.HTTPAddr)

	resolverChain, err := buildResolverChain(reg, cfg.Nameservers, logger)
	if err != nil {
		return fmt.Errorf("building resolver chain: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	adminSrv := adminapi.New(reg, cfg.HTTPAddr, Version, logger)
	go func() {
		logger.Info("admin api listening", "addr", adminSrv.Addr())
		if err := adminSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("admin api server error", "err", err)
			cancel()
		}
	}()

	dnsErr := server.NewRunner(logger).Run(ctx, cfg.Addr, resolverChain)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	_ = adminSrv.Shutdown(shutdownCtx)
	shutdownCancel()

	if dnsErr != nil {
		return fmt.Errorf("dns server exited with error: %w", dnsErr)
	}
	return nil
}

// buildResolverChain builds [authoritative registry, resolv.conf
// upstreams, explicit upstreams], the order spec §4.6 fixes. The
// registry resolver always runs first since it alone can answer
// authoritatively; either forwarding stage is omitted if it has no
// servers to use.
func buildResolverChain(reg *registry.Registry, explicitUpstreams []string, logger *slog.Logger) (resolvers.Resolver, error) {
	chain := []resolvers.Resolver{resolvers.NewRegistryResolver(reg)}

	resolvConfUpstreams, err := resolvers.LoadResolvConfNameservers(resolvers.DefaultResolvConfPath)
	if err != nil {
		return nil, err
	}
	if len(resolvConfUpstreams) > 0 {
		chain = append(chain, resolvers.NewForwardingResolver(resolvConfUpstreams, true, 0, 0))
		logger.Info("resolv.conf upstreams discovered", "servers", resolvConfUpstreams)
	}

	if len(explicitUpstreams) > 0 {
		chain = append(chain, resolvers.NewForwardingResolver(explicitUpstreams, true, 0, 0))
		logger.Info("forwarding upstreams configured", "servers", explicitUpstreams)
	}

	return &resolvers.Chained{Resolvers: chain}, nil
}
