// Command dnswall-agent watches the local container runtime and keeps
// the Registry in sync with what is actually running: every declared
// name is heartbeated on a fixed interval, with container lifecycle
// events from the runtime used as an additional, best-effort trigger
// for an out-of-band pass.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/dnswall-io/dnswall/internal/agent"
	"github.com/dnswall-io/dnswall/internal/config"
	"github.com/dnswall-io/dnswall/internal/containersrc"
	"github.com/dnswall-io/dnswall/internal/kvstore"
	"github.com/dnswall-io/dnswall/internal/logging"
	"github.com/dnswall-io/dnswall/internal/registry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

type cliFlags struct {
	backend     string
	dockerURL   string
	tlsCertFile string
	tlsKeyFile  string
	tlsCAFile   string
	tlsVerify   string
	logLevel    string
	jsonLogs    bool
}

func parseFlags() cliFlags {
	var f cliFlags
	flag.StringVar(&f.backend, "backend", "", "Backend store URL, e.g. etcd://host:2379/dnswall (required)")
	flag.StringVar(&f.dockerURL, "docker-url", "", "Docker daemon URL (default "+config.DefaultDockerURL+")")
	flag.StringVar(&f.tlsCertFile, "docker-tlscert", "", "Path to Docker client TLS certificate")
	flag.StringVar(&f.tlsKeyFile, "docker-tlskey", "", "Path to Docker client TLS key")
	flag.StringVar(&f.tlsCAFile, "docker-tlscacert", "", "Path to Docker client TLS CA certificate")
	flag.StringVar(&f.tlsVerify, "docker-tls-verify", "", "Docker TLS verify setting (1/true); recorded in the config but not passed to the Docker client")
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

	cfg, err := config.LoadAgentConfig(config.AgentFlags{
		Backend:     f.backend,
		DockerURL:   f.dockerURL,
		TLSCertFile: f.tlsCertFile,
		TLSKeyFile:  f.tlsKeyFile,
		TLSCAFile:   f.tlsCAFile,
		TLSVerify:   f.tlsVerify,
	})
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, backendCfg, err := kvstore.NewStore(cfg.Backend)
	if err != nil {
		return fmt.Errorf("connecting to backend: %w", err)
	}
	reg := registry.New(store, backendCfg.BasePath, backendCfg.Patterns, logger)

	src, err := containersrc.New(cfg.DockerURL, &containersrc.TLSConfig{
		CertFile: cfg.TLSCertFile,
		KeyFile:  cfg.TLSKeyFile,
		CAFile:   cfg.TLSCAFile,
		Verify:   cfg.TLSVerify,
	})
	if err != nil {
		return fmt.Errorf("connecting to docker: %w", err)
	}
	defer src.Close()

	reconciler := agent.New(src, reg, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("agent starting", "run_id", runID, "docker_url", cfg.DockerURL, "backend_base_path", backendCfg.BasePath)
	reconciler.Run(ctx)
	return nil
}
