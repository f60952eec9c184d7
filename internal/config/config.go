// Package config loads and validates dnswall's daemon and agent
// configuration: flags, DNSWALL_-prefixed environment variables, and
// defaults, via github.com/spf13/viper the way HydraDNS's
// internal/config loads HYDRADNS_-prefixed settings. No configuration
// file is read.
//
// Spec §6 fixes the flag/env names as an external contract
// (-backend/DNSWALL_BACKEND, etc.), so unlike HydraDNS's nested
// server.host-style dot-path keys, every setting here binds a flat,
// 1:1 viper key to its flag and environment variable.
package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/spf13/viper"

	"github.com/dnswall-io/dnswall/internal/registry"
)

// EnvPrefix is the environment-variable prefix for every dnswall
// setting (DNSWALL_BACKEND, DNSWALL_ADDR, ...), matching HydraDNS's
// HYDRADNS_ convention.
const EnvPrefix = "DNSWALL"

const (
	// DefaultAddr is the DNS front-end's default bind address.
	DefaultAddr = "0.0.0.0:53"
	// DefaultHTTPAddr is the admin HTTP surface's default bind address.
	DefaultHTTPAddr = "0.0.0.0:9090"
	// DefaultDockerURL is the Agent's default container-runtime socket.
	DefaultDockerURL = "unix:///var/run/docker.sock"
)

// DaemonFlags holds raw -flag values as parsed by cmd/dnswall-daemon,
// before environment/default resolution. An empty string means "flag
// not set"; flags always win over the environment when non-empty.
type DaemonFlags struct {
	Backend     string
	Addr        string
	HTTPAddr    string
	Nameservers string
	Patterns    string
}

// DaemonConfig is dnswall-daemon's fully resolved configuration.
type DaemonConfig struct {
	Backend     string
	Addr        string
	HTTPAddr    string
	Nameservers []string
	Patterns    []string
}

// AgentFlags holds raw -flag values as parsed by cmd/dnswall-agent.
type AgentFlags struct {
	Backend     string
	DockerURL   string
	TLSCertFile string
	TLSKeyFile  string
	TLSCAFile   string
	TLSVerify   string
}

// AgentConfig is dnswall-agent's fully resolved configuration.
type AgentConfig struct {
	Backend     string
	DockerURL   string
	TLSCertFile string
	TLSKeyFile  string
	TLSCAFile   string
	TLSVerify   bool
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	return v
}

// resolveString applies flag > env > default precedence for key,
// bound to the given environment variable suffix (DNSWALL_<envVar>).
func resolveString(v *viper.Viper, flagVal, key, envVar, def string) string {
	v.SetDefault(key, def)
	_ = v.BindEnv(key, envVar)
	if strings.TrimSpace(flagVal) != "" {
		return flagVal
	}
	return v.GetString(key)
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// LoadDaemonConfig resolves DaemonConfig from flags, environment, and
// defaults, then validates it. Validation failures are
// ErrMalformedConfig — fatal at startup per spec §7.
func LoadDaemonConfig(flags DaemonFlags) (*DaemonConfig, error) {
	v := newViper()

	cfg := &DaemonConfig{
		Backend:     resolveString(v, flags.Backend, "backend", "BACKEND", ""),
		Addr:        resolveString(v, flags.Addr, "addr", "ADDR", DefaultAddr),
		HTTPAddr:    resolveString(v, flags.HTTPAddr, "http_addr", "HTTP_ADDR", DefaultHTTPAddr),
		Nameservers: splitCSV(resolveString(v, flags.Nameservers, "servers", "SERVERS", "")),
		Patterns:    splitCSV(resolveString(v, flags.Patterns, "patterns", "PATTERNS", "")),
	}

	if err := validateDaemonConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateDaemonConfig(cfg *DaemonConfig) error {
	if strings.TrimSpace(cfg.Backend) == "" {
		return fmt.Errorf("%w: -backend (or DNSWALL_BACKEND) is required", registry.ErrMalformedConfig)
	}
	if err := validateHostPort(cfg.Addr); err != nil {
		return fmt.Errorf("%w: -addr %q: %v", registry.ErrMalformedConfig, cfg.Addr, err)
	}
	if err := validateHostPort(cfg.HTTPAddr); err != nil {
		return fmt.Errorf("%w: -http-addr %q: %v", registry.ErrMalformedConfig, cfg.HTTPAddr, err)
	}
	return nil
}

// LoadAgentConfig resolves AgentConfig from flags, environment, and
// defaults, then validates it.
func LoadAgentConfig(flags AgentFlags) (*AgentConfig, error) {
	v := newViper()

	verifyRaw := resolveString(v, flags.TLSVerify, "docker_tls_verify", "DOCKER_TLS_VERIFY", "")
	cfg := &AgentConfig{
		Backend:     resolveString(v, flags.Backend, "backend", "BACKEND", ""),
		DockerURL:   resolveString(v, flags.DockerURL, "docker_url", "DOCKER_URL", DefaultDockerURL),
		TLSCertFile: resolveString(v, flags.TLSCertFile, "docker_tlscert", "DOCKER_TLSCERT", ""),
		TLSKeyFile:  resolveString(v, flags.TLSKeyFile, "docker_tlskey", "DOCKER_TLSKEY", ""),
		TLSCAFile:   resolveString(v, flags.TLSCAFile, "docker_tlscacert", "DOCKER_TLSCACERT", ""),
		TLSVerify:   verifyRaw != "" && verifyRaw != "0" && !strings.EqualFold(verifyRaw, "false"),
	}

	if err := validateAgentConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateAgentConfig(cfg *AgentConfig) error {
	if strings.TrimSpace(cfg.Backend) == "" {
		return fmt.Errorf("%w: -backend (or DNSWALL_BACKEND) is required", registry.ErrMalformedConfig)
	}
	return nil
}

// validateHostPort reports a MalformedConfig-worthy error if addr is
// not a syntactically valid host:port pair (a wildcard or empty host,
// as in "0.0.0.0:53" or ":53", is fine).
func validateHostPort(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	if port == "" {
		return fmt.Errorf("missing port")
	}
	return nil
}
