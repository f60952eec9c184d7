// Package kvstore adapts an external ordered key-value service (etcd)
// to the registry.Store contract: set/delete/recursive-read with TTL.
package kvstore

import (
	"fmt"
	"net/url"
	"strings"
)

// BackendConfig is a parsed backend connection string of the form
// "etcd://host1:port1[,host2:port2...]/base-path?pattern=<suffix>&pattern=<suffix>".
type BackendConfig struct {
	Scheme   string
	Hosts    []string
	BasePath string
	Patterns []string
}

// ParseBackendURL parses a backend connection string into its
// components. Any non-empty scheme is accepted and returned as-is in
// Scheme; the known-schemes check lives in NewStore, not here, so this
// function stays reusable for validation-only callers (e.g. CLI flag
// parsing) that want to fail fast before any network I/O.
func ParseBackendURL(raw string) (BackendConfig, error) {
	if raw == "" {
		return BackendConfig{}, fmt.Errorf("kvstore: empty backend URL")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return BackendConfig{}, fmt.Errorf("kvstore: malformed backend URL %q: %w", raw, err)
	}
	if u.Scheme == "" {
		return BackendConfig{}, fmt.Errorf("kvstore: backend URL %q has no scheme", raw)
	}
	if u.Host == "" {
		return BackendConfig{}, fmt.Errorf("kvstore: backend URL %q has no host", raw)
	}

	hosts := strings.Split(u.Host, ",")
	for i, h := range hosts {
		hosts[i] = strings.TrimSpace(h)
	}

	basePath := u.Path
	if basePath == "" {
		basePath = "/"
	}

	patterns := u.Query()["pattern"]
	cleaned := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p != "" {
			cleaned = append(cleaned, p)
		}
	}

	return BackendConfig{
		Scheme:   u.Scheme,
		Hosts:    hosts,
		BasePath: basePath,
		Patterns: cleaned,
	}, nil
}
