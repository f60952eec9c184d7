// Package registry implements the hierarchical, TTL-aware name store that
// sits over an external ordered key-value service. It owns name syntax
// validation, key encoding, item deduplication, and wildcard fallback.
package registry

import "errors"

var (
	// ErrBackendValue marks an invalid name, a missing uuid, or a write
	// against a name the registry's pattern filter does not support.
	// Wrap this with fmt.Errorf("...: %w", ErrBackendValue) to add context.
	ErrBackendValue = errors.New("registry: invalid value")

	// ErrBackendNotFound marks an unrecognized backend URL scheme.
	ErrBackendNotFound = errors.New("registry: unknown backend")

	// ErrBackend marks a KV store I/O failure (connection, protocol).
	ErrBackend = errors.New("registry: backend error")

	// ErrMalformedConfig marks a bad CLI/env/backend-URL configuration
	// value discovered at startup (empty backend, unparseable address,
	// malformed backend URL). Fatal: the caller should exit(1).
	ErrMalformedConfig = errors.New("registry: malformed configuration")
)
