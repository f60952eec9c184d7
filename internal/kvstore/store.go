package kvstore

import (
	"fmt"

	"github.com/dnswall-io/dnswall/internal/registry"
)

// SchemeEtcd is the only backend scheme this adapter currently knows
// how to dial (spec §9: "Abstract-base-class Backend with one concrete
// subclass is a single-variant polymorphism chosen for future
// backends"); any other scheme is an unrecognized-backend startup
// error.
const SchemeEtcd = "etcd"

// NewStore parses raw as a backend connection string and dials the
// corresponding KV store. An empty or unparseable URL is a
// MalformedConfig error; any scheme other than etcd is a
// BackendNotFound error. Both are fatal at startup per spec §7.
func NewStore(raw string) (registry.Store, BackendConfig, error) {
	cfg, err := ParseBackendURL(raw)
	if err != nil {
		return nil, BackendConfig{}, fmt.Errorf("%w: %v", registry.ErrMalformedConfig, err)
	}
	switch cfg.Scheme {
	case SchemeEtcd:
		store, err := NewEtcdStore(cfg)
		if err != nil {
			return nil, BackendConfig{}, err
		}
		return store, cfg, nil
	default:
		return nil, BackendConfig{}, fmt.Errorf("%w: unrecognized backend scheme %q", registry.ErrBackendNotFound, cfg.Scheme)
	}
}
