package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// Leaf is one key/value/ttl tuple returned by a recursive KV read.
type Leaf struct {
	Key   string
	Value []byte
	// TTLSeconds is the remaining lease time in seconds, or -1 if the
	// key carries no lease.
	TTLSeconds int64
}

// Store is the KV Client Adapter's contract: the minimal ordered
// key-value operations the Registry needs. A "key not found" condition
// is represented by a nil error and an empty result, not a distinct
// error value — see §7's KeyMissing handling.
type Store interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Read returns every leaf at key. If recursive, it returns every
	// leaf in the subtree rooted at key. A missing key yields (nil, nil).
	Read(ctx context.Context, key string, recursive bool) ([]Leaf, error)
}

// Registry is the hierarchical, TTL-aware, multi-record-per-name store
// layered over a Store. It owns key encoding, wildcard fallback, and
// item-set reconstruction; it holds no mutable state of its own beyond
// its configuration.
type Registry struct {
	BasePath string
	Patterns []string
	Store    Store
	Logger   *slog.Logger
}

// New builds a Registry. basePath defaults to DefaultBasePath if empty.
func New(store Store, basePath string, patterns []string, logger *slog.Logger) *Registry {
	if basePath == "" {
		basePath = DefaultBasePath
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{BasePath: basePath, Patterns: patterns, Store: store, Logger: logger}
}

// Supports reports whether name is syntactically valid and, when the
// registry has a non-empty pattern filter, ends with one of its
// configured suffixes.
func (r *Registry) Supports(name string) bool {
	return supports(name, r.Patterns)
}

// Register writes item under every name in the (possibly delimited)
// names argument. Each name is validated against name syntax and the
// pattern filter immediately before its own write. Writes are best-effort
// in sequence: on the first failure the error propagates immediately
// and keys already written for earlier names are left in place (the
// next reconcile pass will re-converge them).
func (r *Registry) Register(ctx context.Context, names string, item DomainItem, ttl time.Duration) error {
	for _, name := range splitNameList(names) {
		if err := validateName(name); err != nil {
			return err
		}
		if !r.Supports(name) {
			return fmt.Errorf("%w: name %q is not supported by this registry's pattern filter", ErrBackendValue, name)
		}
		value, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("%w: encoding item for %q: %v", ErrBackendValue, name, err)
		}
		key := itemKey(r.BasePath, name, item.UUID)
		if err := r.Store.Set(ctx, key, value, ttl); err != nil {
			r.Logger.Error("registry: register failed", "name", name, "uuid", item.UUID, "err", err)
			return fmt.Errorf("%w: register name=%s uuid=%s: %v", ErrBackend, name, item.UUID, err)
		}
	}
	return nil
}

// Unregister deletes item's per-uuid leaf key(s) under every name in
// the (possibly delimited) names argument. A "not found" from the
// store is not surfaced as an error: unregister is idempotent.
func (r *Registry) Unregister(ctx context.Context, names string, item DomainItem) error {
	for _, name := range splitNameList(names) {
		key := itemKey(r.BasePath, name, item.UUID)
		if err := r.Store.Delete(ctx, key); err != nil {
			r.Logger.Error("registry: unregister failed", "name", name, "uuid", item.UUID, "err", err)
			return fmt.Errorf("%w: unregister name=%s uuid=%s: %v", ErrBackend, name, item.UUID, err)
		}
	}
	return nil
}

// Lookup resolves name to its deduplicated item set. On an empty or
// missing subtree it falls back one level to the wildcard name
// ("a.b.c.d" -> "*.b.c.d"), per the Open Question decision recorded in
// DESIGN.md: an empty item set is treated identically to a missing
// subtree for fallback purposes.
func (r *Registry) Lookup(ctx context.Context, name string) (DomainDetail, error) {
	if !r.Supports(name) {
		return DomainDetail{Name: name}, nil
	}

	detail, err := r.lookupExact(ctx, name)
	if err != nil {
		return DomainDetail{}, err
	}
	if len(detail.Items) > 0 {
		return detail, nil
	}

	fallbackName, ok := wildcardFallbackName(name)
	if !ok {
		return detail, nil
	}
	fallbackDetail, err := r.lookupExact(ctx, fallbackName)
	if err != nil {
		return DomainDetail{}, err
	}
	if len(fallbackDetail.Items) == 0 {
		return detail, nil
	}
	return DomainDetail{Name: name, Items: fallbackDetail.Items}, nil
}

// LookupExact resolves name to its item set without wildcard fallback.
// Used by callers that must act on exactly the name given, such as
// unregistering: falling back to a wildcard's items there would delete
// keys under the wrong name entirely.
func (r *Registry) LookupExact(ctx context.Context, name string) (DomainDetail, error) {
	if !r.Supports(name) {
		return DomainDetail{Name: name}, nil
	}
	return r.lookupExact(ctx, name)
}

// lookupExact reads name's subtree without applying wildcard fallback.
func (r *Registry) lookupExact(ctx context.Context, name string) (DomainDetail, error) {
	leaves, err := r.Store.Read(ctx, subtreeKey(r.BasePath, name), true)
	if err != nil {
		r.Logger.Error("registry: lookup failed", "name", name, "err", err)
		return DomainDetail{}, fmt.Errorf("%w: lookup name=%s: %v", ErrBackend, name, err)
	}

	items := make([]DomainItem, 0, len(leaves))
	for _, leaf := range leaves {
		leafName, ok := decodeName(r.BasePath, leaf.Key)
		if !ok || leafName != name {
			continue
		}
		var item DomainItem
		if err := json.Unmarshal(leaf.Value, &item); err != nil {
			r.Logger.Warn("registry: skipping malformed item", "name", name, "key", leaf.Key, "err", err)
			continue
		}
		items = append(items, item)
	}
	return newDomainDetail(name, items), nil
}

// LookAll reads the subtree rooted at name (or the registry's base path
// if name is empty) and re-aggregates every leaf into a list of
// DomainDetail grouped by decoded name. Used by the admin surface and
// diagnostics only; not on the DNS query path.
func (r *Registry) LookAll(ctx context.Context, name string) ([]DomainDetail, error) {
	root := r.BasePath
	if name != "" {
		root = subtreeKey(r.BasePath, name)
	}

	leaves, err := r.Store.Read(ctx, root, true)
	if err != nil {
		r.Logger.Error("registry: lookall failed", "name", name, "err", err)
		return nil, fmt.Errorf("%w: lookall name=%s: %v", ErrBackend, name, err)
	}

	byName := make(map[string][]DomainItem)
	for _, leaf := range leaves {
		leafName, ok := decodeName(r.BasePath, leaf.Key)
		if !ok {
			continue
		}
		var item DomainItem
		if err := json.Unmarshal(leaf.Value, &item); err != nil {
			r.Logger.Warn("registry: skipping malformed item", "key", leaf.Key, "err", err)
			continue
		}
		byName[leafName] = append(byName[leafName], item)
	}

	names := make([]string, 0, len(byName))
	for n := range byName {
		names = append(names, n)
	}
	sort.Strings(names)

	out := make([]DomainDetail, 0, len(names))
	for _, n := range names {
		out = append(out, newDomainDetail(n, byName[n]))
	}
	return out, nil
}
