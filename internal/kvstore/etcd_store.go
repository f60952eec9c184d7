package kvstore

import (
	"context"
	"fmt"
	"time"

	"github.com/dnswall-io/dnswall/internal/registry"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// DefaultDialTimeout bounds how long NewEtcdStore waits for the initial
// connection to any endpoint before giving up.
const DefaultDialTimeout = 5 * time.Second

// EtcdStore implements registry.Store over a real etcd cluster.
// Reconnection to any surviving endpoint is handled by the underlying
// clientv3.Client, which balances requests across Endpoints and
// retries on a lost connection automatically.
type EtcdStore struct {
	client *clientv3.Client
}

// NewEtcdStore dials every host in cfg.Hosts. The returned store is
// ready for use as soon as this call returns; connection loss
// afterwards is handled transparently by the client.
func NewEtcdStore(cfg BackendConfig) (*EtcdStore, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Hosts,
		DialTimeout: DefaultDialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: dialing etcd endpoints %v: %v", registry.ErrBackend, cfg.Hosts, err)
	}
	return &EtcdStore{client: cli}, nil
}

// Close releases the underlying etcd client connection.
func (s *EtcdStore) Close() error {
	return s.client.Close()
}

// Set writes value at key. If ttl is positive, the key is attached to
// a fresh lease of that duration; a heartbeat is simply calling Set
// again before the lease expires.
func (s *EtcdStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	opts := []clientv3.OpOption{}
	if ttl > 0 {
		lease, err := s.client.Grant(ctx, int64(ttl.Seconds()))
		if err != nil {
			return fmt.Errorf("%w: granting lease for %s: %v", registry.ErrBackend, key, err)
		}
		opts = append(opts, clientv3.WithLease(lease.ID))
	}
	if _, err := s.client.Put(ctx, key, string(value), opts...); err != nil {
		return fmt.Errorf("%w: put %s: %v", registry.ErrBackend, key, err)
	}
	return nil
}

// Delete removes key. A key that does not exist is not an error: etcd
// v3's Delete succeeds silently in that case, which matches the
// "unregister is idempotent" requirement without any extra handling.
func (s *EtcdStore) Delete(ctx context.Context, key string) error {
	if _, err := s.client.Delete(ctx, key); err != nil {
		return fmt.Errorf("%w: delete %s: %v", registry.ErrBackend, key, err)
	}
	return nil
}

// Read returns every leaf at key, or (recursively) under key as a
// prefix. A missing key yields (nil, nil), not an error.
func (s *EtcdStore) Read(ctx context.Context, key string, recursive bool) ([]registry.Leaf, error) {
	opts := []clientv3.OpOption{}
	if recursive {
		opts = append(opts, clientv3.WithPrefix())
	}
	resp, err := s.client.Get(ctx, key, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", registry.ErrBackend, key, err)
	}

	leaves := make([]registry.Leaf, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		leaves = append(leaves, registry.Leaf{
			Key:        string(kv.Key),
			Value:      kv.Value,
			TTLSeconds: s.leaseTTL(ctx, kv.Lease),
		})
	}
	return leaves, nil
}

// leaseTTL best-effort resolves the remaining TTL of a lease ID. It
// returns -1 (unknown/no lease) rather than propagating an error,
// since TTL metadata is informational only for Registry callers.
func (s *EtcdStore) leaseTTL(ctx context.Context, leaseID int64) int64 {
	if leaseID == 0 {
		return -1
	}
	resp, err := s.client.TimeToLive(ctx, clientv3.LeaseID(leaseID))
	if err != nil || resp.TTL < 0 {
		return -1
	}
	return resp.TTL
}
