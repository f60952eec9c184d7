package resolvers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnswall-io/dnswall/internal/dns"
	"github.com/dnswall-io/dnswall/internal/registry"
)

// memStore is a minimal in-memory registry.Store, mirroring the one
// internal/registry's own tests use.
type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore { return &memStore{data: make(map[string][]byte)} }

func (m *memStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memStore) Read(_ context.Context, key string, _ bool) ([]registry.Leaf, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []registry.Leaf
	for k, v := range m.data {
		if len(k) >= len(key) && k[:len(key)] == key {
			out = append(out, registry.Leaf{Key: k, Value: v, TTLSeconds: -1})
		}
	}
	return out, nil
}

func aQuestion(name string, qtype dns.RecordType) dns.Packet {
	return dns.Packet{
		Header:    dns.Header{ID: 42, Flags: dns.RDFlag},
		Questions: []dns.Question{{Name: name, Type: uint16(qtype), Class: uint16(dns.ClassIN)}},
	}
}

func TestRegistryResolverDeclinesUnsupportedType(t *testing.T) {
	reg := registry.New(newMemStore(), "", nil, nil)
	r := NewRegistryResolver(reg)

	req := aQuestion("api.svc.local", dns.TypeMX)
	_, err := r.Resolve(context.Background(), req, nil)
	assert.Error(t, err)
}

func TestRegistryResolverDeclinesUnsupportedName(t *testing.T) {
	reg := registry.New(newMemStore(), "", []string{"svc.local"}, nil)
	r := NewRegistryResolver(reg)

	req := aQuestion("api.other.tld", dns.TypeA)
	_, err := r.Resolve(context.Background(), req, nil)
	assert.Error(t, err)
}

func TestRegistryResolverAnswersRegisteredName(t *testing.T) {
	store := newMemStore()
	reg := registry.New(store, "", nil, nil)
	item, err := registry.NewDomainItem("cid-1", "10.0.0.5", "")
	require.NoError(t, err)
	require.NoError(t, reg.Register(context.Background(), "api.svc.local", item, time.Minute))

	r := NewRegistryResolver(reg)
	req := aQuestion("api.svc.local", dns.TypeA)
	res, err := r.Resolve(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, "registry", res.Source)

	pkt, err := dns.ParsePacket(res.ResponseBytes)
	require.NoError(t, err)
	require.Len(t, pkt.Answers, 1)
	ip, ok := pkt.Answers[0].IPv4()
	require.True(t, ok)
	assert.Equal(t, "10.0.0.5", ip)
}

func TestRegistryResolverEmptyAnswerIsValid(t *testing.T) {
	reg := registry.New(newMemStore(), "", nil, nil)
	r := NewRegistryResolver(reg)

	req := aQuestion("nothing.registered.tld", dns.TypeA)
	res, err := r.Resolve(context.Background(), req, nil)
	require.NoError(t, err)

	pkt, err := dns.ParsePacket(res.ResponseBytes)
	require.NoError(t, err)
	assert.Empty(t, pkt.Answers)
}

func TestRegistryResolverShufflesAcrossManyLookups(t *testing.T) {
	store := newMemStore()
	reg := registry.New(store, "", nil, nil)
	item1, err := registry.NewDomainItem("cid-1", "10.0.0.5", "")
	require.NoError(t, err)
	item2, err := registry.NewDomainItem("cid-2", "10.0.0.6", "")
	require.NoError(t, err)
	require.NoError(t, reg.Register(context.Background(), "api.svc.local", item1, time.Minute))
	require.NoError(t, reg.Register(context.Background(), "api.svc.local", item2, time.Minute))

	r := NewRegistryResolver(reg)
	seenFirst := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		req := aQuestion("api.svc.local", dns.TypeA)
		res, err := r.Resolve(context.Background(), req, nil)
		require.NoError(t, err)
		pkt, err := dns.ParsePacket(res.ResponseBytes)
		require.NoError(t, err)
		require.Len(t, pkt.Answers, 2)
		ip, ok := pkt.Answers[0].IPv4()
		require.True(t, ok)
		seenFirst[ip] = struct{}{}
	}
	assert.Len(t, seenFirst, 2, "each address should lead at least once across repeated lookups")
}
