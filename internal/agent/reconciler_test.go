package agent

import (
	"context"
	"sync"
	"testing"
	"time"

	dockerevents "github.com/docker/docker/api/types/events"
	"github.com/dnswall-io/dnswall/internal/containersrc"
	"github.com/dnswall-io/dnswall/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

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

func (m *memStore) Read(_ context.Context, key string, recursive bool) ([]registry.Leaf, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []registry.Leaf
	prefix := key + "/"
	for k, v := range m.data {
		if k == key || (len(k) > len(prefix) && k[:len(prefix)] == prefix) {
			out = append(out, registry.Leaf{Key: k, Value: v, TTLSeconds: -1})
		}
	}
	return out, nil
}

type fakeRuntime struct {
	containers []containersrc.ContainerInfo
	listErr    error
	listCalls  int
}

func (f *fakeRuntime) ListRunning(context.Context) ([]containersrc.ContainerInfo, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.containers, nil
}

func (f *fakeRuntime) Events(context.Context) (<-chan dockerevents.Message, <-chan error) {
	evCh := make(chan dockerevents.Message)
	errCh := make(chan error)
	return evCh, errCh
}

func TestHeartbeatAll_RegistersQualifyingContainers(t *testing.T) {
	store := newMemStore()
	reg := registry.New(store, "/dnswall", nil, nil)
	runtime := &fakeRuntime{containers: []containersrc.ContainerInfo{
		{ID: "c1", Env: []string{"DOMAIN_NAME=api.svc.local", "DOMAIN_IPV4_ADDR=10.0.0.5"}},
		{ID: "c2", Env: []string{"FOO=bar"}},
	}}
	r := New(runtime, reg, nil)

	require.NoError(t, r.heartbeatAll(context.Background()))

	detail, err := reg.Lookup(context.Background(), "api.svc.local")
	require.NoError(t, err)
	require.Len(t, detail.Items, 1)
	assert.Equal(t, "c1", detail.Items[0].UUID)
}

func TestHeartbeatAll_SkipsUnsupportedNameWithoutAborting(t *testing.T) {
	store := newMemStore()
	reg := registry.New(store, "/dnswall", []string{"svc.local"}, nil)
	runtime := &fakeRuntime{containers: []containersrc.ContainerInfo{
		{ID: "c1", Env: []string{"DOMAIN_NAME=api.other.com", "DOMAIN_IPV4_ADDR=10.0.0.5"}},
		{ID: "c2", Env: []string{"DOMAIN_NAME=api.svc.local", "DOMAIN_IPV4_ADDR=10.0.0.6"}},
	}}
	r := New(runtime, reg, nil)

	require.NoError(t, r.heartbeatAll(context.Background()))

	detail, err := reg.Lookup(context.Background(), "api.svc.local")
	require.NoError(t, err)
	require.Len(t, detail.Items, 1)
	assert.Equal(t, "c2", detail.Items[0].UUID)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	store := newMemStore()
	reg := registry.New(store, "/dnswall", nil, nil)
	runtime := &fakeRuntime{}
	r := New(runtime, reg, nil)
	r.Interval = 5 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context deadline")
	}
	assert.GreaterOrEqual(t, runtime.listCalls, 1)
}
