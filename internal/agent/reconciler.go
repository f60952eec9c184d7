package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/docker/docker/api/types/events"
	"github.com/dnswall-io/dnswall/internal/containersrc"
	"github.com/dnswall-io/dnswall/internal/registry"
	"github.com/dnswall-io/dnswall/internal/supervisor"
)

// DefaultInterval is the spacing between reconcile passes.
const DefaultInterval = 30 * time.Second

// Runtime is the container-runtime contract the Reconciler depends on.
// containersrc.Source implements it against a real Docker daemon;
// tests substitute a fake.
type Runtime interface {
	ListRunning(ctx context.Context) ([]containersrc.ContainerInfo, error)
	Events(ctx context.Context) (<-chan events.Message, <-chan error)
}

// Reconciler runs heartbeatAll once immediately, then repeats it every
// Interval under a Supervisor. It additionally listens to the
// runtime's event stream as an out-of-band trigger for an extra pass;
// event delivery failures never block or skip a scheduled pass, and
// the ticker alone is relied upon for correctness per spec §9.
type Reconciler struct {
	Runtime  Runtime
	Registry *registry.Registry
	Logger   *slog.Logger
	Interval time.Duration
}

// New builds a Reconciler with the default 30s interval.
func New(runtime Runtime, reg *registry.Registry, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{Runtime: runtime, Registry: reg, Logger: logger, Interval: DefaultInterval}
}

// Run blocks until ctx is cancelled, supervising the reconcile loop
// with bounded exponential backoff on BackendError-class failures.
func (r *Reconciler) Run(ctx context.Context) {
	supervisor.New(r.loop, r.Logger).Run(ctx)
}

func (r *Reconciler) interval() time.Duration {
	if r.Interval > 0 {
		return r.Interval
	}
	return DefaultInterval
}

// loop runs heartbeatAll immediately, then on every tick and every
// runtime event, until ctx is cancelled (returns nil) or heartbeatAll
// reports an unrecoverable backend failure (returns the error, which
// the Supervisor retries after backoff).
func (r *Reconciler) loop(ctx context.Context) error {
	if err := r.heartbeatAll(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(r.interval())
	defer ticker.Stop()

	var eventsCh <-chan events.Message
	var errCh <-chan error
	if r.Runtime != nil {
		eventsCh, errCh = r.Runtime.Events(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.heartbeatAll(ctx); err != nil {
				return err
			}
		case _, ok := <-eventsCh:
			if !ok {
				eventsCh = nil
				continue
			}
			if err := r.heartbeatAll(ctx); err != nil {
				return err
			}
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				r.Logger.Warn("agent: event stream error, relying on scheduled pass", "err", err)
			}
		}
	}
}

// heartbeatAll enumerates running containers and registers one
// DomainItem per qualifying container. Per-container projection or
// validation failures (BackendValueError-class) are logged and
// swallowed; they never abort the pass. A KV I/O failure
// (BackendError-class) propagates to the caller/Supervisor.
func (r *Reconciler) heartbeatAll(ctx context.Context) error {
	containers, err := r.Runtime.ListRunning(ctx)
	if err != nil {
		return fmt.Errorf("agent: listing containers: %w", err)
	}
	logDiagnostics(r.Logger, len(containers))

	for _, c := range containers {
		proj, ok := Project(c)
		if !ok {
			continue
		}
		if err := r.Registry.Register(ctx, proj.Names, proj.Item, DefaultTTL*time.Second); err != nil {
			if errors.Is(err, registry.ErrBackendValue) {
				r.Logger.Warn("agent: skipping container, invalid registration", "container", c.ID, "err", err)
				continue
			}
			return fmt.Errorf("agent: registering container %s: %w", c.ID, err)
		}
	}
	return nil
}
