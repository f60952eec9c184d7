package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/dnswall-io/dnswall/internal/resolvers"
)

// DefaultQueryTimeout bounds how long a single DNS query may take
// before the handler answers SERVFAIL, regardless of how slow the
// resolver chain's backend I/O turns out to be.
const DefaultQueryTimeout = 4 * time.Second

// DefaultStopTimeout bounds how long Run waits for in-flight queries
// to finish once its context is cancelled.
const DefaultStopTimeout = 5 * time.Second

// Runner owns the DNS front-end's UDP and TCP listeners: it binds both
// at the same address, drives every query through resolver, and stops
// them within DefaultStopTimeout once ctx is cancelled.
type Runner struct {
	logger *slog.Logger
}

// NewRunner creates a new server runner with the given logger.
func NewRunner(logger *slog.Logger) *Runner {
	return &Runner{logger: logger}
}

// Run starts UDP and TCP listeners at addr, serving every query
// through resolver until ctx is done or either listener fails, then
// gracefully stops both.
func (r *Runner) Run(ctx context.Context, addr string, resolver resolvers.Resolver) error {
	h := &QueryHandler{Logger: r.logger, Resolver: resolver, Timeout: DefaultQueryTimeout}

	udp := &UDPServer{Logger: r.logger, Handler: h}
	tcp := &TCPServer{Logger: r.logger, Handler: h}

	if r.logger != nil {
		r.logger.Info("dns listening", "addr", addr)
	}

	errCh := make(chan error, 2)
	go func() { errCh <- udp.Run(ctx, addr) }()
	go func() { errCh <- tcp.Run(ctx, addr) }()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-errCh:
		runErr = err
	}

	_ = udp.Stop(DefaultStopTimeout)
	_ = tcp.Stop(DefaultStopTimeout)
	return runErr
}
