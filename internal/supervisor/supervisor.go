// Package supervisor wraps a long-running function with bounded
// exponential-backoff retry, so a supervised loop recovers from
// transient failures without operator intervention.
package supervisor

import (
	"context"
	"log/slog"
	"time"
)

const (
	// DefaultMinBackoff is the first retry delay after a failure.
	DefaultMinBackoff = 2 * time.Second
	// DefaultMaxBackoff caps the retry delay; reaching it resets the
	// next delay back to DefaultMinBackoff.
	DefaultMaxBackoff = 64 * time.Second
)

// Supervisor repeatedly invokes Func until ctx is cancelled or Func
// returns nil. Func is expected to run forever on the happy path (e.g. a
// reconcile loop); every error return triggers a backoff sleep before
// Func is called again.
type Supervisor struct {
	Min    time.Duration
	Max    time.Duration
	Func   func(ctx context.Context) error
	Logger *slog.Logger
}

// New builds a Supervisor with the default backoff bounds.
func New(fn func(ctx context.Context) error, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{Min: DefaultMinBackoff, Max: DefaultMaxBackoff, Func: fn, Logger: logger}
}

// Run calls Func in a loop until ctx is cancelled or Func returns nil.
// On any error it
// sleeps for the current retry delay, then doubles the delay for next
// time, wrapping back to Min once it exceeds Max: 2,4,8,16,32,64,2,...
func (s *Supervisor) Run(ctx context.Context) {
	retry := s.Min
	for {
		if ctx.Err() != nil {
			return
		}
		err := s.Func(ctx)
		if err == nil {
			return
		}
		if ctx.Err() != nil {
			return
		}
		s.Logger.Error("supervisor: function failed, backing off", "err", err, "retry_in", retry)

		select {
		case <-ctx.Done():
			return
		case <-time.After(retry):
		}

		next := retry * 2
		if next > s.Max {
			next = s.Min
		}
		retry = next
	}
}
