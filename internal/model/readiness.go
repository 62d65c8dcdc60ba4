package model

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// State is the readiness state of one external model service.
type State int32

const (
	// StateLoading - the service has not yet reported healthy.
	StateLoading State = iota
	// StateReady - the service reported healthy.
	StateReady
	// StateFailed - probing gave up; the service is treated as unavailable.
	StateFailed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// HealthChecker probes one model service. Implemented by the model clients.
type HealthChecker interface {
	Healthy(ctx context.Context) error
}

// Readiness holds the readiness state of one named model service.
type Readiness struct {
	name  string
	state atomic.Int32
}

// NewReadiness creates a readiness tracker in the loading state.
func NewReadiness(name string) *Readiness {
	return &Readiness{name: name}
}

// Name returns the service name.
func (r *Readiness) Name() string { return r.name }

// State returns the current readiness state.
func (r *Readiness) State() State { return State(r.state.Load()) }

// Ready reports whether the service is usable.
func (r *Readiness) Ready() bool { return r.State() == StateReady }

// SetState records a state transition.
func (r *Readiness) SetState(s State) { r.state.Store(int32(s)) }

// Prober drives the background health probing of all model services.
type Prober struct {
	interval    time.Duration
	maxAttempts int
	logger      *slog.Logger

	services map[*Readiness]HealthChecker
	wg       sync.WaitGroup
}

// NewProber creates a prober. maxAttempts bounds how long a service may stay
// in loading before it is marked failed; zero means probe forever.
func NewProber(interval time.Duration, maxAttempts int, logger *slog.Logger) *Prober {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Prober{
		interval:    interval,
		maxAttempts: maxAttempts,
		logger:      logger,
		services:    make(map[*Readiness]HealthChecker),
	}
}

// Register adds a service to probe. Must be called before Start.
func (p *Prober) Register(r *Readiness, checker HealthChecker) {
	p.services[r] = checker
}

// Start launches one probing goroutine per registered service. Probing stops
// when the context is cancelled or the service reaches a terminal state.
func (p *Prober) Start(ctx context.Context) {
	for r, checker := range p.services {
		p.wg.Add(1)
		go func(r *Readiness, checker HealthChecker) {
			defer p.wg.Done()
			p.probe(ctx, r, checker)
		}(r, checker)
	}
}

// Wait blocks until all probing goroutines have exited.
func (p *Prober) Wait() {
	p.wg.Wait()
}

func (p *Prober) probe(ctx context.Context, r *Readiness, checker HealthChecker) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	attempts := 0
	for {
		probeCtx, cancel := context.WithTimeout(ctx, p.interval)
		err := checker.Healthy(probeCtx)
		cancel()

		if err == nil {
			r.SetState(StateReady)
			p.logger.Info("Model service ready",
				slog.String("service", r.name),
				slog.Int("attempts", attempts+1),
			)
			return
		}

		attempts++
		p.logger.Debug("Model service not ready yet",
			slog.String("service", r.name),
			slog.Int("attempt", attempts),
			slog.String("error", err.Error()),
		)

		if p.maxAttempts > 0 && attempts >= p.maxAttempts {
			r.SetState(StateFailed)
			p.logger.Warn("Model service marked failed, degraded behavior active",
				slog.String("service", r.name),
				slog.Int("attempts", attempts),
				slog.String("error", err.Error()),
			)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
