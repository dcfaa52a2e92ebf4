package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/optiprice/internal/domain"
)

// DefaultProbeTimeout bounds the single availability check.
const DefaultProbeTimeout = 2000 * time.Millisecond

// Pinger checks whether the matching service answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnectivityProbe resolves the matching service's availability once per
// process. The state starts as checking and moves to connected or
// disconnected after the first Run; it never changes again.
type ConnectivityProbe struct {
	pinger  Pinger
	bus     domain.SignalBus
	timeout time.Duration
	logger  *slog.Logger

	once  sync.Once
	mu    sync.RWMutex
	state domain.ConnectivityState
}

// NewConnectivityProbe creates a probe. bus may be nil, in which case the
// resolved state is only logged. A non-positive timeout uses
// DefaultProbeTimeout.
func NewConnectivityProbe(pinger Pinger, bus domain.SignalBus, timeout time.Duration, logger *slog.Logger) *ConnectivityProbe {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &ConnectivityProbe{
		pinger:  pinger,
		bus:     bus,
		timeout: timeout,
		logger:  logger.With(slog.String("component", "connectivity")),
		state:   domain.ConnectivityChecking,
	}
}

// State returns the current connectivity state.
func (p *ConnectivityProbe) State() domain.ConnectivityState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Run performs the probe on its first call and returns the resolved state.
// Later calls return the stored state without touching the network.
func (p *ConnectivityProbe) Run(ctx context.Context) domain.ConnectivityState {
	p.once.Do(func() { p.probe(ctx) })
	return p.State()
}

func (p *ConnectivityProbe) probe(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	err := p.pinger.Ping(pingCtx)

	state := domain.ConnectivityConnected
	if err != nil {
		state = domain.ConnectivityDisconnected
		p.logger.WarnContext(ctx, "matching service unavailable, discovery will use simulated mode",
			slog.String("error", err.Error()),
			slog.Duration("elapsed", time.Since(start)),
		)
	} else {
		p.logger.InfoContext(ctx, "matching service connected",
			slog.Duration("elapsed", time.Since(start)),
		)
	}

	p.mu.Lock()
	p.state = state
	p.mu.Unlock()

	if p.bus == nil {
		return
	}
	evt, _ := json.Marshal(map[string]any{
		"event":      "connectivity",
		"state":      state,
		"checked_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
	if pubErr := p.bus.Publish(ctx, domain.ChannelConnectivity, evt); pubErr != nil {
		p.logger.WarnContext(ctx, "connectivity: publish state failed",
			slog.String("error", pubErr.Error()),
		)
	}
}
