package gateway

import (
	"context"
	"sync"
	"time"

	"scoreline/metrics"
	"scoreline/util/goroutine"

	"go.uber.org/zap"
)

// DefaultHeartbeatInterval is the probe cycle used when none is configured.
const DefaultHeartbeatInterval = 30 * time.Second

// Monitor probes tracked peers with pings and terminates the ones that miss
// a full cycle. Liveness flags live in the monitor's own table, keyed by peer.
type Monitor struct {
	interval time.Duration
	registry *Registry
	logger   *zap.SugaredLogger

	mu    sync.Mutex
	alive map[Peer]bool

	// probes tracks in-flight pings so one slow peer cannot hold up a cycle.
	probes sync.WaitGroup
}

// NewMonitor creates a monitor that removes dead peers from registry.
func NewMonitor(interval time.Duration, registry *Registry, logger *zap.SugaredLogger) *Monitor {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &Monitor{
		interval: interval,
		registry: registry,
		logger:   logger,
		alive:    make(map[Peer]bool),
	}
}

// Track starts monitoring p, initially alive.
func (m *Monitor) Track(p Peer) {
	m.mu.Lock()
	m.alive[p] = true
	m.mu.Unlock()
}

// Pong marks p alive again. Pongs from untracked peers are ignored.
func (m *Monitor) Pong(p Peer) {
	m.mu.Lock()
	if _, ok := m.alive[p]; ok {
		m.alive[p] = true
	}
	m.mu.Unlock()
}

// Untrack stops monitoring p.
func (m *Monitor) Untrack(p Peer) {
	m.mu.Lock()
	delete(m.alive, p)
	m.mu.Unlock()
}

// Tracked returns the number of peers under watch.
func (m *Monitor) Tracked() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.alive)
}

// Tick runs one probe cycle: peers still flagged not-alive from the previous
// cycle are terminated and removed, then every survivor is flagged not-alive
// and pinged. A silent peer therefore goes after its second tick, never the
// first. Pings are sent concurrently and Tick does not wait for them. It
// returns the number of peers terminated.
func (m *Monitor) Tick() int {
	var dead, probe []Peer

	m.mu.Lock()
	for p, ok := range m.alive {
		if !ok {
			dead = append(dead, p)
			delete(m.alive, p)
			continue
		}
		m.alive[p] = false
		probe = append(probe, p)
	}
	m.mu.Unlock()

	for _, p := range dead {
		m.logger.Infow("Terminating unresponsive connection", "conn_id", p.ID())
		p.Terminate()
		if m.registry.Remove(p) {
			metrics.LivenessTerminations.Inc()
		}
	}
	for _, p := range probe {
		goroutine.Go("liveness-ping", m.logger, &m.probes, func() {
			if err := p.Ping(); err != nil {
				m.logger.Debugw("Liveness probe failed", "conn_id", p.ID(), "error", err)
			}
		})
	}
	return len(dead)
}

// Run calls Tick every interval until ctx is cancelled, then waits for
// outstanding pings.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	defer m.probes.Wait()

	m.logger.Infow("Liveness monitor started", "interval", m.interval)
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Liveness monitor stopped")
			return
		case <-ticker.C:
			m.Tick()
		}
	}
}
