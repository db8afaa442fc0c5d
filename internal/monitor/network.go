package monitor

import (
	"context"
	"dropfiles/internal/logger"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Prober reports whether the network is currently usable.
type Prober func(ctx context.Context) bool

// DialProber considers the network up when a TCP connection to addr succeeds.
func DialProber(addr string, timeout time.Duration) Prober {
	return func(ctx context.Context) bool {
		dialer := net.Dialer{Timeout: timeout}
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			logger.Log.Debug("network probe failed",
				zap.String("addr", addr),
				zap.Error(err))
			return false
		}

		_ = conn.Close()
		return true
	}
}

// NetworkMonitor probes reachability in the background and notifies only when
// the connected state flips.
type NetworkMonitor struct {
	edge
	probe    Prober
	interval time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func NewNetworkMonitor(probe Prober, interval time.Duration) *NetworkMonitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}

	return &NetworkMonitor{
		probe:    probe,
		interval: interval,
	}
}

func (m *NetworkMonitor) Current() bool {
	return m.get()
}

// Check probes once, synchronously, and records the result.
func (m *NetworkMonitor) Check(ctx context.Context) bool {
	connected := m.probe(ctx)
	if m.set(connected) {
		state := "disconnected"
		if connected {
			state = "connected"
		}
		logger.Log.Info("network status changed",
			zap.String("status", state))
	}

	return connected
}

func (m *NetworkMonitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	m.running = true
	m.stopCh = make(chan struct{})

	m.wg.Add(1)
	go m.run(ctx, m.stopCh)
}

func (m *NetworkMonitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}

	m.running = false
	close(m.stopCh)
	m.mu.Unlock()

	m.wg.Wait()
}

func (m *NetworkMonitor) run(ctx context.Context, stopCh <-chan struct{}) {
	defer m.wg.Done()

	m.Check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}
