package connectivity

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State is the latest-known network reachability.
type State struct {
	IsOnline   bool
	IsChecking bool
	LastCheck  time.Time
	LastError  string
}

// Monitor tracks online/offline state through passive signals and
// active probes. Exactly one Monitor exists per running client; it is
// the only writer of its state.
type Monitor struct {
	log      logrus.FieldLogger
	interval time.Duration
	client   *http.Client

	mu        sync.Mutex
	probeURL  string
	state     State
	listeners []func(bool)

	done chan struct{}
	wg   sync.WaitGroup
}

// NewMonitor creates a monitor probing probeURL. The initial state is
// optimistic: online until a probe or passive signal says otherwise.
func NewMonitor(
	log logrus.FieldLogger,
	probeURL string,
	interval, timeout time.Duration,
) *Monitor {
	return &Monitor{
		log:      log.WithField("component", "connectivity"),
		probeURL: probeURL,
		interval: interval,
		client:   &http.Client{Timeout: timeout},
		state:    State{IsOnline: true},
		done:     make(chan struct{}),
	}
}

// IsOnline returns the latest-known reachability without probing.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state.IsOnline
}

// State returns a copy of the full connectivity state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

// SetProbeURL changes the endpoint hit by active probes.
func (m *Monitor) SetProbeURL(probeURL string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.probeURL = probeURL
}

// OnChange registers a listener invoked on every online/offline
// transition. Listeners run on the caller's goroutine after the state
// change is committed.
func (m *Monitor) OnChange(fn func(online bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.listeners = append(m.listeners, fn)
}

// SetOnline injects a passive connectivity signal. The state updates
// immediately, without a probe.
func (m *Monitor) SetOnline(online bool) {
	m.update(online, "")
}

// CheckNow issues an active probe and returns the resulting state. Any
// HTTP response, whatever its status, counts as reachable; only a
// transport failure counts as unreachable. Probe failures are recorded,
// never returned as errors.
func (m *Monitor) CheckNow(ctx context.Context) bool {
	m.mu.Lock()
	probeURL := m.probeURL
	m.state.IsChecking = true
	m.mu.Unlock()

	online, errMsg := m.probe(ctx, probeURL)

	m.update(online, errMsg)

	return online
}

func (m *Monitor) probe(
	ctx context.Context, probeURL string,
) (bool, string) {
	if probeURL == "" {
		return false, "no probe url configured"
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodHead, probeURL, nil,
	)
	if err != nil {
		return false, err.Error()
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return false, err.Error()
	}
	defer func() { _ = resp.Body.Close() }()

	// A response of any status means the network path works.
	return true, ""
}

// update commits a state change and fires listeners on transitions.
func (m *Monitor) update(online bool, errMsg string) {
	m.mu.Lock()

	changed := m.state.IsOnline != online

	m.state.IsOnline = online
	m.state.IsChecking = false
	m.state.LastCheck = time.Now()
	m.state.LastError = errMsg

	var listeners []func(bool)
	if changed {
		listeners = make([]func(bool), len(m.listeners))
		copy(listeners, m.listeners)
	}

	m.mu.Unlock()

	if changed {
		m.log.WithField("online", online).Info("Connectivity changed")

		for _, fn := range listeners {
			fn(online)
		}
	}
}

// Start launches periodic background probing.
func (m *Monitor) Start(ctx context.Context) error {
	m.wg.Add(1)

	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.CheckNow(ctx)
			case <-ctx.Done():
				return
			case <-m.done:
				return
			}
		}
	}()

	m.log.WithField("interval", m.interval).Info("Connectivity monitor started")

	return nil
}

// Stop terminates background probing.
func (m *Monitor) Stop() error {
	close(m.done)
	m.wg.Wait()

	return nil
}
