// Package netmon normalizes platform connectivity signals into a single
// online/offline/strength state and raises reconnect events the caches
// and the sync orchestrator subscribe to.
package netmon

import (
	"context"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"
)

// ConnectionType is the kind of link currently carrying traffic.
type ConnectionType string

const (
	TypeWifi     ConnectionType = "wifi"
	TypeCellular ConnectionType = "cellular"
	TypeEthernet ConnectionType = "ethernet"
	TypeUnknown  ConnectionType = "unknown"
	TypeNone     ConnectionType = "none"
)

// Reachability is a tri-state: a link can be up while the server is not
// actually reachable, and before the first probe we simply don't know.
type Reachability int

const (
	ReachabilityUnknown Reachability = iota
	ReachabilityYes
	ReachabilityNo
)

// ConnectivityState is the normalized connectivity snapshot. Transient;
// recomputed on every probe and never persisted.
type ConnectivityState struct {
	IsConnected         bool
	InternetReachable   Reachability
	ConnectionType      ConnectionType
	HasStrongConnection bool
	LastChecked         time.Time
}

// IsOnline reports whether the state counts as usable connectivity.
func (s ConnectivityState) IsOnline() bool {
	return s.IsConnected && s.InternetReachable != ReachabilityNo
}

// IsOffline is the inverse of IsOnline.
func (s ConnectivityState) IsOffline() bool {
	return !s.IsOnline()
}

// Prober is the health-check slice of the API client.
type Prober interface {
	Health(ctx context.Context) error
}

// StaleAfter is how old server-derived cached data may be before a
// reconnect forces a refresh instead of silently serving it.
const StaleAfter = 30 * time.Second

const (
	defaultProbeTimeout = 3 * time.Second
	defaultPollInterval = 15 * time.Second
)

// Options tunes the monitor. Zero values select the defaults.
type Options struct {
	// ProbeTimeout bounds the health request. Clamped to 3s: the probe
	// runs on interactive paths and must stay short.
	ProbeTimeout time.Duration
	// PollInterval is the background watcher's probe period.
	PollInterval time.Duration
	// Interfaces enumerates network interfaces; replaced in tests.
	Interfaces func() ([]net.Interface, error)
}

// Monitor watches connectivity. It never returns errors: every
// underlying failure maps to a pessimistic offline state.
type Monitor struct {
	probe        Prober
	log          *slog.Logger
	probeTimeout time.Duration
	pollInterval time.Duration
	interfaces   func() ([]net.Interface, error)

	mu           sync.Mutex
	state        ConnectivityState
	subs         map[int]func(ConnectivityState)
	nextSub      int
	hooks        []func(downFor time.Duration)
	offlineSince time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

// New creates a Monitor around the given health prober.
func New(probe Prober, log *slog.Logger, opts Options) *Monitor {
	pt := opts.ProbeTimeout
	if pt <= 0 || pt > defaultProbeTimeout {
		pt = defaultProbeTimeout
	}
	pi := opts.PollInterval
	if pi <= 0 {
		pi = defaultPollInterval
	}
	ifaces := opts.Interfaces
	if ifaces == nil {
		ifaces = net.Interfaces
	}
	return &Monitor{
		probe:        probe,
		log:          log,
		probeTimeout: pt,
		pollInterval: pi,
		interfaces:   ifaces,
		subs:         make(map[int]func(ConnectivityState)),
		state: ConnectivityState{
			InternetReachable: ReachabilityUnknown,
			ConnectionType:    TypeUnknown,
		},
		stop: make(chan struct{}),
	}
}

// Subscribe registers for connectivity changes. The callback fires once
// immediately with the current state, then on every detected
// transition, in detection order. The returned func cancels the
// subscription.
func (m *Monitor) Subscribe(fn func(ConnectivityState)) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	cur := m.state
	m.mu.Unlock()

	fn(cur)

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// OnReconnect registers a hook that runs after every offline→online
// transition, receiving how long connectivity had been down. Caches use
// it to refresh data older than StaleAfter.
func (m *Monitor) OnReconnect(hook func(downFor time.Duration)) {
	m.mu.Lock()
	m.hooks = append(m.hooks, hook)
	m.mu.Unlock()
}

// State returns the last computed state without probing.
func (m *Monitor) State() ConnectivityState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Probe recomputes connectivity now: link state from the interface
// table, then a bounded health request, merged into a new state.
func (m *Monitor) Probe(ctx context.Context) ConnectivityState {
	connType, connected := m.linkState()

	state := ConnectivityState{
		IsConnected:       connected,
		ConnectionType:    connType,
		InternetReachable: ReachabilityNo,
		LastChecked:       time.Now(),
	}

	if connected {
		pctx, cancel := context.WithTimeout(ctx, m.probeTimeout)
		if err := m.probe.Health(pctx); err == nil {
			state.InternetReachable = ReachabilityYes
		}
		cancel()
	}

	state.HasStrongConnection = state.IsConnected &&
		state.InternetReachable == ReachabilityYes &&
		(state.ConnectionType == TypeWifi || state.ConnectionType == TypeEthernet)

	m.setState(state)
	return state
}

// ShouldWorkOffline answers the one-shot "is the network usable right
// now" question: true when the health probe errors, times out, or
// returns non-2xx.
func (m *Monitor) ShouldWorkOffline(ctx context.Context) bool {
	pctx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()
	return m.probe.Health(pctx) != nil
}

// Start runs the background watcher: an immediate probe, then one every
// poll interval, until the context is done or Stop is called.
func (m *Monitor) Start(ctx context.Context) {
	go func() {
		m.Probe(ctx)
		ticker := time.NewTicker(m.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Probe(ctx)
			case <-ctx.Done():
				return
			case <-m.stop:
				return
			}
		}
	}()
}

// Stop halts the background watcher. Idempotent.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// linkState classifies the best available up, non-loopback interface.
// Any enumeration failure maps to disconnected.
func (m *Monitor) linkState() (ConnectionType, bool) {
	ifaces, err := m.interfaces()
	if err != nil {
		m.log.Warn("enumerating interfaces", "error", err)
		return TypeNone, false
	}

	best := TypeNone
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		t := classifyInterface(iface.Name)
		if rank(t) > rank(best) {
			best = t
		}
	}
	return best, best != TypeNone
}

// classifyInterface guesses the link kind from the interface name.
func classifyInterface(name string) ConnectionType {
	n := strings.ToLower(name)
	switch {
	case strings.HasPrefix(n, "wl"), strings.HasPrefix(n, "wifi"), strings.HasPrefix(n, "ath"):
		return TypeWifi
	case strings.HasPrefix(n, "en"), strings.HasPrefix(n, "eth"):
		return TypeEthernet
	case strings.HasPrefix(n, "wwan"), strings.HasPrefix(n, "rmnet"), strings.HasPrefix(n, "pdp"):
		return TypeCellular
	default:
		return TypeUnknown
	}
}

func rank(t ConnectionType) int {
	switch t {
	case TypeEthernet:
		return 4
	case TypeWifi:
		return 3
	case TypeCellular:
		return 2
	case TypeUnknown:
		return 1
	default:
		return 0
	}
}

// setState stores the new state, notifies subscribers, and runs
// reconnect hooks on an offline→online transition.
func (m *Monitor) setState(state ConnectivityState) {
	m.mu.Lock()
	prev := m.state
	m.state = state

	wasOffline := prev.IsOffline()
	if state.IsOffline() && !wasOffline {
		m.offlineSince = time.Now()
	}

	var downFor time.Duration
	reconnected := wasOffline && state.IsOnline()
	if reconnected && !m.offlineSince.IsZero() {
		downFor = time.Since(m.offlineSince)
	}

	subs := make([]func(ConnectivityState), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	hooks := append([]func(time.Duration){}, m.hooks...)
	m.mu.Unlock()

	for _, fn := range subs {
		fn(state)
	}
	if reconnected {
		m.log.Info("connectivity restored", "down_for", downFor, "type", state.ConnectionType)
		for _, hook := range hooks {
			hook(downFor)
		}
	}
}
