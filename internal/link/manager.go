package link

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/cydlink/internal/observability"
	"github.com/danmuck/cydlink/internal/transport"
)

// ConnState is the connection state machine over one transport.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Manager owns the transport's connect/disconnect lifecycle. State
// transition callbacks fire at most once per edge, even when several
// loops race to report the same transport failure.
type Manager struct {
	mu        sync.Mutex
	cfg       Config
	tr        transport.Transport
	state     ConnState
	stopped   bool
	listeners []func(connected bool)
	stats     *Stats
	stopCh    chan struct{}
	stopOnce  sync.Once
}

func NewManager(tr transport.Transport, cfg Config, stats *Stats) *Manager {
	if stats == nil {
		stats = NewStats()
	}
	return &Manager{
		cfg:    cfg.WithDefaults(),
		tr:     tr,
		stats:  stats,
		stopCh: make(chan struct{}),
	}
}

// OnStateChange registers a transition listener. Register before the
// retry loop starts; listeners run synchronously on the transitioning
// goroutine and must not block.
func (m *Manager) OnStateChange(fn func(connected bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

func (m *Manager) State() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Connected() bool {
	return m.State() == StateConnected
}

func (m *Manager) Endpoint() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.Endpoint
}

// Start attempts one connection. Calling it while already connected is
// a no-op and fires nothing. Returns whether the link is up.
func (m *Manager) Start() bool {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return false
	}
	if m.state == StateConnected {
		m.mu.Unlock()
		return true
	}
	m.state = StateConnecting
	endpoint := m.cfg.Endpoint
	m.stats.markAttempt()
	m.mu.Unlock()

	err := m.tr.Open(endpoint)

	m.mu.Lock()
	if m.stopped {
		// Stop raced the open; release whatever was acquired.
		m.state = StateDisconnected
		m.mu.Unlock()
		_ = m.tr.Close()
		return false
	}
	if m.state == StateConnected {
		// A concurrent Start won the race; this attempt is a no-op.
		m.mu.Unlock()
		return true
	}
	if err != nil {
		m.state = StateDisconnected
		m.mu.Unlock()
		observability.RecordConnectAttempt(false)
		log.Warn().Str("endpoint", endpoint).Err(err).Msg("link connect failed")
		return false
	}
	m.state = StateConnected
	m.stats.markConnected(time.Now())
	observability.RecordConnectAttempt(true)
	listeners := append([]func(bool){}, m.listeners...)
	m.mu.Unlock()

	log.Info().Str("endpoint", endpoint).Msg("link connected")
	for _, fn := range listeners {
		fn(true)
	}
	return true
}

// HandleFailure demotes Connected to Disconnected after a transport
// error and releases the transport. Redundant reports are no-ops.
func (m *Manager) HandleFailure(err error) {
	m.mu.Lock()
	if m.state != StateConnected {
		m.mu.Unlock()
		return
	}
	m.state = StateDisconnected
	endpoint := m.cfg.Endpoint
	listeners := append([]func(bool){}, m.listeners...)
	m.mu.Unlock()

	_ = m.tr.Close()
	observability.RecordLinkDown()
	log.Warn().Str("endpoint", endpoint).Err(err).Msg("link lost")
	for _, fn := range listeners {
		fn(false)
	}
}

// ChangeEndpoint drops any current connection and retargets the
// manager; the retry loop picks up the new endpoint.
func (m *Manager) ChangeEndpoint(endpoint string) {
	m.mu.Lock()
	if endpoint == m.cfg.Endpoint {
		m.mu.Unlock()
		return
	}
	wasConnected := m.state == StateConnected
	m.state = StateDisconnected
	m.cfg.Endpoint = endpoint
	listeners := append([]func(bool){}, m.listeners...)
	m.mu.Unlock()

	_ = m.tr.Close()
	log.Info().Str("endpoint", endpoint).Msg("link endpoint changed")
	if wasConnected {
		observability.RecordLinkDown()
		for _, fn := range listeners {
			fn(false)
		}
	}
}

// Stop is terminal: no further automatic retries, transport released.
// A disconnected notification fires only if the link was up.
func (m *Manager) Stop() {
	m.mu.Lock()
	alreadyStopped := m.stopped
	m.stopped = true
	wasConnected := m.state == StateConnected
	m.state = StateDisconnected
	listeners := append([]func(bool){}, m.listeners...)
	m.mu.Unlock()

	m.stopOnce.Do(func() { close(m.stopCh) })
	_ = m.tr.Close()
	if alreadyStopped {
		return
	}
	if wasConnected {
		observability.RecordLinkDown()
		for _, fn := range listeners {
			fn(false)
		}
	}
}

func (m *Manager) stopping() <-chan struct{} {
	return m.stopCh
}

// RunRetryLoop keeps the link up until Stop. A fixed delay separates
// attempts; exhausting a configured attempt budget doubles the delay
// and keeps going.
func (m *Manager) RunRetryLoop() {
	failures := 0
	for {
		select {
		case <-m.stopCh:
			return
		default:
		}

		if m.Connected() {
			failures = 0
			if !m.sleep(m.cfg.ReconnectDelay / 4) {
				return
			}
			continue
		}

		if m.Start() {
			failures = 0
			continue
		}
		failures++
		if m.cfg.MaxReconnectAttempts > 0 && failures == m.cfg.MaxReconnectAttempts {
			log.Warn().Int("attempts", failures).Msg("link retry budget exhausted, slowing down")
		}
		if !m.sleep(RetryDelay(m.cfg, failures)) {
			return
		}
	}
}

// sleep waits d or until Stop, reporting false on Stop.
func (m *Manager) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-m.stopCh:
		return false
	case <-timer.C:
		return true
	}
}
