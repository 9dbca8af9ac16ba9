package link

import (
	"sync/atomic"
	"time"
)

// Stats tracks link counters. Written only by the link internals;
// everything else reads a Snapshot.
type Stats struct {
	sent          atomic.Uint64
	received      atomic.Uint64
	attempts      atomic.Uint64
	lastConnected atomic.Int64
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	MessagesSent       uint64
	MessagesReceived   uint64
	ConnectionAttempts uint64
	LastConnected      time.Time
}

func NewStats() *Stats {
	return &Stats{}
}

func (s *Stats) markSent()     { s.sent.Add(1) }
func (s *Stats) markReceived() { s.received.Add(1) }

func (s *Stats) markAttempt() { s.attempts.Add(1) }

func (s *Stats) markConnected(at time.Time) {
	s.lastConnected.Store(at.UnixNano())
}

func (s *Stats) Snapshot() Snapshot {
	snap := Snapshot{
		MessagesSent:       s.sent.Load(),
		MessagesReceived:   s.received.Load(),
		ConnectionAttempts: s.attempts.Load(),
	}
	if ns := s.lastConnected.Load(); ns != 0 {
		snap.LastConnected = time.Unix(0, ns)
	}
	return snap
}
