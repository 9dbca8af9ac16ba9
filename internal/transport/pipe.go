package transport

import (
	"sync"
)

// Pipe returns two connected in-memory transport ends. Writes on one
// end become readable on the other. Used by integration tests and the
// device simulator's loopback mode; there is no real endpoint, so
// Open accepts any identifier.
func Pipe() (*PipeEnd, *PipeEnd) {
	a := &PipeEnd{}
	b := &PipeEnd{}
	a.peer = b
	b.peer = a
	return a, b
}

// PipeEnd is one side of an in-memory duplex stream.
type PipeEnd struct {
	mu     sync.Mutex
	peer   *PipeEnd
	inbox  []byte
	open   bool
	failed bool
}

func (p *PipeEnd) Open(endpoint string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open = true
	p.failed = false
	return nil
}

func (p *PipeEnd) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open = false
	return nil
}

func (p *PipeEnd) ReadAvailable() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open {
		return nil, ErrNotOpen
	}
	if p.failed {
		return nil, ErrClosed
	}
	if len(p.inbox) == 0 {
		return nil, nil
	}
	out := p.inbox
	p.inbox = nil
	return out, nil
}

func (p *PipeEnd) Write(b []byte) error {
	p.mu.Lock()
	if !p.open {
		p.mu.Unlock()
		return ErrNotOpen
	}
	if p.failed {
		p.mu.Unlock()
		return ErrClosed
	}
	peer := p.peer
	p.mu.Unlock()

	peer.mu.Lock()
	peer.inbox = append(peer.inbox, b...)
	peer.mu.Unlock()
	return nil
}

// Fail makes subsequent reads and writes on this end report a
// transport error, simulating a dropped link.
func (p *PipeEnd) Fail() {
	p.mu.Lock()
	p.failed = true
	p.mu.Unlock()
}

// Heal clears a simulated failure so the next Open succeeds cleanly.
func (p *PipeEnd) Heal() {
	p.mu.Lock()
	p.failed = false
	p.mu.Unlock()
}
