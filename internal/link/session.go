package link

import (
	"bytes"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/cydlink/internal/observability"
	"github.com/danmuck/cydlink/internal/protocol"
	"github.com/danmuck/cydlink/internal/transport"
)

// Handler receives each decoded inbound message on the reader
// goroutine. It must not block indefinitely.
type Handler func(protocol.Message)

// Session pairs a reader loop and a writer loop around one Manager.
// Reader decodes frames and hands them to the handler; writer drains
// the outbound queue. A message whose write failed is retried ahead of
// anything enqueued later, so order survives a reconnect.
type Session struct {
	cfg     Config
	mgr     *Manager
	tr      transport.Transport
	stats   *Stats
	handler Handler

	out      chan protocol.Message
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu          sync.Mutex
	started     bool
	textHandler func(line string)
}

func NewSession(tr transport.Transport, mgr *Manager, cfg Config, stats *Stats) *Session {
	if stats == nil {
		stats = NewStats()
	}
	cfg = cfg.WithDefaults()
	return &Session{
		cfg:    cfg,
		mgr:    mgr,
		tr:     tr,
		stats:  stats,
		out:    make(chan protocol.Message, cfg.QueueCapacity),
		stopCh: make(chan struct{}),
	}
}

// OnMessage registers the inbound handler. Must be called before Start.
func (s *Session) OnMessage(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

// OnText registers a handler for non-frame lines. The stream carries
// free-form device diagnostics between frames; by default they are
// logged and dropped.
func (s *Session) OnText(h func(line string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.textHandler = h
}

func (s *Session) Stats() Snapshot {
	return s.stats.Snapshot()
}

func (s *Session) Manager() *Manager {
	return s.mgr
}

// Start launches the retry, reader, and writer goroutines. Calling it
// twice is a no-op.
func (s *Session) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	s.wg.Add(3)
	go func() {
		defer s.wg.Done()
		s.mgr.RunRetryLoop()
	}()
	go func() {
		defer s.wg.Done()
		s.readLoop()
	}()
	go func() {
		defer s.wg.Done()
		s.writeLoop()
	}()
}

// Stop terminates both loops within the configured grace period and
// releases the transport. Whatever remains on the outbound queue is
// discarded; there is no replay across restarts.
func (s *Session) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.mgr.Stop()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(s.cfg.StopGrace):
		log.Warn().Dur("grace", s.cfg.StopGrace).Msg("link loops did not stop within grace period")
	}
}

// Send enqueues one outbound message, waiting at most the configured
// send timeout when the queue is full. Returns false on a full queue
// or a stopped session; it never panics.
func (s *Session) Send(m protocol.Message) bool {
	select {
	case <-s.stopCh:
		return false
	default:
	}
	timer := time.NewTimer(s.cfg.SendTimeout)
	defer timer.Stop()
	select {
	case s.out <- m:
		return true
	case <-s.stopCh:
		return false
	case <-timer.C:
		observability.RecordQueueReject()
		return false
	}
}

func (s *Session) readLoop() {
	var buf []byte
	maxBuffered := 8 * s.cfg.Limits.MaxFrameBytes

	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		if !s.mgr.Connected() {
			s.idle()
			continue
		}

		data, err := s.tr.ReadAvailable()
		if err != nil {
			s.mgr.HandleFailure(err)
			continue
		}
		if len(data) == 0 {
			s.idle()
			continue
		}

		buf = append(buf, data...)
		for {
			idx := bytes.IndexByte(buf, '\n')
			if idx < 0 {
				break
			}
			line := buf[:idx]
			buf = buf[idx+1:]
			s.dispatchLine(line)
		}
		if len(buf) > maxBuffered {
			// No delimiter in sight; the stream is not speaking our
			// framing. Drop the backlog rather than grow without bound.
			log.Warn().Int("dropped", len(buf)).Msg("link read buffer overflow, discarding")
			buf = nil
		}
	}
}

func (s *Session) dispatchLine(line []byte) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return
	}
	msg, ok := protocol.Decode(trimmed, s.cfg.Limits)
	if !ok {
		if protocol.IsFrameCandidate(trimmed) {
			log.Warn().Str("line", clip(trimmed, 128)).Msg("malformed frame dropped")
			return
		}
		s.mu.Lock()
		textHandler := s.textHandler
		s.mu.Unlock()
		if textHandler != nil {
			textHandler(string(trimmed))
		} else {
			log.Debug().Str("line", clip(trimmed, 128)).Msg("device text")
		}
		return
	}
	s.stats.markReceived()
	observability.RecordFrameReceived(string(msg.Type()))
	s.mu.Lock()
	handler := s.handler
	s.mu.Unlock()
	if handler != nil {
		handler(msg)
	}
}

func (s *Session) writeLoop() {
	var pending protocol.Message
	hasPending := false

	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		if !s.mgr.Connected() {
			// A dequeued message waits for the link, it is not dropped;
			// nothing further is dequeued until the link is back.
			s.idle()
			continue
		}

		if !hasPending {
			timer := time.NewTimer(100 * time.Millisecond)
			select {
			case <-s.stopCh:
				timer.Stop()
				return
			case pending = <-s.out:
				hasPending = true
			case <-timer.C:
			}
			timer.Stop()
			continue
		}

		frame, err := protocol.Encode(pending, s.cfg.Limits)
		if err != nil {
			log.Error().Err(err).Str("type", string(pending.Type())).Msg("outbound message not encodable, dropping")
			hasPending = false
			continue
		}
		if err := s.tr.Write(frame); err != nil {
			s.mgr.HandleFailure(err)
			continue
		}
		s.stats.markSent()
		observability.RecordFrameSent(string(pending.Type()))
		hasPending = false
	}
}

func (s *Session) idle() {
	timer := time.NewTimer(s.cfg.IdleSleep)
	defer timer.Stop()
	select {
	case <-s.stopCh:
	case <-timer.C:
	}
}

func clip(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
