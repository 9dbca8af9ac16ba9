package device

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ScriptedTouch replays taps pushed via Tap. Safe for concurrent use so
// a simulator can inject taps while the controller loop polls.
type ScriptedTouch struct {
	mu    sync.Mutex
	queue []Point
}

func (s *ScriptedTouch) Tap(p Point) {
	s.mu.Lock()
	s.queue = append(s.queue, p)
	s.mu.Unlock()
}

func (s *ScriptedTouch) Poll() (Point, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return Point{}, false
	}
	p := s.queue[0]
	s.queue = s.queue[1:]
	return p, true
}

// LogRenderer writes state changes to the log instead of a panel.
type LogRenderer struct{}

func (LogRenderer) Render(s State) {
	ev := log.Info().
		Bool("connected", s.Connected).
		Time("updated_at", s.UpdatedAt.Round(time.Millisecond))
	if s.LastAck != "" {
		ev = ev.Str("last_ack", s.LastAck).Str("result", string(s.LastResult))
	}
	if s.StatusDetail != "" {
		ev = ev.Str("detail", s.StatusDetail)
	}
	for _, f := range s.Fields {
		ev = ev.Interface(f.Name, f.Value)
	}
	ev.Msg("display")
}
