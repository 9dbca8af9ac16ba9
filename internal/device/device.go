// Package device runs the display-side half of the link: a single
// cooperative loop that polls touch input ahead of the serial stream,
// renders inbound telemetry, and pushes commands host-ward.
package device

import (
	"bytes"
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/cydlink/internal/protocol"
	"github.com/danmuck/cydlink/internal/transport"
)

// Point is one touch coordinate.
type Point struct {
	X, Y int
}

// TouchSource is the touch controller. Poll must return immediately.
type TouchSource interface {
	Poll() (Point, bool)
}

// Renderer paints the current state. Called only when state changed.
type Renderer interface {
	Render(State)
}

// State is what the display shows.
type State struct {
	Connected    bool
	Fields       protocol.Fields
	LastAck      string
	LastResult   protocol.Result
	StatusDetail string
	UpdatedAt    time.Time
}

// Region maps a touch rectangle to a command action.
type Region struct {
	X0, Y0, X1, Y1 int
	Action         string
}

func (r Region) hit(p Point) bool {
	return p.X >= r.X0 && p.X < r.X1 && p.Y >= r.Y0 && p.Y < r.Y1
}

// Config defines controller timing and the touch layout.
type Config struct {
	HeartbeatInterval time.Duration
	TickInterval      time.Duration
	Regions           []Region
	Limits            protocol.Limits
}

func DefaultConfig() Config {
	return Config{
		HeartbeatInterval: 5 * time.Second,
		TickInterval:      5 * time.Millisecond,
		Limits:            protocol.DefaultLimits(),
	}
}

func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = def.HeartbeatInterval
	}
	if c.TickInterval <= 0 {
		c.TickInterval = def.TickInterval
	}
	if c.Limits.MaxFrameBytes <= 0 {
		c.Limits = def.Limits
	}
	return c
}

// Controller is the device loop. Touch polling has strict priority:
// every tick services touch before the link, and link reads are
// chunked so a burst of telemetry cannot starve input.
type Controller struct {
	cfg    Config
	tr     transport.Transport
	touch  TouchSource
	render Renderer
	now    func() time.Time

	buf           []byte
	state         State
	dirty         bool
	lastHeartbeat time.Time
}

func NewController(tr transport.Transport, touch TouchSource, render Renderer, cfg Config) *Controller {
	return &Controller{
		cfg:    cfg.WithDefaults(),
		tr:     tr,
		touch:  touch,
		render: render,
		now:    time.Now,
	}
}

// Run ticks the controller until the context ends.
func (c *Controller) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.Step()
		}
	}
}

// Step runs one cooperative iteration: touch, then link, then
// heartbeat, then render if anything changed.
func (c *Controller) Step() {
	if p, ok := c.touch.Poll(); ok {
		c.handleTouch(p)
	}
	c.pollLink()
	c.maybeHeartbeat()
	if c.dirty {
		c.render.Render(c.state)
		c.dirty = false
	}
}

func (c *Controller) handleTouch(p Point) {
	for _, region := range c.cfg.Regions {
		if !region.hit(p) {
			continue
		}
		c.send(protocol.Command{Action: region.Action, Timestamp: protocol.Now()})
		return
	}
}

func (c *Controller) pollLink() {
	data, err := c.tr.ReadAvailable()
	if err != nil {
		if c.state.Connected {
			c.state.Connected = false
			c.touchState()
		}
		return
	}
	if len(data) == 0 {
		return
	}
	c.buf = append(c.buf, data...)
	for {
		idx := bytes.IndexByte(c.buf, '\n')
		if idx < 0 {
			break
		}
		line := c.buf[:idx]
		c.buf = c.buf[idx+1:]
		if msg, ok := protocol.Decode(line, c.cfg.Limits); ok {
			c.apply(msg)
		}
	}
	if len(c.buf) > 4*c.cfg.Limits.MaxFrameBytes {
		c.buf = nil
	}
}

func (c *Controller) apply(msg protocol.Message) {
	switch m := msg.(type) {
	case protocol.Telemetry:
		c.state.Fields = m.Fields
		c.state.Connected = true
	case protocol.Ack:
		c.state.LastAck = m.Command
		c.state.LastResult = m.Result
		c.state.StatusDetail = m.Detail
	case protocol.Status:
		c.state.Connected = m.State == protocol.StateConnected || m.State == protocol.StateReady
		c.state.StatusDetail = m.Detail
	case protocol.Heartbeat:
		return
	default:
		log.Debug().Str("type", string(msg.Type())).Msg("device ignoring message")
		return
	}
	c.touchState()
}

func (c *Controller) maybeHeartbeat() {
	now := c.now()
	if now.Sub(c.lastHeartbeat) < c.cfg.HeartbeatInterval {
		return
	}
	c.lastHeartbeat = now
	c.send(protocol.Heartbeat{Timestamp: protocol.Now()})
}

func (c *Controller) send(msg protocol.Message) {
	frame, err := protocol.Encode(msg, c.cfg.Limits)
	if err != nil {
		log.Error().Err(err).Msg("device encode failed")
		return
	}
	if err := c.tr.Write(frame); err != nil {
		log.Warn().Err(err).Msg("device write failed")
		if c.state.Connected {
			c.state.Connected = false
			c.touchState()
		}
	}
}

func (c *Controller) touchState() {
	c.state.UpdatedAt = c.now()
	c.dirty = true
}
