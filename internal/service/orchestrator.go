// Package service ties the link session, command dispatcher, and
// telemetry source together and exposes the host process surface.
package service

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/cydlink/internal/command"
	"github.com/danmuck/cydlink/internal/link"
	"github.com/danmuck/cydlink/internal/observability"
	"github.com/danmuck/cydlink/internal/protocol"
	"github.com/danmuck/cydlink/internal/telemetry"
)

// debugCommandPrefix marks a command smuggled through the device's
// plain-text diagnostic output instead of a structured frame.
const debugCommandPrefix = "PC_COMMAND:"

// Config defines orchestrator timing defaults.
type Config struct {
	TelemetryInterval    time.Duration
	ConfirmSweepInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		TelemetryInterval:    10 * time.Second,
		ConfirmSweepInterval: 30 * time.Second,
	}
}

func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.TelemetryInterval <= 0 {
		c.TelemetryInterval = def.TelemetryInterval
	}
	if c.ConfirmSweepInterval <= 0 {
		c.ConfirmSweepInterval = def.ConfirmSweepInterval
	}
	return c
}

// StatusReport is the shell-facing view of the running service.
type StatusReport struct {
	Running           bool
	Endpoint          string
	State             link.ConnState
	Uptime            time.Duration
	CommandsProcessed uint64
	Link              link.Snapshot
	PendingConfirms   int
}

// Orchestrator runs the telemetry timer, routes inbound commands to
// the dispatcher, and pushes results back over the session. All
// collaborators are injected; nothing is process-global.
type Orchestrator struct {
	cfg        Config
	sess       *link.Session
	dispatcher *command.Dispatcher
	source     telemetry.Source

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu        sync.Mutex
	started   bool
	startTime time.Time

	commandsProcessed atomic.Uint64
}

func NewOrchestrator(sess *link.Session, dispatcher *command.Dispatcher, source telemetry.Source, cfg Config) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg.WithDefaults(),
		sess:       sess,
		dispatcher: dispatcher,
		source:     source,
		stopCh:     make(chan struct{}),
	}
}

// Start wires handlers, starts the session loops, and launches the
// periodic timers.
func (o *Orchestrator) Start() {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return
	}
	o.started = true
	o.startTime = time.Now()
	o.mu.Unlock()

	o.sess.OnMessage(o.handleMessage)
	o.sess.OnText(o.handleText)
	o.sess.Manager().OnStateChange(func(connected bool) {
		if connected {
			o.sendStatus(protocol.StateConnected, "")
		}
	})
	o.sess.Start()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.timerLoop()
	}()
}

// Stop halts the timers and tears the session down.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() { close(o.stopCh) })
	o.wg.Wait()
	o.sess.Stop()
}

func (o *Orchestrator) timerLoop() {
	telemetryTick := time.NewTicker(o.cfg.TelemetryInterval)
	sweepTick := time.NewTicker(o.cfg.ConfirmSweepInterval)
	defer telemetryTick.Stop()
	defer sweepTick.Stop()

	for {
		select {
		case <-o.stopCh:
			return
		case <-telemetryTick.C:
			o.SendTelemetry()
		case <-sweepTick.C:
			if removed := o.dispatcher.CleanupExpired(); removed > 0 {
				log.Debug().Int("removed", removed).Msg("expired confirmations swept")
			}
		}
	}
}

// SendTelemetry samples the source and enqueues one system_data frame.
func (o *Orchestrator) SendTelemetry() {
	fields, err := o.source.Snapshot()
	if err != nil {
		log.Warn().Err(err).Msg("telemetry snapshot failed")
		return
	}
	msg := protocol.Telemetry{Fields: fields, Timestamp: protocol.Now()}
	if !o.sess.Send(msg) {
		log.Warn().Msg("telemetry dropped, outbound queue full")
	}
}

// SendTest pushes a ready probe the device can display.
func (o *Orchestrator) SendTest() {
	o.sendStatus(protocol.StateReady, "test message from host")
}

func (o *Orchestrator) sendStatus(state protocol.State, detail string) {
	ok := o.sess.Send(protocol.Status{State: state, Detail: detail, Timestamp: protocol.Now()})
	if !ok {
		log.Warn().Str("state", string(state)).Msg("status dropped, outbound queue full")
	}
}

func (o *Orchestrator) handleMessage(msg protocol.Message) {
	switch m := msg.(type) {
	case protocol.Command:
		o.runCommand(m.Action)
	case protocol.Heartbeat:
		log.Debug().Float64("timestamp", m.Timestamp).Msg("device heartbeat")
	case protocol.Status:
		log.Info().Str("state", string(m.State)).Str("detail", m.Detail).Msg("device status")
	case protocol.Fault:
		log.Warn().Str("code", m.Code).Str("detail", m.Detail).Msg("device error")
	default:
		log.Debug().Str("type", string(msg.Type())).Msg("unhandled message dropped")
	}
}

// handleText picks commands out of the device's diagnostic output.
// Everything else is plain debug text.
func (o *Orchestrator) handleText(line string) {
	if action, ok := strings.CutPrefix(line, debugCommandPrefix); ok {
		o.runCommand(strings.TrimSpace(action))
		return
	}
	log.Debug().Str("line", line).Msg("device text")
}

func (o *Orchestrator) runCommand(action string) {
	o.commandsProcessed.Add(1)
	log.Info().Str("action", action).Msg("command received")

	start := time.Now()
	res := o.dispatcher.Execute(action)
	observability.RecordCommand(action, string(res.Outcome), time.Since(start))
	ack := protocol.Ack{
		Command:   action,
		Result:    res.Outcome,
		Detail:    res.Detail,
		Timestamp: protocol.Now(),
	}
	if !o.sess.Send(ack) {
		log.Warn().Str("action", action).Msg("ack dropped, outbound queue full")
	}
}

// ChangePort retargets the link at a different serial endpoint.
func (o *Orchestrator) ChangePort(endpoint string) {
	o.sess.Manager().ChangeEndpoint(endpoint)
}

func (o *Orchestrator) Status() StatusReport {
	o.mu.Lock()
	started := o.started
	startTime := o.startTime
	o.mu.Unlock()

	report := StatusReport{
		Running:           started,
		Endpoint:          o.sess.Manager().Endpoint(),
		State:             o.sess.Manager().State(),
		CommandsProcessed: o.commandsProcessed.Load(),
		Link:              o.sess.Stats(),
		PendingConfirms:   o.dispatcher.PendingConfirmations(),
	}
	if started {
		report.Uptime = time.Since(startTime)
	}
	return report
}
