package command

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ConfirmPrefix marks an inbound action as a confirmation of a pending
// two-phase command: CONFIRM:<id>.
const ConfirmPrefix = "CONFIRM:"

// Dispatcher resolves inbound action names and executes them. Execute
// is total: every action name produces a Result, never a panic.
type Dispatcher struct {
	reg     *Registry
	pending *ConfirmationTable
}

func NewDispatcher(reg *Registry, confirmWindow time.Duration) *Dispatcher {
	return &Dispatcher{
		reg:     reg,
		pending: NewConfirmationTable(confirmWindow, nil),
	}
}

// NewDispatcherWithClock injects the confirmation clock for tests.
func NewDispatcherWithClock(reg *Registry, confirmWindow time.Duration, now func() time.Time) *Dispatcher {
	return &Dispatcher{
		reg:     reg,
		pending: NewConfirmationTable(confirmWindow, now),
	}
}

func (d *Dispatcher) Execute(action string) Result {
	name := strings.TrimSpace(action)
	if name == "" {
		return Failed("empty command")
	}
	if id, ok := strings.CutPrefix(name, ConfirmPrefix); ok {
		return d.Confirm(strings.TrimSpace(id))
	}

	b, ok := d.reg.lookup(name)
	if !ok {
		return Failed(fmt.Sprintf("unknown command: %s", name))
	}
	if b.confirm {
		id, res := d.pending.Request(b.name, b.run)
		log.Info().Str("action", b.name).Str("confirmation_id", id).Msg("command held for confirmation")
		return res
	}
	return safeRun(b.name, b.run)
}

// RequestConfirmation stores wrapped for later confirm, bypassing the
// registry. Used for ad-hoc two-phase actions.
func (d *Dispatcher) RequestConfirmation(action string, wrapped Action) (string, Result) {
	return d.pending.Request(action, wrapped)
}

func (d *Dispatcher) Confirm(id string) Result {
	return d.pending.Confirm(id)
}

func (d *Dispatcher) Cancel(id string) bool {
	return d.pending.Cancel(id)
}

func (d *Dispatcher) CleanupExpired() int {
	return d.pending.CleanupExpired()
}

func (d *Dispatcher) PendingConfirmations() int {
	return d.pending.Pending()
}

// safeRun converts a panicking action into an error result instead of
// letting it escape to the reader loop.
func safeRun(name string, run Action) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("action", name).Any("panic", r).Msg("action panicked")
			res = Errored(fmt.Sprintf("action %s panicked: %v", name, r))
		}
	}()
	return run()
}
