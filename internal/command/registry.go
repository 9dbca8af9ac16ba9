package command

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/danmuck/cydlink/internal/protocol"
)

var (
	ErrEmptyName      = errors.New("command: empty action name")
	ErrAlreadyDefined = errors.New("command: action already registered")
)

// Result is the outcome of one action execution, carried back to the
// device as an Ack.
type Result struct {
	Outcome protocol.Result
	Detail  string
}

func Success(detail string) Result {
	return Result{Outcome: protocol.ResultSuccess, Detail: detail}
}

func Failed(detail string) Result {
	return Result{Outcome: protocol.ResultFailed, Detail: detail}
}

func Errored(detail string) Result {
	return Result{Outcome: protocol.ResultError, Detail: detail}
}

// Action is one invocable host action.
type Action func() Result

type binding struct {
	name    string
	run     Action
	confirm bool
}

// Registry maps action names to bindings. Names are case-insensitive
// and stored uppercase, matching the device's command vocabulary.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]binding
	names  []string
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]binding)}
}

// Register binds name to an action executed directly on dispatch.
func (r *Registry) Register(name string, run Action) error {
	return r.add(name, run, false)
}

// RegisterConfirmed binds name to an action that only runs after a
// separate confirmation within the configured window.
func (r *Registry) RegisterConfirmed(name string, run Action) error {
	return r.add(name, run, true)
}

func (r *Registry) add(name string, run Action, confirm bool) error {
	key := strings.ToUpper(strings.TrimSpace(name))
	if key == "" {
		return ErrEmptyName
	}
	if run == nil {
		return fmt.Errorf("command: action %s has no executor", key)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[key]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyDefined, key)
	}
	r.byName[key] = binding{name: key, run: run, confirm: confirm}
	r.names = append(r.names, key)
	return nil
}

func (r *Registry) lookup(name string) (binding, bool) {
	key := strings.ToUpper(strings.TrimSpace(name))
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.byName[key]
	return b, ok
}

// Names returns registered action names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}
