package command

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const DefaultConfirmWindow = 10 * time.Second

// pendingConfirmation is one stored two-phase command awaiting its
// confirm, cancel, or expiry.
type pendingConfirmation struct {
	id        string
	action    string
	run       Action
	createdAt time.Time
}

// ConfirmationTable stores pending confirmations by id. An id is
// executed at most once; after execution or expiry it fails every
// later lookup.
type ConfirmationTable struct {
	mu      sync.Mutex
	entries map[string]pendingConfirmation
	window  time.Duration
	now     func() time.Time
}

func NewConfirmationTable(window time.Duration, now func() time.Time) *ConfirmationTable {
	if window <= 0 {
		window = DefaultConfirmWindow
	}
	if now == nil {
		now = time.Now
	}
	return &ConfirmationTable{
		entries: make(map[string]pendingConfirmation),
		window:  window,
		now:     now,
	}
}

// Request stores the wrapped action and returns its confirmation id.
// The immediate result is always failed; requesting leaves the
// underlying action un-executed.
func (c *ConfirmationTable) Request(action string, run Action) (string, Result) {
	id := uuid.NewString()
	c.mu.Lock()
	c.entries[id] = pendingConfirmation{
		id:        id,
		action:    action,
		run:       run,
		createdAt: c.now(),
	}
	c.mu.Unlock()
	return id, Failed(fmt.Sprintf(
		"%s requires confirmation: send CONFIRM:%s within %s", action, id, c.window))
}

// Confirm executes the stored action exactly once. The entry is
// removed before the action runs, so concurrent confirms of the same
// id cannot execute it twice.
func (c *ConfirmationTable) Confirm(id string) Result {
	c.mu.Lock()
	entry, ok := c.entries[id]
	if ok {
		delete(c.entries, id)
	}
	c.mu.Unlock()

	if !ok {
		return Failed("invalid or expired confirmation id")
	}
	if c.now().Sub(entry.createdAt) > c.window {
		return Failed("confirmation timeout")
	}
	return safeRun(entry.action, entry.run)
}

// Cancel drops a pending entry without executing it.
func (c *ConfirmationTable) Cancel(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[id]; !ok {
		return false
	}
	delete(c.entries, id)
	return true
}

// CleanupExpired proactively evicts timed-out entries. Lookups already
// self-invalidate on staleness; this only bounds table growth.
func (c *ConfirmationTable) CleanupExpired() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for id, entry := range c.entries {
		if now.Sub(entry.createdAt) > c.window {
			delete(c.entries, id)
			removed++
		}
	}
	return removed
}

// Pending returns the number of stored confirmations.
func (c *ConfirmationTable) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
