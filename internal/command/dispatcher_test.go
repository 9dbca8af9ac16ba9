package command

import (
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danmuck/cydlink/internal/protocol"
	"github.com/danmuck/cydlink/internal/testutil/testlog"
)

func TestDispatcherExecutesRegisteredAction(t *testing.T) {
	testlog.Start(t)
	reg := NewRegistry()
	if err := reg.Register("TEST", func() Result { return Success("browser opened") }); err != nil {
		t.Fatalf("register: %v", err)
	}
	d := NewDispatcher(reg, DefaultConfirmWindow)

	res := d.Execute("test")
	if res.Outcome != protocol.ResultSuccess || res.Detail != "browser opened" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestDispatcherUnknownActionFailsGracefully(t *testing.T) {
	testlog.Start(t)
	d := NewDispatcher(NewRegistry(), DefaultConfirmWindow)
	res := d.Execute("SELF_DESTRUCT")
	if res.Outcome != protocol.ResultFailed {
		t.Fatalf("unexpected outcome: %+v", res)
	}
	if !strings.Contains(res.Detail, "SELF_DESTRUCT") {
		t.Fatalf("detail does not name the action: %q", res.Detail)
	}
	if res := d.Execute("  "); res.Outcome != protocol.ResultFailed {
		t.Fatalf("empty command: %+v", res)
	}
}

func TestDispatcherRecoversPanickingAction(t *testing.T) {
	testlog.Start(t)
	reg := NewRegistry()
	_ = reg.Register("BOOM", func() Result { panic("kaput") })
	d := NewDispatcher(reg, DefaultConfirmWindow)

	res := d.Execute("BOOM")
	if res.Outcome != protocol.ResultError {
		t.Fatalf("unexpected outcome: %+v", res)
	}
	if !strings.Contains(res.Detail, "kaput") {
		t.Fatalf("detail missing panic value: %q", res.Detail)
	}
}

func TestRegistryRejectsDuplicateAndEmpty(t *testing.T) {
	testlog.Start(t)
	reg := NewRegistry()
	if err := reg.Register("INIT", func() Result { return Success("") }); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register("init", func() Result { return Success("") }); err == nil {
		t.Fatalf("duplicate register accepted")
	}
	if err := reg.Register("", func() Result { return Success("") }); err == nil {
		t.Fatalf("empty name accepted")
	}
	if got := reg.Names(); len(got) != 1 || got[0] != "INIT" {
		t.Fatalf("names=%v", got)
	}
}

func confirmID(t *testing.T, res Result) string {
	t.Helper()
	idx := strings.Index(res.Detail, ConfirmPrefix)
	if idx < 0 {
		t.Fatalf("no confirmation id in %q", res.Detail)
	}
	rest := res.Detail[idx+len(ConfirmPrefix):]
	return strings.Fields(rest)[0]
}

func TestConfirmationRequestLeavesActionUnexecuted(t *testing.T) {
	testlog.Start(t)
	var executions atomic.Int32
	reg := NewRegistry()
	_ = reg.RegisterConfirmed("EXIT", func() Result {
		executions.Add(1)
		return Success("shutting down")
	})
	d := NewDispatcher(reg, DefaultConfirmWindow)

	res := d.Execute("EXIT")
	if res.Outcome != protocol.ResultFailed {
		t.Fatalf("request outcome: %+v", res)
	}
	if executions.Load() != 0 {
		t.Fatalf("action ran before confirm")
	}

	confirm := d.Execute(ConfirmPrefix + confirmID(t, res))
	if confirm.Outcome != protocol.ResultSuccess || executions.Load() != 1 {
		t.Fatalf("confirm: %+v executions=%d", confirm, executions.Load())
	}
}

func TestConfirmationSingleExecution(t *testing.T) {
	testlog.Start(t)
	var executions atomic.Int32
	d := NewDispatcher(NewRegistry(), DefaultConfirmWindow)
	id, _ := d.RequestConfirmation("EXIT", func() Result {
		executions.Add(1)
		return Success("ok")
	})

	first := d.Confirm(id)
	second := d.Confirm(id)
	if first.Outcome != protocol.ResultSuccess {
		t.Fatalf("first confirm: %+v", first)
	}
	if second.Outcome != protocol.ResultFailed || !strings.Contains(second.Detail, "invalid or expired") {
		t.Fatalf("second confirm: %+v", second)
	}
	if executions.Load() != 1 {
		t.Fatalf("executions=%d, want 1", executions.Load())
	}
}

func TestConfirmationConcurrentConfirmsExecuteOnce(t *testing.T) {
	testlog.Start(t)
	var executions atomic.Int32
	d := NewDispatcher(NewRegistry(), DefaultConfirmWindow)
	id, _ := d.RequestConfirmation("EXIT", func() Result {
		executions.Add(1)
		return Success("ok")
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Confirm(id)
		}()
	}
	wg.Wait()
	if executions.Load() != 1 {
		t.Fatalf("executions=%d, want 1", executions.Load())
	}
}

func TestConfirmationExpiry(t *testing.T) {
	testlog.Start(t)
	now := time.Unix(1700000000, 0)
	clock := func() time.Time { return now }
	d := NewDispatcherWithClock(NewRegistry(), 10*time.Second, clock)

	var executions atomic.Int32
	id, _ := d.RequestConfirmation("EXIT", func() Result {
		executions.Add(1)
		return Success("ok")
	})

	now = now.Add(11 * time.Second)
	res := d.Confirm(id)
	if res.Outcome != protocol.ResultFailed || !strings.Contains(res.Detail, "timeout") {
		t.Fatalf("expired confirm: %+v", res)
	}
	if executions.Load() != 0 {
		t.Fatalf("expired action executed")
	}
	again := d.Confirm(id)
	if !strings.Contains(again.Detail, "invalid or expired") {
		t.Fatalf("stale id lookup: %+v", again)
	}
}

func TestCleanupExpiredSweep(t *testing.T) {
	testlog.Start(t)
	now := time.Unix(1700000000, 0)
	clock := func() time.Time { return now }
	d := NewDispatcherWithClock(NewRegistry(), 10*time.Second, clock)

	d.RequestConfirmation("A", func() Result { return Success("") })
	now = now.Add(5 * time.Second)
	keepID, _ := d.RequestConfirmation("B", func() Result { return Success("") })

	now = now.Add(6 * time.Second)
	if removed := d.CleanupExpired(); removed != 1 {
		t.Fatalf("removed=%d, want 1", removed)
	}
	if d.PendingConfirmations() != 1 {
		t.Fatalf("pending=%d, want 1", d.PendingConfirmations())
	}
	if res := d.Confirm(keepID); res.Outcome != protocol.ResultSuccess {
		t.Fatalf("surviving entry: %+v", res)
	}
}

func TestConfirmationCancel(t *testing.T) {
	testlog.Start(t)
	d := NewDispatcher(NewRegistry(), DefaultConfirmWindow)
	id, _ := d.RequestConfirmation("EXIT", func() Result { return Success("") })
	if !d.Cancel(id) {
		t.Fatalf("cancel failed")
	}
	if d.Cancel(id) {
		t.Fatalf("second cancel succeeded")
	}
	if res := d.Confirm(id); !strings.Contains(res.Detail, "invalid or expired") {
		t.Fatalf("confirm after cancel: %+v", res)
	}
}
