//go:build !windows

package command

import (
	"strings"
	"testing"
	"time"

	"github.com/danmuck/cydlink/internal/protocol"
	"github.com/danmuck/cydlink/internal/testutil/testlog"
)

func TestLauncherRunSuccessAndFailure(t *testing.T) {
	testlog.Start(t)
	l := NewLauncher(5 * time.Second)

	if res := l.Run("sh", []string{"-c", "exit 0"}); res.Outcome != protocol.ResultSuccess {
		t.Fatalf("run success: %+v", res)
	}
	res := l.Run("sh", []string{"-c", "echo bad >&2; exit 3"})
	if res.Outcome != protocol.ResultFailed || !strings.Contains(res.Detail, "bad") {
		t.Fatalf("run failure: %+v", res)
	}
}

func TestLauncherRunTimesOut(t *testing.T) {
	testlog.Start(t)
	l := NewLauncher(50 * time.Millisecond)
	res := l.Run("sh", []string{"-c", "sleep 5"})
	if res.Outcome != protocol.ResultFailed || !strings.Contains(res.Detail, "timed out") {
		t.Fatalf("timeout result: %+v", res)
	}
}

func TestLauncherStartFireAndForget(t *testing.T) {
	testlog.Start(t)
	l := NewLauncher(time.Second)
	if res := l.Start("sh", []string{"-c", "exit 0"}); res.Outcome != protocol.ResultSuccess {
		t.Fatalf("start: %+v", res)
	}
	if res := l.Start("definitely-not-a-binary", nil); res.Outcome != protocol.ResultFailed {
		t.Fatalf("missing binary: %+v", res)
	}
}
