package command

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const DefaultRunTimeout = 30 * time.Second

// Launcher starts OS processes on behalf of dispatched commands.
type Launcher struct {
	timeout time.Duration
}

func NewLauncher(timeout time.Duration) *Launcher {
	if timeout <= 0 {
		timeout = DefaultRunTimeout
	}
	return &Launcher{timeout: timeout}
}

// Run executes a process and waits for it, bounded by the launcher
// timeout.
func (l *Launcher) Run(name string, argv []string) Result {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, name, argv...).CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return Failed(fmt.Sprintf("%s timed out after %s", name, l.timeout))
	}
	if err != nil {
		detail := strings.TrimSpace(string(out))
		if detail == "" {
			detail = err.Error()
		}
		return Failed(fmt.Sprintf("%s failed: %s", name, detail))
	}
	return Success(fmt.Sprintf("%s completed", name))
}

// Start launches a process without waiting for it to finish.
func (l *Launcher) Start(name string, argv []string) Result {
	cmd := exec.Command(name, argv...)
	if err := cmd.Start(); err != nil {
		return Failed(fmt.Sprintf("%s failed to start: %v", name, err))
	}
	pid := cmd.Process.Pid
	go func() {
		if err := cmd.Wait(); err != nil {
			log.Debug().Str("process", name).Int("pid", pid).Err(err).Msg("launched process exited")
		}
	}()
	return Success(fmt.Sprintf("%s started (pid %d)", name, pid))
}

// RegisterDefaults binds the device's command vocabulary: INIT opens a
// terminal, TEST opens a browser, EXIT shuts the host down behind a
// confirmation.
func RegisterDefaults(reg *Registry, l *Launcher) error {
	if err := reg.Register("INIT", func() Result { return l.Start(terminalCommand()) }); err != nil {
		return err
	}
	if err := reg.Register("TEST", func() Result { return l.Start(browserCommand()) }); err != nil {
		return err
	}
	return reg.RegisterConfirmed("EXIT", func() Result { return l.Run(shutdownCommand()) })
}

func terminalCommand() (string, []string) {
	switch runtime.GOOS {
	case "windows":
		return "cmd", []string{"/c", "start", "cmd"}
	case "darwin":
		return "open", []string{"-a", "Terminal"}
	default:
		return "x-terminal-emulator", nil
	}
}

func browserCommand() (string, []string) {
	switch runtime.GOOS {
	case "windows":
		return "cmd", []string{"/c", "start", "https://google.com"}
	case "darwin":
		return "open", []string{"https://google.com"}
	default:
		return "xdg-open", []string{"https://google.com"}
	}
}

func shutdownCommand() (string, []string) {
	switch runtime.GOOS {
	case "windows":
		return "shutdown", []string{"/s", "/t", "60"}
	case "darwin":
		return "shutdown", []string{"-h", "+1"}
	default:
		return "shutdown", []string{"-h", "+1"}
	}
}
