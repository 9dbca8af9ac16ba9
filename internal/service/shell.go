package service

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// Shell is the interactive line-oriented surface for a running host
// service.
type Shell struct {
	orch *Orchestrator
	in   io.Reader
	out  io.Writer
}

func NewShell(orch *Orchestrator, in io.Reader, out io.Writer) *Shell {
	return &Shell{orch: orch, in: in, out: out}
}

// Run reads commands until quit, EOF, or context cancellation.
func (s *Shell) Run(ctx context.Context) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(s.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	s.printHelp()
	for {
		fmt.Fprint(s.out, "cyd> ")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := s.dispatch(line); quit {
				return nil
			}
		}
	}
}

func (s *Shell) dispatch(line string) bool {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return false
	}
	switch strings.ToLower(parts[0]) {
	case "quit", "exit":
		return true
	case "status":
		s.printStatus()
	case "test":
		s.orch.SendTest()
		fmt.Fprintln(s.out, "test message queued")
	case "update":
		s.orch.SendTelemetry()
		fmt.Fprintln(s.out, "telemetry update queued")
	case "port":
		if len(parts) < 2 {
			fmt.Fprintln(s.out, "usage: port <endpoint>")
			break
		}
		s.orch.ChangePort(parts[1])
		fmt.Fprintf(s.out, "endpoint changed to %s\n", parts[1])
	case "help":
		s.printHelp()
	default:
		fmt.Fprintf(s.out, "unknown command: %s (try help)\n", parts[0])
	}
	return false
}

func (s *Shell) printStatus() {
	report := s.orch.Status()
	fmt.Fprintf(s.out, "running:            %v\n", report.Running)
	fmt.Fprintf(s.out, "endpoint:           %s\n", report.Endpoint)
	fmt.Fprintf(s.out, "link state:         %s\n", report.State)
	fmt.Fprintf(s.out, "uptime:             %s\n", report.Uptime.Round(100*time.Millisecond))
	fmt.Fprintf(s.out, "commands processed: %d\n", report.CommandsProcessed)
	fmt.Fprintf(s.out, "messages sent:      %d\n", report.Link.MessagesSent)
	fmt.Fprintf(s.out, "messages received:  %d\n", report.Link.MessagesReceived)
	fmt.Fprintf(s.out, "connect attempts:   %d\n", report.Link.ConnectionAttempts)
	fmt.Fprintf(s.out, "pending confirms:   %d\n", report.PendingConfirms)
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.out, "commands: status | test | update | port <endpoint> | help | quit")
}
