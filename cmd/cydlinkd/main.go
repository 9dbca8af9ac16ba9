package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/cydlink/internal/command"
	"github.com/danmuck/cydlink/internal/config"
	"github.com/danmuck/cydlink/internal/link"
	"github.com/danmuck/cydlink/internal/logging"
	"github.com/danmuck/cydlink/internal/observability"
	"github.com/danmuck/cydlink/internal/service"
	"github.com/danmuck/cydlink/internal/telemetry"
	"github.com/danmuck/cydlink/internal/transport"
)

const banner = `cydlinkd -- host side of the display link`

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "cydlinkd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath    = flag.String("config", "", "path to TOML config (defaults apply when empty)")
		port          = flag.String("port", "", "serial port override, e.g. /dev/ttyUSB0 or COM7")
		noInteractive = flag.Bool("no-interactive", false, "run headless without the command shell")
		metricsAddr   = flag.String("metrics-addr", "", "expose Prometheus metrics on this address (empty disables)")
	)
	flag.Parse()

	logging.ConfigureRuntime("cydlinkd")

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *port != "" {
		cfg.Serial.Port = *port
	}

	fmt.Println(banner)
	log.Info().
		Str("port", cfg.Serial.Port).
		Int("baud", cfg.Serial.Baud).
		Dur("telemetry_interval", cfg.TelemetryInterval()).
		Msg("starting")

	linkCfg := link.Config{
		Endpoint:             cfg.Serial.Port,
		ReconnectDelay:       cfg.ReconnectDelay(),
		MaxReconnectAttempts: cfg.Serial.MaxReconnectAttempts,
		QueueCapacity:        cfg.Serial.QueueCapacity,
	}
	if cfg.Serial.MaxFrameBytes > 0 {
		linkCfg.Limits.MaxFrameBytes = cfg.Serial.MaxFrameBytes
	}

	stats := link.NewStats()
	tr := transport.NewSerial(cfg.Serial.Baud)
	mgr := link.NewManager(tr, linkCfg, stats)
	sess := link.NewSession(tr, mgr, linkCfg, stats)

	registry := command.NewRegistry()
	launcher := command.NewLauncher(cfg.RunTimeout())
	if err := command.RegisterDefaults(registry, launcher); err != nil {
		return fmt.Errorf("register commands: %w", err)
	}
	dispatcher := command.NewDispatcher(registry, cfg.ConfirmWindow())

	orch := service.NewOrchestrator(sess, dispatcher, telemetry.NewMonitor(), service.Config{
		TelemetryInterval: cfg.TelemetryInterval(),
	})
	orch.Start()
	defer orch.Stop()

	if *metricsAddr != "" {
		go observability.Serve(*metricsAddr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *noInteractive {
		<-ctx.Done()
		log.Info().Msg("signal received, shutting down")
		return nil
	}

	shell := service.NewShell(orch, os.Stdin, os.Stdout)
	if err := shell.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("shutting down")
	return nil
}
