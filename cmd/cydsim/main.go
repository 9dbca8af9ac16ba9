package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/cydlink/internal/device"
	"github.com/danmuck/cydlink/internal/logging"
	"github.com/danmuck/cydlink/internal/transport"
)

// The simulated panel mirrors the 320x240 layout of the real display:
// three buttons across the bottom row.
var layout = []device.Region{
	{X0: 0, Y0: 180, X1: 106, Y1: 240, Action: "INIT"},
	{X0: 106, Y0: 180, X1: 213, Y1: 240, Action: "TEST"},
	{X0: 213, Y0: 180, X1: 320, Y1: 240, Action: "EXIT"},
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "cydsim: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		port        = flag.String("port", "", "serial port to dial, e.g. /dev/ttyUSB0")
		baud        = flag.Int("baud", transport.DefaultBaud, "serial baud rate")
		tapEvery    = flag.Duration("tap-every", 0, "tap the TEST button on this interval (0 disables)")
		heartbeatIv = flag.Duration("heartbeat", 5*time.Second, "heartbeat interval")
	)
	flag.Parse()

	logging.ConfigureRuntime("cydsim")

	if *port == "" {
		return errors.New("a -port is required")
	}

	tr := transport.NewSerial(*baud)
	if err := tr.Open(*port); err != nil {
		return fmt.Errorf("open %s: %w", *port, err)
	}
	defer tr.Close()

	touch := &device.ScriptedTouch{}
	cfg := device.DefaultConfig()
	cfg.Regions = layout
	cfg.HeartbeatInterval = *heartbeatIv
	ctrl := device.NewController(tr, touch, device.LogRenderer{}, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *tapEvery > 0 {
		go func() {
			ticker := time.NewTicker(*tapEvery)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					touch.Tap(device.Point{X: 160, Y: 210})
				}
			}
		}()
	}

	log.Info().Str("port", *port).Int("baud", *baud).Msg("simulator running")
	if err := ctrl.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
