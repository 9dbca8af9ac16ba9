package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/danmuck/cydlink/internal/testutil/testlog"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cydlink.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsWithoutPath(t *testing.T) {
	testlog.Start(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Serial.Baud != 115200 || cfg.Service.TelemetryIntervalSeconds != 10 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Commands.ConfirmWindowSeconds != 10 {
		t.Fatalf("confirm window default: %+v", cfg.Commands)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, `
[serial]
port = "/dev/ttyACM3"
reconnect_delay_seconds = 5

[service]
telemetry_interval_seconds = 3
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Serial.Port != "/dev/ttyACM3" {
		t.Fatalf("port=%q", cfg.Serial.Port)
	}
	if cfg.ReconnectDelay().Seconds() != 5 {
		t.Fatalf("reconnect delay=%v", cfg.ReconnectDelay())
	}
	if cfg.TelemetryInterval().Seconds() != 3 {
		t.Fatalf("telemetry interval=%v", cfg.TelemetryInterval())
	}
	// Untouched sections keep defaults.
	if cfg.Serial.Baud != 115200 {
		t.Fatalf("baud=%d", cfg.Serial.Baud)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, `
[serial]
port = ""
`)
	if _, err := Load(path); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}

	path = writeConfig(t, `
[service]
telemetry_interval_seconds = -1
`)
	if _, err := Load(path); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	testlog.Start(t)
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
