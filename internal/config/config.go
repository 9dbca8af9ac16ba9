// Package config loads the host service configuration from TOML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

var ErrInvalidConfig = errors.New("config: invalid")

// Config is the on-disk service configuration. Durations are seconds
// in TOML.
type Config struct {
	Service  ServiceConfig  `toml:"service"`
	Serial   SerialConfig   `toml:"serial"`
	Commands CommandsConfig `toml:"commands"`
}

type ServiceConfig struct {
	Name                     string `toml:"name"`
	TelemetryIntervalSeconds int    `toml:"telemetry_interval_seconds"`
}

type SerialConfig struct {
	Port                  string `toml:"port"`
	Baud                  int    `toml:"baud"`
	ReconnectDelaySeconds int    `toml:"reconnect_delay_seconds"`
	MaxReconnectAttempts  int    `toml:"max_reconnect_attempts"`
	QueueCapacity         int    `toml:"queue_capacity"`
	MaxFrameBytes         int    `toml:"max_frame_bytes"`
}

type CommandsConfig struct {
	ConfirmWindowSeconds int `toml:"confirm_window_seconds"`
	RunTimeoutSeconds    int `toml:"run_timeout_seconds"`
}

func Default() Config {
	return Config{
		Service: ServiceConfig{
			Name:                     "cydlinkd",
			TelemetryIntervalSeconds: 10,
		},
		Serial: SerialConfig{
			Port:                  defaultSerialPort(),
			Baud:                  115200,
			ReconnectDelaySeconds: 2,
			MaxReconnectAttempts:  0,
			QueueCapacity:         64,
			MaxFrameBytes:         1024,
		},
		Commands: CommandsConfig{
			ConfirmWindowSeconds: 10,
			RunTimeoutSeconds:    30,
		},
	}
}

// Load reads path over the defaults. A missing path returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Serial.Port == "" {
		return fmt.Errorf("%w: serial.port is required", ErrInvalidConfig)
	}
	if c.Serial.Baud <= 0 {
		return fmt.Errorf("%w: serial.baud must be positive", ErrInvalidConfig)
	}
	if c.Serial.MaxReconnectAttempts < 0 {
		return fmt.Errorf("%w: serial.max_reconnect_attempts must be >= 0", ErrInvalidConfig)
	}
	if c.Service.TelemetryIntervalSeconds <= 0 {
		return fmt.Errorf("%w: service.telemetry_interval_seconds must be positive", ErrInvalidConfig)
	}
	if c.Commands.ConfirmWindowSeconds <= 0 {
		return fmt.Errorf("%w: commands.confirm_window_seconds must be positive", ErrInvalidConfig)
	}
	return nil
}

func (c Config) TelemetryInterval() time.Duration {
	return time.Duration(c.Service.TelemetryIntervalSeconds) * time.Second
}

func (c Config) ReconnectDelay() time.Duration {
	return time.Duration(c.Serial.ReconnectDelaySeconds) * time.Second
}

func (c Config) ConfirmWindow() time.Duration {
	return time.Duration(c.Commands.ConfirmWindowSeconds) * time.Second
}

func (c Config) RunTimeout() time.Duration {
	return time.Duration(c.Commands.RunTimeoutSeconds) * time.Second
}
