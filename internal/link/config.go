package link

import (
	"time"

	"github.com/danmuck/cydlink/internal/protocol"
)

// Config defines link reliability defaults.
type Config struct {
	Endpoint             string
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int // 0 means unlimited
	QueueCapacity        int
	SendTimeout          time.Duration
	IdleSleep            time.Duration
	StopGrace            time.Duration
	Limits               protocol.Limits
}

func DefaultConfig() Config {
	return Config{
		ReconnectDelay:       2 * time.Second,
		MaxReconnectAttempts: 0,
		QueueCapacity:        64,
		SendTimeout:          time.Second,
		IdleSleep:            10 * time.Millisecond,
		StopGrace:            3 * time.Second,
		Limits:               protocol.DefaultLimits(),
	}
}

func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = def.ReconnectDelay
	}
	if c.MaxReconnectAttempts < 0 {
		c.MaxReconnectAttempts = 0
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = def.QueueCapacity
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = def.SendTimeout
	}
	if c.IdleSleep <= 0 {
		c.IdleSleep = def.IdleSleep
	}
	if c.StopGrace <= 0 {
		c.StopGrace = def.StopGrace
	}
	if c.Limits.MaxFrameBytes <= 0 {
		c.Limits = def.Limits
	}
	return c
}

// RetryDelay returns the pause before the next reconnect attempt.
// failures counts consecutive failed attempts. Exhausting a configured
// attempt budget doubles the delay but never stops retrying.
func RetryDelay(cfg Config, failures int) time.Duration {
	if cfg.MaxReconnectAttempts > 0 && failures >= cfg.MaxReconnectAttempts {
		return 2 * cfg.ReconnectDelay
	}
	return cfg.ReconnectDelay
}
