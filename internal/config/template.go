package config

import (
	"fmt"
	"os"
)

const configTemplate = `[service]
name = "cydlinkd"
telemetry_interval_seconds = 10

[serial]
port = "/dev/ttyUSB0"
baud = 115200
reconnect_delay_seconds = 2
# 0 keeps retrying forever; exhausting a positive budget doubles the delay
max_reconnect_attempts = 0
queue_capacity = 64
max_frame_bytes = 1024

[commands]
confirm_window_seconds = 10
run_timeout_seconds = 30
`

// WriteTemplate writes a commented starter config to path. Refuses to
// clobber an existing file unless overwrite is set.
func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(configTemplate), 0o600)
}
