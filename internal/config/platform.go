package config

import "runtime"

func defaultSerialPort() string {
	switch runtime.GOOS {
	case "windows":
		return "COM7"
	case "darwin":
		return "/dev/tty.usbserial-0001"
	default:
		return "/dev/ttyUSB0"
	}
}
