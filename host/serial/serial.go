// Package serial opens the board's USB CDC port
package serial

import (
	"io"
)

// Port represents a serial port interface. Tests substitute pipes.
type Port interface {
	io.ReadWriteCloser

	// Flush flushes any buffered data
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate (Harp uses 1Mbaud, USB CDC ignores it)
	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int
}

// DefaultConfig returns the Harp serial configuration
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        1000000,
		ReadTimeout: 100,
	}
}
