package serial

import (
	"fmt"
	"time"

	"github.com/tarm/serial"
)

// TTYPort wraps a tarm/serial port
type TTYPort struct {
	port *serial.Port
	cfg  *Config
}

// Open opens a serial port and drops anything the board sent before the
// host was listening
func Open(cfg *Config) (Port, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: time.Duration(cfg.ReadTimeout) * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
	}

	p := &TTYPort{port: port, cfg: cfg}
	if err := p.Flush(); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to flush %s: %w", cfg.Device, err)
	}
	return p, nil
}

// Read reads data from the serial port
func (p *TTYPort) Read(b []byte) (int, error) {
	return p.port.Read(b)
}

// Write writes data to the serial port
func (p *TTYPort) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

// Close closes the serial port
func (p *TTYPort) Close() error {
	if p.port != nil {
		return p.port.Close()
	}
	return nil
}

// Flush discards unread input and unsent output
func (p *TTYPort) Flush() error {
	return p.port.Flush()
}

// Device returns the path the port was opened on
func (p *TTYPort) Device() string {
	return p.cfg.Device
}
