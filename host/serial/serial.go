// Package serial opens the USB/UART link to a Klipper-protocol MCU.
package serial

import (
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// Config holds serial port configuration
type Config struct {
	Device string // e.g. "/dev/ttyACM0"
	Baud   int    // USB CDC devices ignore it
	// ReadTimeout bounds each read so the reader can notice Close. Reads
	// that time out return io.EOF.
	ReadTimeout time.Duration
}

// DefaultConfig returns the usual Klipper link settings for device.
func DefaultConfig(device string) Config {
	return Config{
		Device:      device,
		Baud:        250000,
		ReadTimeout: 100 * time.Millisecond,
	}
}

// Open opens the serial port described by cfg.
func Open(cfg Config) (io.ReadWriteCloser, error) {
	if cfg.Device == "" {
		return nil, fmt.Errorf("no serial device configured")
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Device, err)
	}
	return port, nil
}
