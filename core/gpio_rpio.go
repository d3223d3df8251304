//go:build linux

package core

import (
	"errors"
	"fmt"
	"sync"

	"github.com/stianeikeland/go-rpio/v4"
)

// RPIOGPIO drives Raspberry Pi header pins through /dev/gpiomem.
type RPIOGPIO struct {
	mu      sync.Mutex
	mode    PinMode
	outputs map[GPIOPin]rpio.Pin
	open    bool
}

// OpenRPIO maps the GPIO registers and returns a driver using BCM numbering.
func OpenRPIO() (*RPIOGPIO, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("failed to open gpio memory: %w", err)
	}
	return &RPIOGPIO{outputs: make(map[GPIOPin]rpio.Pin), open: true}, nil
}

func (g *RPIOGPIO) SetMode(mode PinMode) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.outputs) > 0 {
		return errors.New("pin mode must be set before configuring pins")
	}
	g.mode = mode
	return nil
}

func (g *RPIOGPIO) ConfigureOutput(pin GPIOPin) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	bcm, err := ResolvePin(g.mode, pin)
	if err != nil {
		return err
	}
	p := rpio.Pin(bcm)
	p.Output()
	p.Low()
	g.outputs[pin] = p
	return nil
}

func (g *RPIOGPIO) ConfigureInput(pin GPIOPin, pull Pull) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	bcm, err := ResolvePin(g.mode, pin)
	if err != nil {
		return err
	}
	p := rpio.Pin(bcm)
	p.Input()
	switch pull {
	case PullUp:
		p.PullUp()
	case PullDown:
		p.PullDown()
	default:
		p.PullOff()
	}
	return nil
}

func (g *RPIOGPIO) SetPin(pin GPIOPin, value bool) error {
	g.mu.Lock()
	p, ok := g.outputs[pin]
	open := g.open
	g.mu.Unlock()
	if !open {
		return errors.New("gpio closed")
	}
	if !ok {
		return fmt.Errorf("pin %d not configured as output", pin)
	}
	if value {
		p.High()
	} else {
		p.Low()
	}
	return nil
}

func (g *RPIOGPIO) SupportsRealTiming() bool { return true }

// Close drives every configured output low and unmaps the registers.
func (g *RPIOGPIO) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.open {
		return nil
	}
	for _, p := range g.outputs {
		p.Low()
	}
	g.open = false
	return rpio.Close()
}
