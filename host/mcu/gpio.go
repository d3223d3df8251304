package mcu

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"strings"
	"sync"
	"time"

	"spider/core"
)

// DefaultCommandTimeout bounds every pin command sent by GPIO.
const DefaultCommandTimeout = 2 * time.Second

// GPIO drives digital outputs on the MCU through config_digital_out and
// update_digital_out. Pins are registered with ConfigureOutput; the MCU is
// configured on the first write.
type GPIO struct {
	client  *Client
	Timeout time.Duration

	mu        sync.Mutex
	mode      core.PinMode
	pins      []core.GPIOPin
	oids      map[core.GPIOPin]int
	finalized bool
	closed    bool
}

// NewGPIO returns a driver on client. Closing the driver closes client.
func NewGPIO(client *Client) *GPIO {
	return &GPIO{
		client:  client,
		Timeout: DefaultCommandTimeout,
		oids:    make(map[core.GPIOPin]int),
	}
}

func (g *GPIO) SetMode(mode core.PinMode) error {
	if mode != core.ModeBCM {
		return fmt.Errorf("pin mode %v is not supported on an mcu, use mcu gpio numbers", mode)
	}
	g.mu.Lock()
	g.mode = mode
	g.mu.Unlock()
	return nil
}

func (g *GPIO) ConfigureOutput(pin core.GPIOPin) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return errors.New("mcu gpio closed")
	}
	if _, ok := g.oids[pin]; ok {
		return nil
	}
	if g.finalized {
		return fmt.Errorf("pin %d: mcu configuration already finalized", pin)
	}
	g.oids[pin] = len(g.pins)
	g.pins = append(g.pins, pin)
	return nil
}

func (g *GPIO) ConfigureInput(pin core.GPIOPin, pull core.Pull) error {
	return fmt.Errorf("pin %d: inputs are not supported on the mcu backend", pin)
}

func (g *GPIO) SetPin(pin core.GPIOPin, value bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return errors.New("mcu gpio closed")
	}
	oid, ok := g.oids[pin]
	if !ok {
		return fmt.Errorf("pin %d not configured as output", pin)
	}
	ctx, cancel := context.WithTimeout(context.Background(), g.Timeout)
	defer cancel()
	if !g.finalized {
		if err := g.configure(ctx); err != nil {
			return err
		}
	}
	return g.client.Send(ctx, "update_digital_out", map[string]any{"oid": oid, "value": value})
}

// configCommands returns the configuration sequence; its text also
// yields the configuration crc.
func (g *GPIO) configCommands() []string {
	cmds := []string{fmt.Sprintf("allocate_oids count=%d", len(g.pins))}
	for oid, pin := range g.pins {
		cmds = append(cmds, fmt.Sprintf(
			"config_digital_out oid=%d pin=%d value=0 default_value=0 max_duration=0", oid, pin))
	}
	return cmds
}

func (g *GPIO) configure(ctx context.Context) error {
	cmds := g.configCommands()
	crc := crc32.ChecksumIEEE([]byte(strings.Join(cmds, "\n")))

	state, err := g.client.Query(ctx, "get_config", nil, "config")
	if err != nil {
		return fmt.Errorf("get_config: %w", err)
	}
	isShutdown, err := intArg(state, "is_shutdown")
	if err != nil {
		return err
	}
	if isShutdown != 0 {
		return errors.New("mcu is shut down, reset it first")
	}
	isConfig, err := intArg(state, "is_config")
	if err != nil {
		return err
	}
	if isConfig != 0 {
		got, err := intArg(state, "crc")
		if err != nil {
			return err
		}
		if uint32(got) == crc {
			g.client.logger.Info("mcu already configured", "crc", crc)
			g.finalized = true
			return nil
		}
		if !g.client.Dictionary().HasCommand("config_reset") {
			return fmt.Errorf("mcu configured with crc %d, want %d: reset it first", got, crc)
		}
		g.client.logger.Warn("mcu configuration differs, resetting", "crc", got, "want", crc)
		if err := g.client.Send(ctx, "config_reset", nil); err != nil {
			return fmt.Errorf("config_reset: %w", err)
		}
	}

	if err := g.client.Send(ctx, "allocate_oids", map[string]any{"count": len(g.pins)}); err != nil {
		return fmt.Errorf("allocate_oids: %w", err)
	}
	for oid, pin := range g.pins {
		err := g.client.Send(ctx, "config_digital_out", map[string]any{
			"oid": oid, "pin": pin, "value": 0, "default_value": 0, "max_duration": 0,
		})
		if err != nil {
			return fmt.Errorf("config_digital_out pin %d: %w", pin, err)
		}
	}
	if err := g.client.Send(ctx, "finalize_config", map[string]any{"crc": crc}); err != nil {
		return fmt.Errorf("finalize_config: %w", err)
	}
	g.finalized = true
	g.client.logger.Info("mcu configured", "outputs", len(g.pins), "crc", crc)
	return nil
}

func intArg(args map[string]any, name string) (int64, error) {
	v, ok := args[name].(int64)
	if !ok {
		return 0, fmt.Errorf("config response has no integer %q", name)
	}
	return v, nil
}

// SupportsRealTiming is true: each write reaches the pin before SetPin
// returns, so host-side pacing is meaningful.
func (g *GPIO) SupportsRealTiming() bool { return true }

// Close drives every output low and closes the MCU connection.
func (g *GPIO) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true
	var errs []error
	if g.finalized {
		ctx, cancel := context.WithTimeout(context.Background(), g.Timeout)
		for oid := range g.pins {
			if err := g.client.Send(ctx, "update_digital_out", map[string]any{"oid": oid, "value": 0}); err != nil {
				errs = append(errs, err)
				break
			}
		}
		cancel()
	}
	errs = append(errs, g.client.Close())
	return errors.Join(errs...)
}
