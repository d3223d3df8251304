package core

// GPIOPin identifies a hardware GPIO pin number
type GPIOPin uint32

// PinMode selects how pin numbers passed to a driver are interpreted.
type PinMode uint8

const (
	// ModeBCM interprets pin numbers as Broadcom GPIO channels
	ModeBCM PinMode = iota
	// ModeBoard interprets pin numbers as physical header positions
	ModeBoard
)

func (m PinMode) String() string {
	switch m {
	case ModeBCM:
		return "bcm"
	case ModeBoard:
		return "board"
	default:
		return "unknown"
	}
}

// Pull selects the bias resistor of an input pin.
type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

// GPIODriver is the abstract GPIO interface the motion code drives.
// Platform-specific implementations handle actual hardware control.
type GPIODriver interface {
	// SetMode selects the pin numbering scheme. It must be called before
	// any pin is configured.
	SetMode(mode PinMode) error

	// ConfigureOutput configures a pin as a digital output
	// Returns error if pin is invalid or already in use
	ConfigureOutput(pin GPIOPin) error

	// ConfigureInput configures a pin as a digital input with the given bias
	ConfigureInput(pin GPIOPin, pull Pull) error

	// SetPin sets the pin to high (true) or low (false)
	SetPin(pin GPIOPin, value bool) error

	// SupportsRealTiming reports whether pin writes reach real hardware.
	// Callers skip pulse pacing sleeps when it returns false.
	SupportsRealTiming() bool

	// Close releases the pins and the underlying device.
	Close() error
}
