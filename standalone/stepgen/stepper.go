package stepgen

import (
	"fmt"

	"spider/core"
	"spider/standalone"
)

// Stepper represents a single cable motor's step/dir pin pair
type Stepper struct {
	name   string
	config standalone.MotorConfig
	driver core.GPIODriver

	stepPin core.GPIOPin
	dirPin  core.GPIOPin

	direction int // Last direction written, 0 before the first move
}

// NewStepper creates a new stepper motor controller
func NewStepper(config standalone.MotorConfig) (*Stepper, error) {
	stepPin, err := core.LookupPin(config.StepPin)
	if err != nil {
		return nil, fmt.Errorf("motor %s step pin: %w", config.Name, err)
	}
	dirPin, err := core.LookupPin(config.DirPin)
	if err != nil {
		return nil, fmt.Errorf("motor %s dir pin: %w", config.Name, err)
	}
	return &Stepper{
		name:    config.Name,
		config:  config,
		stepPin: stepPin,
		dirPin:  dirPin,
	}, nil
}

// InitPins configures both pins as outputs and drives them low
func (s *Stepper) InitPins(gpioDriver core.GPIODriver) error {
	for _, pin := range []core.GPIOPin{s.stepPin, s.dirPin} {
		if err := gpioDriver.ConfigureOutput(pin); err != nil {
			return fmt.Errorf("motor %s: configure pin %d: %w", s.name, pin, err)
		}
		if err := gpioDriver.SetPin(pin, false); err != nil {
			return fmt.Errorf("motor %s: reset pin %d: %w", s.name, pin, err)
		}
	}
	s.driver = gpioDriver
	return nil
}

// SetDirection drives the direction pin: high lengthens the cable unless
// the motor is configured inverted.
func (s *Stepper) SetDirection(sign int) error {
	level := sign >= 0
	if s.config.InvertDir {
		level = !level
	}
	if err := s.driver.SetPin(s.dirPin, level); err != nil {
		return err
	}
	s.direction = sign
	return nil
}

// StepHigh starts a step pulse.
func (s *Stepper) StepHigh() error { return s.driver.SetPin(s.stepPin, true) }

// StepLow ends a step pulse.
func (s *Stepper) StepLow() error { return s.driver.SetPin(s.stepPin, false) }

func (s *Stepper) Name() string          { return s.name }
func (s *Stepper) StepPin() core.GPIOPin { return s.stepPin }
func (s *Stepper) DirPin() core.GPIOPin  { return s.dirPin }
func (s *Stepper) Direction() int        { return s.direction }
