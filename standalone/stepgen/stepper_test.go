package stepgen

import (
	"testing"

	"spider/core"
	"spider/standalone"
)

func TestStepperPins(t *testing.T) {
	gpio := core.NewFakeGPIO()
	s, err := NewStepper(standalone.MotorConfig{Name: "alice", StepPin: "gpio2", DirPin: "gpio3"})
	if err != nil {
		t.Fatalf("NewStepper failed: %v", err)
	}
	if err := s.InitPins(gpio); err != nil {
		t.Fatalf("InitPins failed: %v", err)
	}

	if err := s.SetDirection(1); err != nil {
		t.Fatalf("SetDirection failed: %v", err)
	}
	if !gpio.Level(3) {
		t.Errorf("dir pin should be high for a lengthening move")
	}
	if err := s.SetDirection(-1); err != nil {
		t.Fatalf("SetDirection failed: %v", err)
	}
	if gpio.Level(3) {
		t.Errorf("dir pin should be low for a shortening move")
	}

	_ = s.StepHigh()
	_ = s.StepLow()
	_ = s.StepHigh()
	_ = s.StepLow()
	if got := gpio.RisingEdges(2); got != 2 {
		t.Errorf("expected 2 step pulses, got %d", got)
	}
}

func TestStepperInvertDir(t *testing.T) {
	gpio := core.NewFakeGPIO()
	s, _ := NewStepper(standalone.MotorConfig{Name: "bob", StepPin: "17", DirPin: "27", InvertDir: true})
	if err := s.InitPins(gpio); err != nil {
		t.Fatalf("InitPins failed: %v", err)
	}
	_ = s.SetDirection(1)
	if gpio.Level(27) {
		t.Errorf("inverted dir pin should be low for a lengthening move")
	}
	if s.Direction() != 1 {
		t.Errorf("Direction() = %d, want 1", s.Direction())
	}
}

func TestNewStepperBadPin(t *testing.T) {
	if _, err := NewStepper(standalone.MotorConfig{Name: "carlos", StepPin: "x", DirPin: "11"}); err == nil {
		t.Errorf("expected error for invalid step pin")
	}
}
