package core

import (
	"errors"
	"fmt"
	"sync"
)

// ErrInjected is returned by FakeGPIO once its write budget is spent.
var ErrInjected = errors.New("injected gpio failure")

// PinWrite is one SetPin call recorded by FakeGPIO.
type PinWrite struct {
	Pin   GPIOPin
	Value bool
}

// FakeGPIO is an in-memory GPIODriver. It records every write, never
// sleeps and can be told to fail after a number of writes.
type FakeGPIO struct {
	mu         sync.Mutex
	mode       PinMode
	outputs    map[GPIOPin]bool
	inputs     map[GPIOPin]Pull
	writes     []PinWrite
	failAfter  int
	failPin    GPIOPin
	failOnPin  bool
	closed     bool
	keepWrites bool
}

// NewFakeGPIO creates a fake driver that keeps a full write log.
func NewFakeGPIO() *FakeGPIO {
	return &FakeGPIO{
		outputs:    make(map[GPIOPin]bool),
		inputs:     make(map[GPIOPin]Pull),
		failAfter:  -1,
		keepWrites: true,
	}
}

// DiscardWrites stops the write log from growing, for long runs.
func (f *FakeGPIO) DiscardWrites() {
	f.mu.Lock()
	f.keepWrites = false
	f.writes = nil
	f.mu.Unlock()
}

// FailAfter makes every write after the next n succeed-writes fail.
func (f *FakeGPIO) FailAfter(n int) {
	f.mu.Lock()
	f.failAfter = n
	f.mu.Unlock()
}

// FailOn makes every write to pin fail.
func (f *FakeGPIO) FailOn(pin GPIOPin) {
	f.mu.Lock()
	f.failPin = pin
	f.failOnPin = true
	f.mu.Unlock()
}

func (f *FakeGPIO) SetMode(mode PinMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.outputs) > 0 || len(f.inputs) > 0 {
		return errors.New("pin mode must be set before configuring pins")
	}
	f.mode = mode
	return nil
}

func (f *FakeGPIO) ConfigureOutput(pin GPIOPin) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("gpio closed")
	}
	if _, err := ResolvePin(f.mode, pin); err != nil {
		return err
	}
	f.outputs[pin] = false
	return nil
}

func (f *FakeGPIO) ConfigureInput(pin GPIOPin, pull Pull) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := ResolvePin(f.mode, pin); err != nil {
		return err
	}
	f.inputs[pin] = pull
	return nil
}

func (f *FakeGPIO) SetPin(pin GPIOPin, value bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("gpio closed")
	}
	if _, ok := f.outputs[pin]; !ok {
		return fmt.Errorf("pin %d not configured as output", pin)
	}
	if f.failOnPin && f.failPin == pin {
		return fmt.Errorf("pin %d: %w", pin, ErrInjected)
	}
	if f.failAfter == 0 {
		return fmt.Errorf("pin %d: %w", pin, ErrInjected)
	}
	if f.failAfter > 0 {
		f.failAfter--
	}
	f.outputs[pin] = value
	if f.keepWrites {
		f.writes = append(f.writes, PinWrite{Pin: pin, Value: value})
	}
	return nil
}

// SupportsRealTiming is false: pulse pacing is skipped against the fake.
func (f *FakeGPIO) SupportsRealTiming() bool { return false }

func (f *FakeGPIO) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// Level returns the last value written to pin.
func (f *FakeGPIO) Level(pin GPIOPin) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outputs[pin]
}

// Writes returns a copy of the write log.
func (f *FakeGPIO) Writes() []PinWrite {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]PinWrite(nil), f.writes...)
}

// RisingEdges counts low-to-high transitions written to pin.
func (f *FakeGPIO) RisingEdges(pin GPIOPin) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	level := false
	for _, w := range f.writes {
		if w.Pin != pin {
			continue
		}
		if w.Value && !level {
			n++
		}
		level = w.Value
	}
	return n
}

// Closed reports whether Close was called.
func (f *FakeGPIO) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
