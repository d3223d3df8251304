package planner

import (
	"errors"
	"fmt"

	"spider/core"
	"spider/standalone"
)

var (
	// ErrStopped is returned for jobs submitted after Stop.
	ErrStopped = errors.New("planner stopped")

	// ErrDiscarded is returned to synchronous jobs dropped by Flush or by
	// a hardware failure ahead of them.
	ErrDiscarded = errors.New("job discarded")

	// ErrMoveTooLarge is returned for a job needing more than MaxMoveSteps
	// steps on one motor.
	ErrMoveTooLarge = errors.New("move too large")
)

// MaxMoveSteps bounds the steps of one motor in a single job.
const MaxMoveSteps = 1 << 24

// HardwareError reports a failed pin write during a job.
type HardwareError struct {
	Motor string
	Pin   core.GPIOPin
	Op    string // "dir", "step high", "step low"
	Err   error
}

func (e *HardwareError) Error() string {
	return fmt.Sprintf("motor %s: %s on pin %d: %v", e.Motor, e.Op, e.Pin, e.Err)
}

func (e *HardwareError) Unwrap() []error {
	return []error{e.Err, standalone.ErrHardware}
}
