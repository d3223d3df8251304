//go:build !linux

package core

import "errors"

// RPIOGPIO is only available on linux.
type RPIOGPIO struct{ FakeGPIO }

// OpenRPIO always fails off linux.
func OpenRPIO() (*RPIOGPIO, error) {
	return nil, errors.New("raspberry pi gpio is only supported on linux")
}
