package standalone

import "errors"

var (
	// ErrConfiguration marks degenerate or inconsistent machine configuration.
	// Construction aborts when it is returned.
	ErrConfiguration = errors.New("configuration error")

	// ErrKinematicsInconsistency marks a forward or inverse solve that failed
	// its consistency checks. Motor state is left untouched.
	ErrKinematicsInconsistency = errors.New("kinematics inconsistency")

	// ErrHardware marks a failed pin operation.
	ErrHardware = errors.New("hardware driver error")
)
