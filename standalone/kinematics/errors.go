package kinematics

import (
	"errors"
	"fmt"
	"strings"

	"spider/standalone"
)

var (
	// ErrDegenerateGeometry marks NaN input, coincident or collinear anchors.
	ErrDegenerateGeometry = errors.New("degenerate geometry")

	// ErrPlanarAssumptionViolated marks anchors off the z = 0 plane.
	ErrPlanarAssumptionViolated = errors.New("planar assumption violated")

	// ErrNoConsistentIntersection marks cable spheres that do not meet in one point.
	ErrNoConsistentIntersection = errors.New("no consistent intersection")
)

// SolveError describes a failed solve with the values needed to diagnose a
// miscalibrated geometry.
type SolveError struct {
	Op     string // "inverse", "forward pairwise", "forward plane"
	Motors []int  // Motor or motor pair involved, if any
	Got    float64
	Want   string
	Err    error
}

func (e *SolveError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	switch len(e.Motors) {
	case 1:
		fmt.Fprintf(&b, ": motor %d", e.Motors[0])
	case 2:
		fmt.Fprintf(&b, ": motors %d-%d", e.Motors[0], e.Motors[1])
	}
	if e.Want != "" {
		fmt.Fprintf(&b, ": got %.6g, want %s", e.Got, e.Want)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *SolveError) Unwrap() []error {
	return []error{e.Err, standalone.ErrKinematicsInconsistency}
}
