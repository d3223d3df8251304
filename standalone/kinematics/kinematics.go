package kinematics

import (
	"fmt"

	"spider/standalone"
)

// Lengths holds one cable length per motor.
type Lengths [standalone.NumMotors]float64

// Kinematics defines the interface for coordinate transformations
type Kinematics interface {
	// Inverse converts a platform position to cable lengths
	Inverse(pos standalone.Position) (Lengths, error)

	// Forward converts cable lengths to a platform position
	Forward(lengths Lengths) (standalone.Position, error)
}

// ForwardSolver is one strategy for recovering the platform position from
// cable lengths.
type ForwardSolver interface {
	Name() string
	Forward(g *Geometry, lengths Lengths) (standalone.Position, error)
}

// Solver names accepted by SolverByName.
const (
	SolverPairwise = "pairwise"
	SolverPlane    = "plane"
)

// SolverByName returns the forward strategy called name. An empty name
// selects the pairwise solver.
func SolverByName(name string) (ForwardSolver, error) {
	switch name {
	case "", SolverPairwise:
		return PairwiseSolver{}, nil
	case SolverPlane:
		return PlaneIntersectionSolver{}, nil
	default:
		return nil, fmt.Errorf("unknown forward solver %q", name)
	}
}

// Cable is the three-cable kinematics: inverse from the geometry, forward
// through the chosen solver.
type Cable struct {
	geom   *Geometry
	solver ForwardSolver
}

// NewCable creates cable kinematics. A nil solver selects the pairwise solver.
func NewCable(g *Geometry, solver ForwardSolver) *Cable {
	if solver == nil {
		solver = PairwiseSolver{}
	}
	return &Cable{geom: g, solver: solver}
}

// Geometry returns the anchor layout.
func (c *Cable) Geometry() *Geometry { return c.geom }

// Solver returns the forward strategy in use.
func (c *Cable) Solver() ForwardSolver { return c.solver }

func (c *Cable) Inverse(pos standalone.Position) (Lengths, error) {
	return c.geom.Inverse(pos)
}

func (c *Cable) Forward(lengths Lengths) (standalone.Position, error) {
	return c.solver.Forward(c.geom, lengths)
}
