package kinematics

import (
	"fmt"
	"math"

	"spider/standalone"
)

// Default layout of the printer frame, in units of one motor revolution
// (40 mm of cable).
const (
	DefaultInnerRadius = 1.35
	DefaultOuterRadius = 554.0 / 40.0
)

// DefaultAngles places the anchors at 150°, 30° and 270°.
var DefaultAngles = []float64{150, 30, 270}

const (
	coincidentTolerance = 1e-9
	planarTolerance     = 1e-4
)

// Geometry is the fixed anchor layout of one robot. It is never mutated
// after NewGeometry returns.
type Geometry struct {
	anchors [standalone.NumMotors]standalone.Position
	links   [standalone.NumMotors]standalone.Position
	refs    [standalone.NumMotors]standalone.Position
	inner   float64
	outer   float64
}

// NewGeometry builds and validates a geometry. Explicit anchors and links
// take precedence over the radius/angle layout.
func NewGeometry(cfg standalone.GeometryConfig) (*Geometry, error) {
	g := &Geometry{}

	switch {
	case len(cfg.Anchors) > 0 || len(cfg.Links) > 0:
		if len(cfg.Anchors) != standalone.NumMotors || len(cfg.Links) != standalone.NumMotors {
			return nil, configError("need %d anchors and %d links, got %d and %d",
				standalone.NumMotors, standalone.NumMotors, len(cfg.Anchors), len(cfg.Links))
		}
		copy(g.anchors[:], cfg.Anchors)
		copy(g.links[:], cfg.Links)
		for i := range g.anchors {
			g.outer += g.anchors[i].XY().Norm() / standalone.NumMotors
			g.inner += g.links[i].XY().Norm() / standalone.NumMotors
		}
	default:
		angles := cfg.Angles
		if len(angles) == 0 {
			angles = DefaultAngles
		}
		if len(angles) != standalone.NumMotors {
			return nil, configError("need %d anchor angles, got %d", standalone.NumMotors, len(angles))
		}
		if !(cfg.OuterRadius > 0) || cfg.InnerRadius < 0 || math.IsInf(cfg.OuterRadius, 0) {
			return nil, configError("invalid radii inner=%g outer=%g", cfg.InnerRadius, cfg.OuterRadius)
		}
		if cfg.InnerRadius >= cfg.OuterRadius {
			return nil, configError("inner radius %g must be smaller than outer radius %g",
				cfg.InnerRadius, cfg.OuterRadius)
		}
		for i, deg := range angles {
			unit := angleUnit(deg)
			g.anchors[i] = unit.Scale(cfg.OuterRadius)
			g.links[i] = unit.Scale(cfg.InnerRadius)
		}
		g.inner, g.outer = cfg.InnerRadius, cfg.OuterRadius
	}

	for i := range g.anchors {
		if !g.anchors[i].IsFinite() || !g.links[i].IsFinite() {
			return nil, configError("motor %d: non-finite anchor %v or link %v", i, g.anchors[i], g.links[i])
		}
		if math.Abs(g.links[i].Z) > coincidentTolerance {
			return nil, configError("motor %d: link offset z=%g, want 0", i, g.links[i].Z)
		}
		g.refs[i] = g.anchors[i].Sub(g.links[i])
	}
	for i := 0; i < standalone.NumMotors; i++ {
		for j := i + 1; j < standalone.NumMotors; j++ {
			if d := g.refs[i].Dist(g.refs[j]); d < coincidentTolerance {
				return nil, configError("motors %d-%d: reference points coincide (distance %g)", i, j, d)
			}
		}
	}
	area := g.refs[1].Sub(g.refs[0]).Cross(g.refs[2].Sub(g.refs[0])).Norm() / 2
	if area < coincidentTolerance {
		return nil, configError("reference points are collinear (triangle area %g)", area)
	}
	return g, nil
}

func configError(format string, args ...any) error {
	return fmt.Errorf("%w: %w: %s", standalone.ErrConfiguration, ErrDegenerateGeometry, fmt.Sprintf(format, args...))
}

func angleUnit(deg float64) standalone.Position {
	rad := deg * math.Pi / 180
	return standalone.Position{X: math.Cos(rad), Y: math.Sin(rad)}
}

// Anchors returns the fixed cable anchor positions.
func (g *Geometry) Anchors() [standalone.NumMotors]standalone.Position { return g.anchors }

// Links returns the platform-relative cable attachment offsets.
func (g *Geometry) Links() [standalone.NumMotors]standalone.Position { return g.links }

// ReferencePoints returns anchor_i - link_i, the centre of each cable's
// length sphere in platform coordinates.
func (g *Geometry) ReferencePoints() [standalone.NumMotors]standalone.Position { return g.refs }

// InnerRadius returns the mean platform-side link radius.
func (g *Geometry) InnerRadius() float64 { return g.inner }

// OuterRadius returns the mean anchor radius.
func (g *Geometry) OuterRadius() float64 { return g.outer }

// Inverse returns the cable lengths that place the platform at pos.
func (g *Geometry) Inverse(pos standalone.Position) (Lengths, error) {
	var l Lengths
	if !pos.IsFinite() {
		return l, &SolveError{Op: "inverse", Got: math.NaN(), Want: "finite position", Err: ErrDegenerateGeometry}
	}
	for i, anchor := range g.anchors {
		l[i] = anchor.Sub(pos.Add(g.links[i])).Norm()
		if math.IsInf(l[i], 0) || math.IsNaN(l[i]) {
			return l, &SolveError{Op: "inverse", Motors: []int{i}, Got: l[i], Want: "finite length", Err: ErrDegenerateGeometry}
		}
	}
	return l, nil
}
