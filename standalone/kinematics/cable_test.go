package kinematics

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"spider/standalone"
)

func defaultGeometry(t *testing.T) *Geometry {
	t.Helper()
	g, err := NewGeometry(standalone.GeometryConfig{
		InnerRadius: DefaultInnerRadius,
		OuterRadius: DefaultOuterRadius,
	})
	if err != nil {
		t.Fatalf("NewGeometry failed: %v", err)
	}
	return g
}

func TestDefaultLayout(t *testing.T) {
	g := defaultGeometry(t)
	anchors := g.Anchors()

	want := standalone.Position{X: DefaultOuterRadius * math.Cos(150*math.Pi/180), Y: DefaultOuterRadius * 0.5}
	if anchors[0].Dist(want) > 1e-9 {
		t.Errorf("anchor 0 = %v, want %v", anchors[0], want)
	}
	if anchors[2].Dist(standalone.Position{Y: -DefaultOuterRadius}) > 1e-9 {
		t.Errorf("anchor 2 = %v, want (0, -%g, 0)", anchors[2], DefaultOuterRadius)
	}
	if g.OuterRadius() != DefaultOuterRadius || g.InnerRadius() != DefaultInnerRadius {
		t.Errorf("radii = %g/%g", g.InnerRadius(), g.OuterRadius())
	}
}

func TestInverseAtOrigin(t *testing.T) {
	g := defaultGeometry(t)
	l, err := g.Inverse(standalone.Origin)
	if err != nil {
		t.Fatalf("Inverse failed: %v", err)
	}
	for i, v := range l {
		if math.Abs(v-(DefaultOuterRadius-DefaultInnerRadius)) > 1e-9 {
			t.Errorf("motor %d length = %g, want %g", i, v, DefaultOuterRadius-DefaultInnerRadius)
		}
	}
}

func TestInverseRejectsNaN(t *testing.T) {
	g := defaultGeometry(t)
	_, err := g.Inverse(standalone.Position{X: math.NaN()})
	if !errors.Is(err, ErrDegenerateGeometry) {
		t.Fatalf("expected degenerate geometry, got %v", err)
	}
	if !errors.Is(err, standalone.ErrKinematicsInconsistency) {
		t.Errorf("expected kinematics inconsistency, got %v", err)
	}
}

func TestInverseRejectsOverflow(t *testing.T) {
	g := defaultGeometry(t)
	_, err := g.Inverse(standalone.Position{X: math.MaxFloat64, Y: math.MaxFloat64})
	if !errors.Is(err, ErrDegenerateGeometry) {
		t.Fatalf("expected degenerate geometry, got %v", err)
	}
	var solveErr *SolveError
	if !errors.As(err, &solveErr) || len(solveErr.Motors) != 1 {
		t.Errorf("expected the motor in error detail, got %v", err)
	}
}

func TestRoundTrip(t *testing.T) {
	g := defaultGeometry(t)
	solvers := []ForwardSolver{PairwiseSolver{}, PlaneIntersectionSolver{}}

	rng := rand.New(rand.NewSource(1))
	points := []standalone.Position{{}, {Z: -4}, {X: 1, Y: -2, Z: -0.5}}
	for i := 0; i < 100; i++ {
		points = append(points, standalone.Position{
			X: rng.Float64()*6 - 3,
			Y: rng.Float64()*6 - 3,
			Z: -1 - rng.Float64(),
		})
	}

	for _, solver := range solvers {
		t.Run(solver.Name(), func(t *testing.T) {
			k := NewCable(g, solver)
			var worst float64
			for _, p := range points {
				l, err := k.Inverse(p)
				if err != nil {
					t.Fatalf("Inverse(%v) failed: %v", p, err)
				}
				got, err := k.Forward(l)
				if err != nil {
					t.Fatalf("Forward(%v) failed: %v", l, err)
				}
				d := got.Dist(p)
				worst = math.Max(worst, d)
				if d > 0.1 {
					t.Errorf("round trip %v -> %v (error %g)", p, got, d)
				}
			}
			if worst > 1e-6 {
				t.Errorf("worst round trip error %g exceeds 1e-6", worst)
			}
		})
	}
}

// Lengths rounded to whole steps are what the planner hands the forward
// solver. With every reference point at z = 0 the three sphere-difference
// planes meet on one vertical line, so both solvers land on the same point.
func TestQuantizedRoundTrip(t *testing.T) {
	const stepsPerUnit = 200
	g := defaultGeometry(t)
	pairwise := NewCable(g, PairwiseSolver{})
	plane := NewCable(g, PlaneIntersectionSolver{})

	rng := rand.New(rand.NewSource(7))
	var sumPairwise, sumPlane, worstPairwise, worstPlane float64
	const n = 2000
	for i := 0; i < n; i++ {
		p := standalone.Position{
			X: rng.Float64()*6 - 3,
			Y: rng.Float64()*6 - 3,
			Z: -1 - rng.Float64(),
		}
		l, err := g.Inverse(p)
		if err != nil {
			t.Fatalf("Inverse(%v) failed: %v", p, err)
		}
		for j := range l {
			l[j] = math.Round(l[j]*stepsPerUnit) / stepsPerUnit
		}

		a, err := pairwise.Forward(l)
		if err != nil {
			t.Fatalf("pairwise Forward(%v) failed: %v", l, err)
		}
		b, err := plane.Forward(l)
		if err != nil {
			t.Fatalf("plane Forward(%v) failed: %v", l, err)
		}
		if d := a.Dist(b); d > 1e-8 {
			t.Errorf("solvers disagree at %v: pairwise %v, plane %v", p, a, b)
		}

		ea, eb := a.Dist(p), b.Dist(p)
		sumPairwise += ea
		sumPlane += eb
		worstPairwise = math.Max(worstPairwise, ea)
		worstPlane = math.Max(worstPlane, eb)
	}
	t.Logf("pairwise: mean %.6g worst %.6g", sumPairwise/n, worstPairwise)
	t.Logf("plane:    mean %.6g worst %.6g", sumPlane/n, worstPlane)
	if mean := sumPairwise / n; mean > 0.05 {
		t.Errorf("pairwise mean error %g exceeds 0.05", mean)
	}
	if math.Abs(sumPairwise-sumPlane)/n > 1e-9 {
		t.Errorf("mean errors differ: pairwise %g, plane %g", sumPairwise/n, sumPlane/n)
	}
}

func TestPlaneSolverTiltedAnchors(t *testing.T) {
	g, err := NewGeometry(standalone.GeometryConfig{
		Anchors: []standalone.Position{{X: -10, Y: 5, Z: 0.5}, {X: 10, Y: 5}, {Y: -12, Z: -0.5}},
		Links:   []standalone.Position{{X: -1}, {X: 1}, {Y: -1}},
	})
	if err != nil {
		t.Fatalf("NewGeometry failed: %v", err)
	}
	want := standalone.Position{X: 0.5, Y: -1, Z: -3}
	l, _ := g.Inverse(want)

	got, err := PlaneIntersectionSolver{}.Forward(g, l)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	if got.Dist(want) > 1e-6 {
		t.Errorf("Forward = %v, want %v", got, want)
	}

	_, err = PairwiseSolver{}.Forward(g, l)
	if !errors.Is(err, ErrPlanarAssumptionViolated) {
		t.Fatalf("expected planar assumption violation, got %v", err)
	}
	var solveErr *SolveError
	if !errors.As(err, &solveErr) || len(solveErr.Motors) != 1 || solveErr.Motors[0] != 0 {
		t.Errorf("expected motor 0 in error detail, got %v", err)
	}
}

func TestForwardCablesTooShort(t *testing.T) {
	g := defaultGeometry(t)
	for _, solver := range []ForwardSolver{PairwiseSolver{}, PlaneIntersectionSolver{}} {
		_, err := solver.Forward(g, Lengths{1, 1, 1})
		if !errors.Is(err, ErrNoConsistentIntersection) {
			t.Errorf("%s: expected no consistent intersection, got %v", solver.Name(), err)
		}
		if !errors.Is(err, standalone.ErrKinematicsInconsistency) {
			t.Errorf("%s: expected kinematics inconsistency, got %v", solver.Name(), err)
		}
	}
}

func TestForwardRejectsNegativeLength(t *testing.T) {
	g := defaultGeometry(t)
	_, err := PairwiseSolver{}.Forward(g, Lengths{12, -1, 12})
	if !errors.Is(err, ErrDegenerateGeometry) {
		t.Errorf("expected degenerate geometry, got %v", err)
	}
}

func TestSphereIntersectionDistance(t *testing.T) {
	c1 := standalone.Position{}
	c2 := standalone.Position{X: 10}
	tests := []struct {
		name   string
		r1, r2 float64
		want   float64
	}{
		{"equal", 6, 6, 5},
		{"offset", 8, 6, (64 - 36 + 100) / 20.0},
		{"second inside first", 20, 2, (10 + 2 + 20) / 2.0},
		{"first inside second", 2, 20, -(2 - 10 + 20) / 2.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SphereIntersectionDistance(c1, tt.r1, c2, tt.r2)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("SphereIntersectionDistance = %g, want %g", got, tt.want)
			}
		})
	}
}

func TestNewGeometryRejectsDegenerate(t *testing.T) {
	tests := []struct {
		name string
		cfg  standalone.GeometryConfig
	}{
		{"zero outer radius", standalone.GeometryConfig{InnerRadius: 1}},
		{"inner beyond outer", standalone.GeometryConfig{InnerRadius: 5, OuterRadius: 4}},
		{"two angles", standalone.GeometryConfig{InnerRadius: 1, OuterRadius: 4, Angles: []float64{0, 90}}},
		{"coincident anchors", standalone.GeometryConfig{InnerRadius: 1, OuterRadius: 4, Angles: []float64{0, 0, 90}}},
		{"collinear anchors", standalone.GeometryConfig{
			Anchors: []standalone.Position{{X: -1}, {X: 0}, {X: 1}},
			Links:   []standalone.Position{{}, {}, {}},
		}},
		{"tilted link", standalone.GeometryConfig{
			Anchors: []standalone.Position{{X: -10}, {X: 10}, {Y: 10}},
			Links:   []standalone.Position{{Z: 1}, {}, {}},
		}},
		{"missing links", standalone.GeometryConfig{
			Anchors: []standalone.Position{{X: -10}, {X: 10}, {Y: 10}},
		}},
		{"nan anchor", standalone.GeometryConfig{
			Anchors: []standalone.Position{{X: math.NaN()}, {X: 10}, {Y: 10}},
			Links:   []standalone.Position{{}, {}, {}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGeometry(tt.cfg)
			if !errors.Is(err, standalone.ErrConfiguration) {
				t.Fatalf("expected configuration error, got %v", err)
			}
			if !errors.Is(err, ErrDegenerateGeometry) {
				t.Errorf("expected degenerate geometry, got %v", err)
			}
		})
	}
}

func TestSolverByName(t *testing.T) {
	for name, want := range map[string]string{"": SolverPairwise, "pairwise": SolverPairwise, "plane": SolverPlane} {
		s, err := SolverByName(name)
		if err != nil || s.Name() != want {
			t.Errorf("SolverByName(%q) = %v, %v", name, s, err)
		}
	}
	if _, err := SolverByName("least-squares"); err == nil {
		t.Errorf("expected error for unknown solver")
	}
}
