package kinematics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"spider/standalone"
)

const (
	singularTolerance = 1e-12
	planeTolerance    = 1e-6
	// depthTolerance is relative to the longest squared cable length. It
	// absorbs step quantization when the platform sits near the anchor plane.
	depthTolerance = 1e-3
)

// PairwiseSolver recovers x and y from the three pairwise differences of
// the cable sphere equations and averages the three estimates. z is the
// negative root of the mean sphere equation: the platform hangs below the
// anchors. Requires every reference point to lie in z = 0.
type PairwiseSolver struct{}

func (PairwiseSolver) Name() string { return SolverPairwise }

func (PairwiseSolver) Forward(g *Geometry, l Lengths) (standalone.Position, error) {
	const op = "forward pairwise"
	if err := checkLengths(op, l); err != nil {
		return standalone.Position{}, err
	}
	refs := g.refs
	for i, c := range refs {
		if math.Abs(c.Z) > planarTolerance {
			return standalone.Position{}, &SolveError{Op: op, Motors: []int{i}, Got: c.Z,
				Want: fmt.Sprintf("|z| <= %g", planarTolerance), Err: ErrPlanarAssumptionViolated}
		}
	}

	// Row for pair (i, j): p·(c_i - c_j) = (|c_i|² - |c_j|² + l_j² - l_i²) / 2
	row := func(i, j int) (ax, ay, b float64) {
		d := refs[i].Sub(refs[j])
		b = (refs[i].Dot(refs[i]) - refs[j].Dot(refs[j]) + l[j]*l[j] - l[i]*l[i]) / 2
		return d.X, d.Y, b
	}

	var sum standalone.Position
	var xy mat.VecDense
	for i := 0; i < standalone.NumMotors; i++ {
		j, k := (i+1)%standalone.NumMotors, (i+2)%standalone.NumMotors
		a1x, a1y, b1 := row(i, j)
		a2x, a2y, b2 := row(i, k)
		a := mat.NewDense(2, 2, []float64{a1x, a1y, a2x, a2y})
		if det := mat.Det(a); math.Abs(det) < singularTolerance {
			return standalone.Position{}, &SolveError{Op: op, Motors: []int{j, k}, Got: det,
				Want: "non-singular system", Err: ErrDegenerateGeometry}
		}
		if err := xy.SolveVec(a, mat.NewVecDense(2, []float64{b1, b2})); err != nil {
			return standalone.Position{}, &SolveError{Op: op, Motors: []int{j, k}, Got: mat.Det(a),
				Want: "well-conditioned system", Err: fmt.Errorf("%w: %w", ErrDegenerateGeometry, err)}
		}
		sum.X += xy.AtVec(0)
		sum.Y += xy.AtVec(1)
	}
	p := sum.Scale(1.0 / standalone.NumMotors)

	var mean float64
	for i, c := range refs {
		mean += 2*p.Dot(c) + l[i]*l[i] - c.Dot(c) - p.Dot(p)
	}
	mean /= standalone.NumMotors
	z, err := negativeRoot(op, mean, l)
	if err != nil {
		return standalone.Position{}, err
	}
	p.Z = z
	return p, nil
}

// PlaneIntersectionSolver intersects the planes in which pairs of cable
// spheres meet, then places the platform on the resulting line at the
// depth where the first cable is taut.
type PlaneIntersectionSolver struct{}

func (PlaneIntersectionSolver) Name() string { return SolverPlane }

type plane struct {
	point, normal standalone.Position
	motors        [2]int
}

func (p plane) distance(x standalone.Position) float64 {
	return x.Sub(p.point).Dot(p.normal)
}

func (PlaneIntersectionSolver) Forward(g *Geometry, l Lengths) (standalone.Position, error) {
	const op = "forward plane"
	if err := checkLengths(op, l); err != nil {
		return standalone.Position{}, err
	}
	refs := g.refs

	var planes [3]plane
	for n, pair := range [3][2]int{{0, 1}, {1, 2}, {0, 2}} {
		i, j := pair[0], pair[1]
		normal := refs[j].Sub(refs[i]).Normalize()
		d := SphereIntersectionDistance(refs[i], l[i], refs[j], l[j])
		planes[n] = plane{point: refs[i].Add(normal.Scale(d)), normal: normal, motors: pair}
	}
	p1, p2, p3 := planes[0], planes[1], planes[2]

	// Line of planes 1 and 2: a point r12 reached from p1 inside plane 1,
	// and the direction t12.
	t1 := p2.normal.Sub(p1.normal.Scale(p2.normal.Dot(p1.normal))).Normalize()
	denom := t1.Dot(p2.normal)
	if math.Abs(denom) < singularTolerance {
		return standalone.Position{}, &SolveError{Op: op, Motors: p2.motors[:], Got: denom,
			Want: "planes not parallel", Err: ErrDegenerateGeometry}
	}
	r12 := p1.point.Add(t1.Scale(p2.point.Sub(p1.point).Dot(p2.normal) / denom))
	t12 := p1.normal.Cross(p2.normal).Normalize()

	pos := r12
	if dist := p3.distance(r12); math.Abs(dist) > planeTolerance {
		den := t12.Dot(p3.normal)
		if math.Abs(den) < singularTolerance {
			return standalone.Position{}, &SolveError{Op: op, Motors: p3.motors[:], Got: dist,
				Want: fmt.Sprintf("|distance| <= %g", planeTolerance), Err: ErrNoConsistentIntersection}
		}
		pos = r12.Sub(t12.Scale(dist / den))
	}
	for _, pl := range planes {
		if dist := pl.distance(pos); math.Abs(dist) > planeTolerance {
			return standalone.Position{}, &SolveError{Op: op, Motors: pl.motors[:], Got: dist,
				Want: fmt.Sprintf("|distance| <= %g", planeTolerance), Err: ErrNoConsistentIntersection}
		}
	}

	// Walk along the line to the lower point where cable 0 is taut:
	// |pos + s·t12 - c0|² = l0².
	w := pos.Sub(refs[0])
	wt := w.Dot(t12)
	disc := wt*wt - (w.Dot(w) - l[0]*l[0])
	if _, err := negativeRoot(op, disc, l); err != nil {
		return standalone.Position{}, err
	}
	root := math.Sqrt(math.Max(disc, 0))
	a := pos.Add(t12.Scale(-wt + root))
	b := pos.Add(t12.Scale(-wt - root))
	if a.Z < b.Z {
		return a, nil
	}
	return b, nil
}

// SphereIntersectionDistance returns the distance from c1, along the axis
// towards c2, to the plane in which spheres (c1, r1) and (c2, r2) meet. When
// one sphere lies inside the other the plane is placed midway through the
// gap inside the larger sphere.
func SphereIntersectionDistance(c1 standalone.Position, r1 float64, c2 standalone.Position, r2 float64) float64 {
	c := c1.Dist(c2)
	if c < math.Abs(r1-r2) {
		if r1 > r2 {
			return ((c + r2) + r1) / 2
		}
		return -(r1 - c + r2) / 2
	}
	return (r1*r1 - r2*r2 + c*c) / (2 * c)
}

func checkLengths(op string, l Lengths) error {
	for i, v := range l {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return &SolveError{Op: op, Motors: []int{i}, Got: v, Want: "finite length >= 0", Err: ErrDegenerateGeometry}
		}
	}
	return nil
}

// negativeRoot returns -sqrt(sq), clamping small negative values produced by
// step quantization to zero.
func negativeRoot(op string, sq float64, l Lengths) (float64, error) {
	var longest float64
	for _, v := range l {
		longest = math.Max(longest, v*v)
	}
	if sq < -depthTolerance*math.Max(longest, 1) {
		return 0, &SolveError{Op: op, Got: sq, Want: ">= 0 (cables too short to meet)", Err: ErrNoConsistentIntersection}
	}
	return -math.Sqrt(math.Max(sq, 0)), nil
}
