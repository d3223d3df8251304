// Package path reads drawing routes and turns them into relative moves.
package path

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"spider/standalone"
)

// ErrEmptyRoute is returned when a route has no points to work with.
var ErrEmptyRoute = errors.New("empty route")

// Read parses one point per record: "x,y" or "x,y,z". Missing z is 0.
// Lines starting with '#' are skipped.
func Read(r io.Reader) ([]standalone.Position, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var route []standalone.Position
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := cr.FieldPos(0)
		if len(rec) < 2 || len(rec) > 3 {
			return nil, fmt.Errorf("line %d: expected 2 or 3 fields, got %d", line, len(rec))
		}
		var v [3]float64
		for i, field := range rec {
			f, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d field %d: %w", line, i+1, err)
			}
			v[i] = f
		}
		p := standalone.Position{X: v[0], Y: v[1], Z: v[2]}
		if !p.IsFinite() {
			return nil, fmt.Errorf("line %d: non-finite point %v", line, p)
		}
		route = append(route, p)
	}
	return route, nil
}

// Normalize divides the route by its largest absolute coordinate and
// multiplies it by scale. With center set, x and y are shifted so their
// ranges are symmetric about zero. The origin is prepended so the route
// starts where the platform rests.
func Normalize(route []standalone.Position, scale float64, center bool) ([]standalone.Position, error) {
	if len(route) == 0 {
		return nil, ErrEmptyRoute
	}
	var peak float64
	for _, p := range route {
		peak = math.Max(peak, math.Max(math.Abs(p.X), math.Max(math.Abs(p.Y), math.Abs(p.Z))))
	}
	if peak == 0 {
		return nil, fmt.Errorf("%w: every point is at the origin", ErrEmptyRoute)
	}

	out := make([]standalone.Position, 0, len(route)+1)
	out = append(out, standalone.Origin)
	for _, p := range route {
		out = append(out, p.Scale(scale/peak))
	}
	if center {
		lo, hi := Bounds(out[1:])
		shift := standalone.Position{X: (lo.X + hi.X) / 2, Y: (lo.Y + hi.Y) / 2}
		for i := 1; i < len(out); i++ {
			out[i] = out[i].Sub(shift)
		}
	}
	return out, nil
}

// Bounds returns the per-axis minimum and maximum of the route.
func Bounds(route []standalone.Position) (lo, hi standalone.Position) {
	if len(route) == 0 {
		return
	}
	lo, hi = route[0], route[0]
	for _, p := range route[1:] {
		lo = standalone.Position{X: math.Min(lo.X, p.X), Y: math.Min(lo.Y, p.Y), Z: math.Min(lo.Z, p.Z)}
		hi = standalone.Position{X: math.Max(hi.X, p.X), Y: math.Max(hi.Y, p.Y), Z: math.Max(hi.Z, p.Z)}
	}
	return lo, hi
}

// Deltas returns the relative moves between consecutive points.
func Deltas(route []standalone.Position) []standalone.Position {
	if len(route) < 2 {
		return nil
	}
	d := make([]standalone.Position, len(route)-1)
	for i := 1; i < len(route); i++ {
		d[i-1] = route[i].Sub(route[i-1])
	}
	return d
}

// Length returns the polyline length of the route.
func Length(route []standalone.Position) float64 {
	var total float64
	for i := 1; i < len(route); i++ {
		total += route[i].Dist(route[i-1])
	}
	return total
}
