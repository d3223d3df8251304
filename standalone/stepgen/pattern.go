package stepgen

import (
	"fmt"

	"spider/standalone"
)

// Frame is one pulse time slice: true for every motor that steps in it.
type Frame [standalone.NumMotors]bool

// Pattern is the interleaved pulse schedule for one move.
type Pattern struct {
	steps  [standalone.NumMotors]int
	frames []Frame
}

// InvariantError reports a pattern whose pulse totals do not match the
// requested steps. It is only ever raised as a panic value: it means the
// synthesizer is broken, not that the move was bad.
type InvariantError struct {
	Motor int // -1 for the frame count
	Want  int
	Got   int
}

func (e *InvariantError) Error() string {
	if e.Motor < 0 {
		return fmt.Sprintf("step synthesis invariant violated: %d frames, want %d", e.Got, e.Want)
	}
	return fmt.Sprintf("step synthesis invariant violated: motor %d pulsed %d times, want %d", e.Motor, e.Got, e.Want)
}

// Synthesize spreads |steps[i]| pulses per motor over max|steps| frames.
// Each motor runs a Bresenham accumulator scaled by the frame count, so a
// motor needing fewer steps pulses at evenly spaced frames instead of
// bunching at either end.
func Synthesize(steps [standalone.NumMotors]int) Pattern {
	var want [standalone.NumMotors]int
	maxSteps := 0
	for i, s := range steps {
		want[i] = abs(s)
		maxSteps = max(maxSteps, want[i])
	}
	p := Pattern{steps: steps}
	if maxSteps == 0 {
		return p
	}

	var acc, done [standalone.NumMotors]int
	p.frames = make([]Frame, 0, maxSteps)
	for done != want && len(p.frames) <= maxSteps {
		var f Frame
		for i := range acc {
			acc[i] += want[i]
			if acc[i] >= maxSteps && done[i] < want[i] {
				f[i] = true
				done[i]++
				acc[i] -= maxSteps
			}
		}
		p.frames = append(p.frames, f)
	}

	if err := p.check(); err != nil {
		panic(err)
	}
	return p
}

func (p Pattern) check() *InvariantError {
	want := 0
	totals := p.Totals()
	for i, s := range p.steps {
		if totals[i] != abs(s) {
			return &InvariantError{Motor: i, Want: abs(s), Got: totals[i]}
		}
		want = max(want, abs(s))
	}
	if len(p.frames) != want {
		return &InvariantError{Motor: -1, Want: want, Got: len(p.frames)}
	}
	return nil
}

// Frames returns the pulse frames in emission order.
func (p Pattern) Frames() []Frame { return p.frames }

// Len returns the number of frames.
func (p Pattern) Len() int { return len(p.frames) }

// Steps returns the signed step counts the pattern was built for.
func (p Pattern) Steps() [standalone.NumMotors]int { return p.steps }

// Directions returns the sign of each motor's step count.
func (p Pattern) Directions() [standalone.NumMotors]int {
	var d [standalone.NumMotors]int
	for i, s := range p.steps {
		switch {
		case s > 0:
			d[i] = 1
		case s < 0:
			d[i] = -1
		}
	}
	return d
}

// Totals counts the pulses per motor across all frames.
func (p Pattern) Totals() [standalone.NumMotors]int {
	var t [standalone.NumMotors]int
	for _, f := range p.frames {
		for i, on := range f {
			if on {
				t[i]++
			}
		}
	}
	return t
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
