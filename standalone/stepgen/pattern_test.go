package stepgen

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"

	"spider/standalone"
)

func TestSynthesizeSmall(t *testing.T) {
	p := Synthesize([standalone.NumMotors]int{4, 2, -1})

	want := []Frame{
		{true, false, false},
		{true, true, false},
		{true, false, false},
		{true, true, true},
	}
	if diff := cmp.Diff(want, p.Frames()); diff != "" {
		t.Errorf("frames mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([standalone.NumMotors]int{1, 1, -1}, p.Directions()); diff != "" {
		t.Errorf("directions mismatch (-want +got):\n%s", diff)
	}
}

func TestSynthesizeZero(t *testing.T) {
	p := Synthesize([standalone.NumMotors]int{})
	if p.Len() != 0 {
		t.Errorf("expected empty pattern, got %d frames", p.Len())
	}
	if p.Directions() != ([standalone.NumMotors]int{}) {
		t.Errorf("expected zero directions, got %v", p.Directions())
	}
}

func TestSynthesizeEqualCountsPulseEveryFrame(t *testing.T) {
	p := Synthesize([standalone.NumMotors]int{-7, 0, -7})
	for i, f := range p.Frames() {
		if !f[0] || f[1] || !f[2] {
			t.Fatalf("frame %d = %v, want motors 0 and 2 only", i, f)
		}
	}
}

func TestSynthesizeConservation(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for n := 0; n < 500; n++ {
		var steps [standalone.NumMotors]int
		for i := range steps {
			steps[i] = rng.Intn(2001) - 1000
		}
		p := Synthesize(steps)

		maxSteps := 0
		for _, s := range steps {
			maxSteps = max(maxSteps, abs(s))
		}
		if p.Len() != maxSteps {
			t.Fatalf("steps %v: %d frames, want %d", steps, p.Len(), maxSteps)
		}
		totals := p.Totals()
		for i, s := range steps {
			if totals[i] != abs(s) {
				t.Fatalf("steps %v: motor %d pulsed %d, want %d", steps, i, totals[i], abs(s))
			}
		}
	}
}

func TestSynthesizeEvenDistribution(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for n := 0; n < 200; n++ {
		steps := [standalone.NumMotors]int{1 + rng.Intn(3000), rng.Intn(3000), -rng.Intn(3000)}
		p := Synthesize(steps)
		maxSteps := p.Len()

		for motor, s := range steps {
			count := abs(s)
			if count == 0 || count == maxSteps {
				continue
			}
			bound := 2 * float64(maxSteps) / float64(count)
			last := -1
			for i, f := range p.Frames() {
				if !f[motor] {
					continue
				}
				if gap := float64(i - last); gap > bound {
					t.Fatalf("steps %v: motor %d gap %g exceeds %g", steps, motor, gap, bound)
				}
				last = i
			}
		}
	}
}

func TestInvariantErrorMessage(t *testing.T) {
	var err error = &InvariantError{Motor: 2, Want: 5, Got: 4}
	var inv *InvariantError
	if !errors.As(err, &inv) || inv.Motor != 2 {
		t.Fatalf("errors.As failed for %v", err)
	}
	if got := err.Error(); got != "step synthesis invariant violated: motor 2 pulsed 4 times, want 5" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestPatternCheckDetectsMismatch(t *testing.T) {
	p := Pattern{steps: [standalone.NumMotors]int{2, 1, 0}, frames: []Frame{{true, true, false}, {false, false, false}}}
	err := p.check()
	if err == nil || err.Motor != 0 || err.Got != 1 {
		t.Errorf("expected motor 0 mismatch, got %v", err)
	}
}
