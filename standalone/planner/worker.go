package planner

import (
	"errors"
	"fmt"
	"math"
	"time"

	"spider/core"
	"spider/standalone"
	"spider/standalone/stepgen"
)

func (p *Planner) run() {
	defer close(p.done)
	for {
		p.mu.Lock()
		for len(p.queue) == 0 {
			p.cond.Wait()
		}
		j := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.mu.Unlock()

		if j.kind == jobStop {
			p.finish(j, nil)
			return
		}
		p.finish(j, p.runJob(j))
	}
}

// finish publishes the outcome of j. pending drops only here, after the
// job's state is visible to readers.
func (p *Planner) finish(j *job, err error) {
	var hw *HardwareError
	isHardware := errors.As(err, &hw)

	p.mu.Lock()
	// Synchronous callers get their error directly; hardware faults are
	// also kept for the next drain since they block further jobs.
	if err != nil && p.err == nil && (j.result == nil || isHardware) {
		p.err = err
	}
	if isHardware {
		p.faulted = true
		if n := p.flushLocked(ErrDiscarded); n > 0 {
			p.logger.Warn("discarded queued jobs after hardware failure", "jobs", n, "err", err)
		}
	}
	p.pending--
	p.cond.Broadcast()
	p.mu.Unlock()

	if j.result != nil {
		j.result <- err
	}
}

func (p *Planner) runJob(j *job) error {
	start := time.Now()
	r := Report{}
	switch j.kind {
	case jobMove:
		r.Kind = "move"
		r.Delta = j.vec
		r.Err = p.move(j.vec, &r)
	case jobMoveTo:
		r.Kind = "moveto"
		r.Delta = j.vec.Sub(p.pos)
		r.Err = p.move(r.Delta, &r)
	case jobTension:
		r.Kind = "tension"
		r.Err = p.tension(j.steps, &r)
	}
	r.Position = p.pos
	r.Duration = time.Since(start)

	if r.Err != nil {
		p.logger.Error("job failed", "kind", r.Kind, "delta", r.Delta, "err", r.Err)
	} else {
		p.logger.Debug("job done", "kind", r.Kind, "position", r.Position,
			"steps", r.Steps, "frames", r.Frames, "duration", r.Duration)
	}
	p.metrics.record(r, p.names)
	for _, o := range p.observers {
		o.JobDone(r)
	}
	return r.Err
}

// plan converts a relative move from pos into whole steps per motor. The
// fractional part is carried in the returned state, rounded so that every
// remainder stays in (-0.5, 0.5].
func (p *Planner) plan(pos, delta standalone.Position, motors [standalone.NumMotors]MotorState) (
	[standalone.NumMotors]int, [standalone.NumMotors]MotorState, error) {
	var steps [standalone.NumMotors]int
	from, err := p.kin.Inverse(pos)
	if err != nil {
		return steps, motors, err
	}
	to, err := p.kin.Inverse(pos.Add(delta))
	if err != nil {
		return steps, motors, err
	}
	next := motors
	for i := range steps {
		ideal := (to[i]-from[i])*p.cfg.StepsPerUnit + motors[i].Remainder
		if !(math.Abs(ideal) <= MaxMoveSteps) {
			return steps, motors, fmt.Errorf("%w: motor %s needs %g steps, limit %d",
				ErrMoveTooLarge, p.names[i], ideal, MaxMoveSteps)
		}
		n := math.Ceil(ideal - 0.5)
		steps[i] = int(n)
		next[i].Steps += int64(n)
		next[i].Remainder = ideal - n
	}
	return steps, next, nil
}

func (p *Planner) move(delta standalone.Position, r *Report) error {
	steps, next, err := p.plan(p.pos, delta, p.motors)
	if err != nil {
		return err
	}
	r.Steps = steps

	pattern := stepgen.Synthesize(steps)
	r.Frames = pattern.Len()
	emitted, err := p.emit(pattern)
	r.Emitted = emitted
	if err != nil {
		p.settle(emitted)
		return err
	}
	p.publish(p.pos.Add(delta), next)
	return nil
}

// settle makes motor state match the edges that reached the pins before a
// hardware failure, and re-derives the position from them.
func (p *Planner) settle(emitted [standalone.NumMotors]int) {
	if emitted == [standalone.NumMotors]int{} {
		return
	}
	motors := p.motors
	for i := range motors {
		motors[i].Steps += int64(emitted[i])
	}
	pos := p.pos
	if measured, err := p.measure(motors); err == nil {
		pos = measured
	} else {
		p.logger.Warn("cannot solve position after partial move, keeping last position", "err", err)
	}
	if l, err := p.kin.Inverse(pos); err == nil {
		for i := range motors {
			motors[i].Remainder = (l[i]-p.base[i])*p.cfg.StepsPerUnit - float64(motors[i].Steps)
		}
	}
	p.publish(pos, motors)
}

func (p *Planner) publish(pos standalone.Position, motors [standalone.NumMotors]MotorState) {
	p.stateMu.Lock()
	p.pos = pos
	p.motors = motors
	p.stateMu.Unlock()
}

func (p *Planner) tension(steps [standalone.NumMotors]int, r *Report) error {
	r.Steps = steps
	pattern := stepgen.Synthesize(steps)
	r.Frames = pattern.Len()
	emitted, err := p.emit(pattern)
	r.Emitted = emitted
	return err
}

// emit sets each moving motor's direction once, then pulses the flagged
// step pins frame by frame: high for half the step period, low for the
// other half. A step counts at its rising edge.
func (p *Planner) emit(pattern stepgen.Pattern) ([standalone.NumMotors]int, error) {
	var emitted [standalone.NumMotors]int
	dirs := pattern.Directions()
	for i, d := range dirs {
		if d == 0 {
			continue
		}
		if err := p.steppers[i].SetDirection(d); err != nil {
			return emitted, p.hardwareError(i, "dir", p.steppers[i].DirPin(), err)
		}
	}

	high, low := core.HalfPeriod(p.cfg.StepPeriod)
	for _, f := range pattern.Frames() {
		active := false
		for i, on := range f {
			if !on {
				continue
			}
			active = true
			if err := p.steppers[i].StepHigh(); err != nil {
				p.releaseStepPins()
				return emitted, p.hardwareError(i, "step high", p.steppers[i].StepPin(), err)
			}
			emitted[i] += dirs[i]
		}
		if !active {
			continue
		}
		core.Pause(p.driver, high)
		for i, on := range f {
			if !on {
				continue
			}
			if err := p.steppers[i].StepLow(); err != nil {
				p.releaseStepPins()
				return emitted, p.hardwareError(i, "step low", p.steppers[i].StepPin(), err)
			}
		}
		core.Pause(p.driver, low)
	}
	return emitted, nil
}

// releaseStepPins drives every step pin low after a failed frame, ignoring
// further errors.
func (p *Planner) releaseStepPins() {
	for _, s := range p.steppers {
		_ = s.StepLow()
	}
}

func (p *Planner) hardwareError(motor int, op string, pin core.GPIOPin, err error) error {
	return &HardwareError{Motor: p.names[motor], Pin: pin, Op: op, Err: err}
}
