// Package planner runs queued platform moves on a single worker goroutine.
package planner

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"spider/core"
	"spider/standalone"
	"spider/standalone/kinematics"
	"spider/standalone/stepgen"
)

// MotorState is the step bookkeeping of one motor.
type MotorState struct {
	Steps     int64   // Signed cumulative steps since startup
	Remainder float64 // Sub-step rounding debt in (-0.5, 0.5] steps
}

// Report describes one finished job.
type Report struct {
	Kind     string // "move", "moveto", "tension"
	Delta    standalone.Position
	Position standalone.Position // Tracked position after the job
	Steps    [standalone.NumMotors]int
	Emitted  [standalone.NumMotors]int
	Frames   int
	Duration time.Duration
	Err      error
}

// Observer receives a Report after every job.
type Observer interface {
	JobDone(Report)
}

// Option configures a Planner.
type Option func(*Planner)

// WithLogger sets the logger. It defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Planner) { p.logger = l }
}

// WithMeter sets the meter for the planner's instruments. It defaults to
// the global meter provider.
func WithMeter(m metric.Meter) Option {
	return func(p *Planner) { p.meter = m }
}

// WithObserver registers an observer called from the worker goroutine.
func WithObserver(o Observer) Option {
	return func(p *Planner) { p.observers = append(p.observers, o) }
}

type jobKind int

const (
	jobMove jobKind = iota
	jobMoveTo
	jobTension
	jobStop
)

type job struct {
	kind   jobKind
	vec    standalone.Position // delta for jobMove, target for jobMoveTo
	steps  [standalone.NumMotors]int
	result chan error
}

// Planner handles motion execution. One worker goroutine owns the motor
// state and issues every pulse.
type Planner struct {
	cfg       standalone.MotionConfig
	kin       kinematics.Kinematics
	driver    core.GPIODriver
	steppers  [standalone.NumMotors]*stepgen.Stepper
	names     []string
	base      kinematics.Lengths // Cable lengths at the initial position
	logger    *slog.Logger
	observers []Observer
	meter     metric.Meter
	metrics   *instruments

	// Written only by the worker, under stateMu.
	stateMu sync.RWMutex
	pos     standalone.Position
	motors  [standalone.NumMotors]MotorState

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []*job
	pending int
	stopped bool
	faulted bool
	err     error

	stopOnce  sync.Once
	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

// NewPlanner configures the motor pins and starts the worker.
func NewPlanner(cfg standalone.MotionConfig, kin kinematics.Kinematics, driver core.GPIODriver,
	motors []standalone.MotorConfig, opts ...Option) (*Planner, error) {
	if !(cfg.StepsPerUnit > 0) || math.IsInf(cfg.StepsPerUnit, 0) {
		return nil, fmt.Errorf("%w: steps per unit %g must be positive", standalone.ErrConfiguration, cfg.StepsPerUnit)
	}
	if cfg.StepPeriod < 0 {
		return nil, fmt.Errorf("%w: negative step period %v", standalone.ErrConfiguration, cfg.StepPeriod)
	}
	if len(motors) != standalone.NumMotors {
		return nil, fmt.Errorf("%w: need %d motors, got %d", standalone.ErrConfiguration, standalone.NumMotors, len(motors))
	}

	p := &Planner{
		cfg:    cfg,
		kin:    kin,
		driver: driver,
		logger: slog.Default(),
		meter:  otel.Meter(instrumentationName),
		pos:    cfg.InitialPosition,
		done:   make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)
	for _, opt := range opts {
		opt(p)
	}

	base, err := kin.Inverse(cfg.InitialPosition)
	if err != nil {
		return nil, fmt.Errorf("%w: initial position %v: %w", standalone.ErrConfiguration, cfg.InitialPosition, err)
	}
	p.base = base

	if err := p.InitSteppers(motors); err != nil {
		return nil, err
	}

	p.metrics, err = newInstruments(p)
	if err != nil {
		return nil, err
	}

	go p.run()
	return p, nil
}

// InitSteppers initializes the step/dir pins of every motor
func (p *Planner) InitSteppers(motors []standalone.MotorConfig) error {
	for i, mc := range motors {
		if mc.Name == "" {
			mc.Name = fmt.Sprintf("motor%d", i)
		}
		stepper, err := stepgen.NewStepper(mc)
		if err != nil {
			return fmt.Errorf("%w: %w", standalone.ErrConfiguration, err)
		}
		if err := stepper.InitPins(p.driver); err != nil {
			return fmt.Errorf("%w: %w", standalone.ErrHardware, err)
		}
		p.steppers[i] = stepper
		p.names = append(p.names, mc.Name)
	}
	return nil
}

// MotorNames returns the motor labels in index order.
func (p *Planner) MotorNames() []string { return append([]string(nil), p.names...) }

// Enqueue appends a relative move. It never blocks on the worker.
func (p *Planner) Enqueue(delta standalone.Position) error {
	if !delta.IsFinite() {
		return &kinematics.SolveError{Op: "enqueue", Got: math.NaN(), Want: "finite delta", Err: kinematics.ErrDegenerateGeometry}
	}
	return p.push(&job{kind: jobMove, vec: delta}, false)
}

// SetPosition moves the platform to target and returns once the move has
// been emitted. The delta is taken from the tracked position when the
// worker reaches this job, after everything queued before it.
func (p *Planner) SetPosition(target standalone.Position) error {
	if !target.IsFinite() {
		return &kinematics.SolveError{Op: "set position", Got: math.NaN(), Want: "finite target", Err: kinematics.ErrDegenerateGeometry}
	}
	j := &job{kind: jobMoveTo, vec: target, result: make(chan error, 1)}
	if err := p.push(j, false); err != nil {
		return err
	}
	return <-j.result
}

// Tension pays out (negative amount) or reels in (positive amount) cable on
// the given motors, all motors when none are given. The pulses bypass the
// kinematics and are not tracked in the position model.
func (p *Planner) Tension(amount float64, motors ...int) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return fmt.Errorf("invalid tension amount %g", amount)
	}
	if len(motors) == 0 {
		motors = []int{0, 1, 2}
	}
	steps := math.Round(-amount * p.cfg.StepsPerUnit)
	if math.Abs(steps) > MaxMoveSteps {
		return fmt.Errorf("%w: tension of %g steps, limit %d", ErrMoveTooLarge, steps, MaxMoveSteps)
	}
	n := int(steps)
	j := &job{kind: jobTension}
	for _, m := range motors {
		if m < 0 || m >= standalone.NumMotors {
			return fmt.Errorf("invalid motor index %d", m)
		}
		j.steps[m] = n
	}
	return p.push(j, false)
}

func (p *Planner) push(j *job, force bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !force {
		if p.stopped {
			return ErrStopped
		}
		if p.faulted {
			return fmt.Errorf("job rejected after hardware failure: %w", p.err)
		}
	}
	p.queue = append(p.queue, j)
	p.pending++
	p.cond.Broadcast()
	return nil
}

// WaitUntilDrained blocks until every queued job has been executed and its
// state published. It returns the first error since the previous drain and
// clears it, re-enabling Enqueue after a hardware failure.
func (p *Planner) WaitUntilDrained() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.pending > 0 {
		p.cond.Wait()
	}
	err := p.err
	p.err = nil
	p.faulted = false
	return err
}

// Flush drops the jobs that have not started yet and returns how many were
// dropped. The job in flight always completes.
func (p *Planner) Flush() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flushLocked(ErrDiscarded)
}

func (p *Planner) flushLocked(reason error) int {
	kept := p.queue[:0]
	dropped := 0
	for _, j := range p.queue {
		if j.kind == jobStop {
			kept = append(kept, j)
			continue
		}
		if j.result != nil {
			j.result <- reason
		}
		dropped++
	}
	for i := len(kept); i < len(p.queue); i++ {
		p.queue[i] = nil
	}
	p.queue = kept
	p.pending -= dropped
	p.cond.Broadcast()
	return dropped
}

// QueueDepth returns the number of jobs queued or in flight.
func (p *Planner) QueueDepth() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending
}

// IsIdle returns true if no jobs are queued or executing
func (p *Planner) IsIdle() bool {
	return p.QueueDepth() == 0
}

// Stop lets the worker finish every job queued so far, then joins it.
// Calling Stop again is a no-op.
func (p *Planner) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		p.mu.Unlock()
		_ = p.push(&job{kind: jobStop}, true)
		<-p.done
	})
}

// Close drains the queue, stops the worker, returns the platform to the
// origin when auto reset is enabled and releases the driver. It runs the
// same way whether or not an earlier job failed.
func (p *Planner) Close() error {
	p.closeOnce.Do(func() {
		var errs []error
		p.Stop()
		p.mu.Lock()
		if p.err != nil {
			errs = append(errs, p.err)
			p.err = nil
		}
		p.faulted = false
		p.mu.Unlock()

		// The worker has exited: this goroutine is now the only writer.
		if p.cfg.AutoReset {
			p.logger.Info("returning to origin", "from", p.Position())
			if err := p.runJob(&job{kind: jobMoveTo, vec: standalone.Origin}); err != nil {
				errs = append(errs, fmt.Errorf("auto reset: %w", err))
			}
		}
		if err := p.driver.Close(); err != nil {
			errs = append(errs, fmt.Errorf("release driver: %w", err))
		}
		if err := p.metrics.close(); err != nil {
			errs = append(errs, fmt.Errorf("unregister metrics: %w", err))
		}
		p.closeErr = errors.Join(errs...)
	})
	return p.closeErr
}

// Position returns the tracked platform position.
func (p *Planner) Position() standalone.Position {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.pos
}

// MotorStates returns a snapshot of the per-motor bookkeeping.
func (p *Planner) MotorStates() [standalone.NumMotors]MotorState {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.motors
}

// Steps returns the cumulative step count of each motor.
func (p *Planner) Steps() [standalone.NumMotors]int64 {
	var s [standalone.NumMotors]int64
	for i, m := range p.MotorStates() {
		s[i] = m.Steps
	}
	return s
}

// MeasuredPosition solves the platform position from the step counters
// alone. It never changes motor state.
func (p *Planner) MeasuredPosition() (standalone.Position, error) {
	return p.measure(p.MotorStates())
}

func (p *Planner) measure(m [standalone.NumMotors]MotorState) (standalone.Position, error) {
	var l kinematics.Lengths
	for i := range l {
		l[i] = p.base[i] + float64(m[i].Steps)/p.cfg.StepsPerUnit
	}
	return p.kin.Forward(l)
}

// EstimateDuration returns how long the given relative moves would take
// from the current state, without moving.
func (p *Planner) EstimateDuration(deltas []standalone.Position) (time.Duration, error) {
	pos := p.Position()
	motors := p.MotorStates()
	var frames int64
	for _, d := range deltas {
		steps, next, err := p.plan(pos, d, motors)
		if err != nil {
			return 0, err
		}
		longest := 0
		for _, s := range steps {
			longest = max(longest, abs(s))
		}
		frames += int64(longest)
		pos = pos.Add(d)
		motors = next
	}
	return time.Duration(frames) * p.cfg.StepPeriod, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
