// Package machine assembles the kinematics, motion engine and G-code
// interpreter around one pin driver.
package machine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"spider/core"
	"spider/standalone"
	"spider/standalone/config"
	"spider/standalone/gcode"
	"spider/standalone/kinematics"
	"spider/standalone/path"
	"spider/standalone/planner"
	"spider/telemetry"
)

// Manager coordinates all standalone mode components
type Manager struct {
	config      *standalone.MachineConfig
	logger      *slog.Logger
	kinematics  *kinematics.Cable
	planner     *planner.Planner
	parser      *gcode.Parser
	interpreter *gcode.Interpreter
	sink        *telemetry.InfluxSink
}

// Option configures a Manager.
type Option func(*options)

type options struct {
	observers []planner.Observer
}

// WithObserver adds a planner observer next to the telemetry sink.
func WithObserver(o planner.Observer) Option {
	return func(opts *options) { opts.observers = append(opts.observers, o) }
}

// New validates cfg, sets the driver's pin numbering and starts the motion
// engine. The Manager owns driver from here on: Close releases it.
func New(cfg *standalone.MachineConfig, driver core.GPIODriver, logger *slog.Logger, opts ...Option) (*Manager, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	mode, err := config.PinMode(cfg.Hardware.PinMode)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", standalone.ErrConfiguration, err)
	}
	if err := driver.SetMode(mode); err != nil {
		return nil, fmt.Errorf("%w: set pin mode: %w", standalone.ErrHardware, err)
	}

	geom, err := kinematics.NewGeometry(cfg.Geometry)
	if err != nil {
		return nil, err
	}
	solver, err := kinematics.SolverByName(cfg.Motion.ForwardSolver)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", standalone.ErrConfiguration, err)
	}

	m := &Manager{
		config:     cfg,
		logger:     logger,
		kinematics: kinematics.NewCable(geom, solver),
		parser:     gcode.NewParser(),
	}

	popts := []planner.Option{planner.WithLogger(logger.With("component", "planner"))}
	if cfg.Telemetry.Enabled {
		names := make([]string, len(cfg.Motors))
		for i, mc := range cfg.Motors {
			names[i] = mc.Name
		}
		m.sink = telemetry.NewInfluxSink(cfg.Telemetry, names, logger.With("component", "telemetry"))
		popts = append(popts, planner.WithObserver(m.sink))
	}
	for _, obs := range o.observers {
		popts = append(popts, planner.WithObserver(obs))
	}

	m.planner, err = planner.NewPlanner(cfg.Motion, m.kinematics, driver, cfg.Motors, popts...)
	if err != nil {
		if m.sink != nil {
			m.sink.Close()
		}
		return nil, err
	}
	m.interpreter = gcode.NewInterpreter(m.planner)

	logger.Info("machine ready",
		"solver", solver.Name(),
		"position", m.planner.Position(),
		"motors", m.planner.MotorNames(),
		"realTiming", driver.SupportsRealTiming())
	return m, nil
}

// ProcessLine parses and executes one line of G-code, returning the reply
// of reporting commands.
func (m *Manager) ProcessLine(line string) (string, error) {
	cmd, err := m.parser.ParseLine(line)
	if err != nil {
		return "", err
	}
	return m.interpreter.Execute(cmd)
}

// RunGCode streams a G-code program, answering every executed line with
// "ok" (preceded by its reply, if any) on w. The program ends with a drain.
// A cancelled ctx drops queued moves and returns ctx.Err().
func (m *Manager) RunGCode(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if err := ctx.Err(); err != nil {
			return m.abort(err)
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		reply, err := m.ProcessLine(line)
		if err != nil {
			return fmt.Errorf("line %d %q: %w", lineNo, line, err)
		}
		if reply != "" {
			fmt.Fprintln(w, reply)
		}
		fmt.Fprintln(w, "ok")
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return m.wait(ctx)
}

// RunPath queues the moves between consecutive points of route and waits
// for them to be drawn.
func (m *Manager) RunPath(ctx context.Context, route []standalone.Position) error {
	deltas := path.Deltas(route)
	m.logger.Info("running path", "points", len(route), "length", path.Length(route))
	for _, d := range deltas {
		if err := ctx.Err(); err != nil {
			return m.abort(err)
		}
		if err := m.planner.Enqueue(d); err != nil {
			return err
		}
	}
	return m.wait(ctx)
}

// EstimateDrawTime returns how long RunPath would take for route.
func (m *Manager) EstimateDrawTime(route []standalone.Position) (time.Duration, error) {
	return m.planner.EstimateDuration(path.Deltas(route))
}

// Tension reels cable in (positive) or out (negative) and waits for it.
func (m *Manager) Tension(amount float64, motors ...int) error {
	if err := m.planner.Tension(amount, motors...); err != nil {
		return err
	}
	return m.planner.WaitUntilDrained()
}

// Goto moves to an absolute target after all queued moves.
func (m *Manager) Goto(target standalone.Position) error {
	return m.planner.SetPosition(target)
}

// Position returns the tracked platform position.
func (m *Manager) Position() standalone.Position { return m.planner.Position() }

// Planner exposes the motion engine.
func (m *Manager) Planner() *planner.Planner { return m.planner }

// wait drains the queue, flushing it first if ctx ends while waiting.
func (m *Manager) wait(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- m.planner.WaitUntilDrained() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if n := m.planner.Flush(); n > 0 {
			m.logger.Warn("dropped queued moves", "jobs", n)
		}
		return errors.Join(ctx.Err(), <-done)
	}
}

func (m *Manager) abort(cause error) error {
	if n := m.planner.Flush(); n > 0 {
		m.logger.Warn("dropped queued moves", "jobs", n)
	}
	return errors.Join(cause, m.planner.WaitUntilDrained())
}

// Close stops the motion engine (returning to the origin when auto reset
// is on), releases the driver and flushes telemetry.
func (m *Manager) Close() error {
	err := m.planner.Close()
	if m.sink != nil {
		m.sink.Close()
	}
	if err != nil {
		return err
	}
	m.logger.Info("machine stopped")
	return nil
}
