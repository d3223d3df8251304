package planner

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "spider/standalone/planner"

type instruments struct {
	queueDepth metric.Int64ObservableGauge
	jobs       metric.Int64Counter
	failures   metric.Int64Counter
	steps      metric.Int64Counter
	frames     metric.Int64Counter
	callback   metric.Registration
}

func newInstruments(p *Planner) (*instruments, error) {
	m := p.meter
	in := &instruments{}

	var err error
	in.queueDepth, err = m.Int64ObservableGauge(
		"planner.queue.depth",
		metric.WithDescription("Jobs queued or in flight"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue depth gauge: %w", err)
	}
	in.callback, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(in.queueDepth, int64(p.QueueDepth()))
			return nil
		},
		in.queueDepth,
	)
	if err != nil {
		return nil, fmt.Errorf("registering queue depth callback: %w", err)
	}

	in.jobs, err = m.Int64Counter(
		"planner.jobs.completed",
		metric.WithDescription("Jobs executed by the motion worker"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating jobs counter: %w", err)
	}
	in.failures, err = m.Int64Counter(
		"planner.jobs.failed",
		metric.WithDescription("Jobs that ended with an error"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failures counter: %w", err)
	}
	in.steps, err = m.Int64Counter(
		"planner.steps.emitted",
		metric.WithDescription("Step pulses emitted per motor"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating steps counter: %w", err)
	}
	in.frames, err = m.Int64Counter(
		"planner.frames.emitted",
		metric.WithDescription("Pulse frames emitted"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating frames counter: %w", err)
	}
	return in, nil
}

// close detaches the queue depth callback so the meter provider no longer
// holds the planner.
func (in *instruments) close() error {
	return in.callback.Unregister()
}

func (in *instruments) record(r Report, motors []string) {
	ctx := context.Background()
	kind := attribute.String("kind", r.Kind)
	in.jobs.Add(ctx, 1, metric.WithAttributes(kind))
	if r.Err != nil {
		in.failures.Add(ctx, 1, metric.WithAttributes(kind))
	}
	in.frames.Add(ctx, int64(r.Frames), metric.WithAttributes(kind))
	for i, n := range r.Emitted {
		if n < 0 {
			n = -n
		}
		if n == 0 {
			continue
		}
		in.steps.Add(ctx, int64(n), metric.WithAttributes(kind, attribute.String("motor", motors[i])))
	}
}
