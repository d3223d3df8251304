// Package telemetry ships finished planner jobs to InfluxDB.
package telemetry

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"

	"spider/standalone"
	"spider/standalone/planner"
)

// Measurement is the InfluxDB measurement written for every job.
const Measurement = "spider_move"

// InfluxSink is a planner.Observer writing one point per job through the
// non-blocking write API.
type InfluxSink struct {
	client influxdb2.Client
	writer influxdb2_api.WriteAPI
	motors []string
	logger *slog.Logger

	closeOnce sync.Once
	drained   chan struct{}
}

// NewInfluxSink connects lazily: nothing is sent until the first batch.
func NewInfluxSink(cfg standalone.TelemetryConfig, motors []string, logger *slog.Logger) *InfluxSink {
	opts := influxdb2.DefaultOptions()
	if cfg.BatchSize > 0 {
		opts.SetBatchSize(cfg.BatchSize)
	}
	if cfg.FlushInterval > 0 {
		opts.SetFlushInterval(uint(cfg.FlushInterval / time.Millisecond))
	}
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)

	s := &InfluxSink{
		client:  client,
		writer:  client.WriteAPI(cfg.Org, cfg.Bucket),
		motors:  motors,
		logger:  logger,
		drained: make(chan struct{}),
	}
	go s.drainErrors()
	return s
}

func (s *InfluxSink) drainErrors() {
	defer close(s.drained)
	for err := range s.writer.Errors() {
		s.logger.Warn("influx write failed", "err", err)
	}
}

// JobDone implements planner.Observer.
func (s *InfluxSink) JobDone(r planner.Report) {
	s.writer.WritePoint(MovePoint(r, s.motors, time.Now()))
}

// Close flushes pending points and releases the client.
func (s *InfluxSink) Close() {
	s.closeOnce.Do(func() {
		s.writer.Flush()
		s.client.Close()
		<-s.drained
	})
}

// MovePoint converts a job report into a point.
func MovePoint(r planner.Report, motors []string, ts time.Time) *influxdb2_write.Point {
	result := "ok"
	if r.Err != nil {
		result = "error"
	}
	fields := map[string]interface{}{
		"dx":          r.Delta.X,
		"dy":          r.Delta.Y,
		"dz":          r.Delta.Z,
		"x":           r.Position.X,
		"y":           r.Position.Y,
		"z":           r.Position.Z,
		"frames":      r.Frames,
		"duration_ms": float64(r.Duration) / float64(time.Millisecond),
	}
	for i, n := range r.Emitted {
		name := fmt.Sprintf("motor%d", i)
		if i < len(motors) {
			name = motors[i]
		}
		fields["steps_"+name] = n
	}
	if r.Err != nil {
		fields["error"] = r.Err.Error()
	}
	return influxdb2.NewPoint(Measurement,
		map[string]string{"kind": r.Kind, "result": result},
		fields,
		ts,
	)
}
