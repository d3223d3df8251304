package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"spider/core"
	"spider/host/mcu"
	"spider/host/serial"
	"spider/logging"
	"spider/standalone"
	"spider/standalone/config"
	"spider/standalone/machine"
)

const progressInterval = 2 * time.Second

// loadConfig reads the configuration and applies the global overrides.
func loadConfig() (*standalone.MachineConfig, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, err
	}
	if opts.Backend != "" {
		cfg.Hardware.Backend = opts.Backend
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if opts.LogFile != "" {
		cfg.Log.File = opts.LogFile
	}
	if opts.NoReset {
		cfg.Motion.AutoReset = false
	}
	return cfg, config.Validate(cfg)
}

func openDriver(ctx context.Context, cfg *standalone.MachineConfig, logger *slog.Logger) (core.GPIODriver, error) {
	switch cfg.Hardware.Backend {
	case config.BackendFake:
		fake := core.NewFakeGPIO()
		fake.DiscardWrites()
		return fake, nil
	case config.BackendRPIO:
		return core.OpenRPIO()
	case config.BackendMCU:
		sc := serial.DefaultConfig(cfg.Hardware.Device)
		sc.Baud = cfg.Hardware.Baud
		port, err := serial.Open(sc)
		if err != nil {
			return nil, err
		}
		client, err := mcu.Connect(ctx, port, logger.With("component", "mcu"))
		if err != nil {
			return nil, err
		}
		return mcu.NewGPIO(client), nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Hardware.Backend)
}

// session runs fn against a fresh machine. SIGINT or SIGTERM cancels the
// context passed to fn; queued moves are then dropped and the machine
// shuts down normally, including the return to the origin.
func session(fn func(ctx context.Context, m *machine.Manager, logger *slog.Logger) error) (err error) {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, closeLog, err := logging.Setup(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, closeLog()) }()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	driver, err := openDriver(ctx, cfg, logger)
	if err != nil {
		return err
	}
	m, err := machine.New(cfg, driver, logger)
	if err != nil {
		return errors.Join(err, driver.Close())
	}
	defer func() { err = errors.Join(err, m.Close()) }()

	done := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(done)
		return fn(gctx, m, logger)
	})
	g.Go(func() error {
		progress(gctx, done, m, logger)
		return nil
	})
	return g.Wait()
}

// progress logs the queue and position until done closes.
func progress(ctx context.Context, done <-chan struct{}, m *machine.Manager, logger *slog.Logger) {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p := m.Planner()
			if !p.IsIdle() {
				logger.Info("progress", "queued", p.QueueDepth(), "position", p.Position())
			}
		}
	}
}
