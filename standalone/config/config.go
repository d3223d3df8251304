// Package config loads the machine configuration through viper.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"spider/core"
	"spider/standalone"
	"spider/standalone/kinematics"
)

// EnvPrefix prefixes environment overrides, e.g. SPIDER_HARDWARE_BACKEND.
const EnvPrefix = "SPIDER"

// Backends accepted in hardware.backend.
const (
	BackendFake = "fake"
	BackendRPIO = "rpio"
	BackendMCU  = "mcu"
)

// LoadConfig parses configuration data in the given format ("json", "yaml",
// "toml") on top of the defaults.
func LoadConfig(data []byte, format string) (*standalone.MachineConfig, error) {
	v := newViper()
	v.SetConfigType(format)
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("error reading config: %w", err)
	}
	return decode(v)
}

// Load reads the configuration file at path, its format taken from the
// extension. An empty path yields the defaults plus environment overrides.
func Load(path string) (*standalone.MachineConfig, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return decode(v)
}

// Default returns the configuration of the reference printer.
func Default() *standalone.MachineConfig {
	cfg, err := decode(newViper())
	if err != nil {
		panic(fmt.Sprintf("default config: %v", err))
	}
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	applyDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// applyDefaults installs the reference printer: three motors on BCM pins
// (2,3), (17,27), (10,11), anchors at 150°, 30° and 270°.
func applyDefaults(v *viper.Viper) {
	v.SetDefault("geometry.innerRadius", kinematics.DefaultInnerRadius)
	v.SetDefault("geometry.outerRadius", kinematics.DefaultOuterRadius)
	v.SetDefault("geometry.angles", kinematics.DefaultAngles)

	v.SetDefault("motors", []map[string]any{
		{"name": "alice", "stepPin": "gpio2", "dirPin": "gpio3"},
		{"name": "bob", "stepPin": "gpio17", "dirPin": "gpio27"},
		{"name": "carlos", "stepPin": "gpio10", "dirPin": "gpio11"},
	})

	v.SetDefault("motion.stepsPerUnit", 200.0)
	v.SetDefault("motion.stepPeriod", 10*time.Millisecond)
	v.SetDefault("motion.autoReset", true)
	v.SetDefault("motion.initialPosition", map[string]any{"x": 0.0, "y": 0.0, "z": 0.0})
	v.SetDefault("motion.forwardSolver", kinematics.SolverPairwise)

	v.SetDefault("hardware.backend", BackendFake)
	v.SetDefault("hardware.pinMode", "bcm")
	v.SetDefault("hardware.device", "/dev/ttyACM0")
	v.SetDefault("hardware.baud", 250000)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.url", "http://localhost:8086")
	v.SetDefault("telemetry.token", "")
	v.SetDefault("telemetry.org", "spider")
	v.SetDefault("telemetry.bucket", "moves")
	v.SetDefault("telemetry.batchSize", 100)
	v.SetDefault("telemetry.flushInterval", time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
}

func decode(v *viper.Viper) (*standalone.MachineConfig, error) {
	var cfg standalone.MachineConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", standalone.ErrConfiguration, err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks everything construction would otherwise trip over and
// reports all problems at once.
func Validate(cfg *standalone.MachineConfig) error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", standalone.ErrConfiguration, fmt.Sprintf(format, args...)))
	}

	if _, err := kinematics.NewGeometry(cfg.Geometry); err != nil {
		errs = append(errs, err)
	}

	if len(cfg.Motors) != standalone.NumMotors {
		fail("need %d motors, got %d", standalone.NumMotors, len(cfg.Motors))
	}
	used := make(map[core.GPIOPin]string)
	for i, m := range cfg.Motors {
		if m.Name == "" {
			fail("motor %d has no name", i)
		}
		for _, role := range []struct{ kind, name string }{{"step", m.StepPin}, {"dir", m.DirPin}} {
			pin, err := core.LookupPin(role.name)
			if err != nil {
				fail("motor %s %s pin: %v", m.Name, role.kind, err)
				continue
			}
			if other, ok := used[pin]; ok {
				fail("motor %s %s pin %d already used by %s", m.Name, role.kind, pin, other)
				continue
			}
			used[pin] = m.Name + " " + role.kind
		}
	}

	if !(cfg.Motion.StepsPerUnit > 0) {
		fail("motion.stepsPerUnit must be positive, got %g", cfg.Motion.StepsPerUnit)
	}
	if cfg.Motion.StepPeriod < 0 {
		fail("motion.stepPeriod must not be negative, got %v", cfg.Motion.StepPeriod)
	}
	if !cfg.Motion.InitialPosition.IsFinite() {
		fail("motion.initialPosition %v is not finite", cfg.Motion.InitialPosition)
	}
	if _, err := kinematics.SolverByName(cfg.Motion.ForwardSolver); err != nil {
		fail("motion.forwardSolver: %v", err)
	}

	switch cfg.Hardware.Backend {
	case BackendFake, BackendRPIO:
	case BackendMCU:
		if cfg.Hardware.Device == "" {
			fail("hardware.device is required for the mcu backend")
		}
		if cfg.Hardware.Baud <= 0 {
			fail("hardware.baud must be positive, got %d", cfg.Hardware.Baud)
		}
	default:
		fail("unknown hardware.backend %q", cfg.Hardware.Backend)
	}
	if _, err := PinMode(cfg.Hardware.PinMode); err != nil {
		fail("hardware.pinMode: %v", err)
	}

	if cfg.Telemetry.Enabled && (cfg.Telemetry.URL == "" || cfg.Telemetry.Org == "" || cfg.Telemetry.Bucket == "") {
		fail("telemetry needs url, org and bucket")
	}
	return errors.Join(errs...)
}

// PinMode parses hardware.pinMode.
func PinMode(s string) (core.PinMode, error) {
	switch strings.ToLower(s) {
	case "", "bcm":
		return core.ModeBCM, nil
	case "board":
		return core.ModeBoard, nil
	default:
		return 0, fmt.Errorf("unknown pin mode %q", s)
	}
}
