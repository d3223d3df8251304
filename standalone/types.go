package standalone

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// NumMotors is the number of cables suspending the platform.
const NumMotors = 3

// Position represents a point or displacement in platform coordinates
type Position struct {
	X float64 `mapstructure:"x" json:"x"`
	Y float64 `mapstructure:"y" json:"y"`
	Z float64 `mapstructure:"z" json:"z"`
}

// Origin is the platform position (0, 0, 0).
var Origin = Position{}

// Vec returns p as a gonum vector.
func (p Position) Vec() r3.Vec { return r3.Vec{X: p.X, Y: p.Y, Z: p.Z} }

// FromVec converts a gonum vector to a Position.
func FromVec(v r3.Vec) Position { return Position{X: v.X, Y: v.Y, Z: v.Z} }

func (p Position) Add(q Position) Position  { return FromVec(r3.Add(p.Vec(), q.Vec())) }
func (p Position) Sub(q Position) Position  { return FromVec(r3.Sub(p.Vec(), q.Vec())) }
func (p Position) Scale(k float64) Position { return FromVec(r3.Scale(k, p.Vec())) }
func (p Position) Dot(q Position) float64   { return r3.Dot(p.Vec(), q.Vec()) }

// Cross returns the vector product p × q.
func (p Position) Cross(q Position) Position { return FromVec(r3.Cross(p.Vec(), q.Vec())) }

// Norm returns the Euclidean length of p.
func (p Position) Norm() float64 { return r3.Norm(p.Vec()) }

// Dist returns the Euclidean distance between p and q.
func (p Position) Dist(q Position) float64 { return p.Sub(q).Norm() }

// Normalize returns p scaled to unit length. The zero vector is returned unchanged.
func (p Position) Normalize() Position {
	if p == (Position{}) {
		return p
	}
	return FromVec(r3.Unit(p.Vec()))
}

// XY returns p projected onto the z = 0 plane.
func (p Position) XY() Position { return Position{X: p.X, Y: p.Y} }

// IsFinite reports whether no coordinate is NaN or infinite.
func (p Position) IsFinite() bool {
	for _, v := range [3]float64{p.X, p.Y, p.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (p Position) String() string {
	return fmt.Sprintf("(%.4f, %.4f, %.4f)", p.X, p.Y, p.Z)
}

// MotorConfig represents configuration for a single cable motor
type MotorConfig struct {
	Name      string `mapstructure:"name"`      // Label used in logs and G-code
	StepPin   string `mapstructure:"stepPin"`   // GPIO pin for step pulses
	DirPin    string `mapstructure:"dirPin"`    // GPIO pin for direction
	InvertDir bool   `mapstructure:"invertDir"` // Invert direction signal
}

// GeometryConfig describes where the cables are anchored.
// Anchors and Links override the radius/angle layout when both are set.
type GeometryConfig struct {
	InnerRadius float64    `mapstructure:"innerRadius"` // Platform attachment radius
	OuterRadius float64    `mapstructure:"outerRadius"` // Anchor radius
	Angles      []float64  `mapstructure:"angles"`      // Anchor angles in degrees
	Anchors     []Position `mapstructure:"anchors"`
	Links       []Position `mapstructure:"links"`
}

// MotionConfig holds the pulse pacing and startup pose.
type MotionConfig struct {
	StepsPerUnit    float64       `mapstructure:"stepsPerUnit"` // Steps per unit of cable length
	StepPeriod      time.Duration `mapstructure:"stepPeriod"`   // One full step pulse (high + low)
	AutoReset       bool          `mapstructure:"autoReset"`    // Return to origin on shutdown
	InitialPosition Position      `mapstructure:"initialPosition"`
	ForwardSolver   string        `mapstructure:"forwardSolver"` // "pairwise" or "plane"
}

// HardwareConfig selects the pin driver.
type HardwareConfig struct {
	Backend string `mapstructure:"backend"` // "fake", "rpio" or "mcu"
	PinMode string `mapstructure:"pinMode"` // "bcm" or "board"
	Device  string `mapstructure:"device"`  // Serial device for the mcu backend
	Baud    int    `mapstructure:"baud"`
}

// TelemetryConfig configures the optional InfluxDB move log.
type TelemetryConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	URL           string        `mapstructure:"url"`
	Token         string        `mapstructure:"token"`
	Org           string        `mapstructure:"org"`
	Bucket        string        `mapstructure:"bucket"`
	BatchSize     uint          `mapstructure:"batchSize"`
	FlushInterval time.Duration `mapstructure:"flushInterval"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// MachineConfig represents the complete machine configuration
type MachineConfig struct {
	Geometry  GeometryConfig  `mapstructure:"geometry"`
	Motors    []MotorConfig   `mapstructure:"motors"`
	Motion    MotionConfig    `mapstructure:"motion"`
	Hardware  HardwareConfig  `mapstructure:"hardware"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
}

// GCodeCommand represents a parsed G-code command
type GCodeCommand struct {
	Type       byte             // 'G', 'M'
	Number     int              // Command number (e.g., 0 for G0, 28 for G28)
	Parameters map[byte]float64 // Parameters (X, Y, Z, S, A, B, C)
	Comment    string           // Comment text
}

// HasParameter checks if a parameter exists
func (cmd *GCodeCommand) HasParameter(param byte) bool {
	_, exists := cmd.Parameters[param]
	return exists
}

// GetParameter gets a parameter value with a default
func (cmd *GCodeCommand) GetParameter(param byte, defaultValue float64) float64 {
	if val, exists := cmd.Parameters[param]; exists {
		return val
	}
	return defaultValue
}

// String formats the command with its parameters in letter order.
func (cmd *GCodeCommand) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%c%d", cmd.Type, cmd.Number)
	letters := make([]byte, 0, len(cmd.Parameters))
	for l := range cmd.Parameters {
		letters = append(letters, l)
	}
	slices.Sort(letters)
	for _, l := range letters {
		fmt.Fprintf(&b, " %c%g", l, cmd.Parameters[l])
	}
	return b.String()
}
