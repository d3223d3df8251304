package gcode

import (
	"fmt"

	"spider/standalone"
)

// Planner is the part of the motion engine the interpreter drives.
type Planner interface {
	Enqueue(delta standalone.Position) error
	Position() standalone.Position
	WaitUntilDrained() error
	Tension(amount float64, motors ...int) error
}

// Interpreter executes G-code commands
type Interpreter struct {
	planner  Planner
	absolute bool
	// target is the machine position after every queued move. Moves are
	// asynchronous, so deltas are taken from it rather than from the planner.
	target standalone.Position
	// offset maps logical coordinates (after G92) to machine ones.
	offset standalone.Position
}

// NewInterpreter creates a new G-code interpreter in absolute mode
func NewInterpreter(planner Planner) *Interpreter {
	return &Interpreter{
		planner:  planner,
		absolute: true,
		target:   planner.Position(),
	}
}

// Execute runs a parsed command and returns its reply, if any.
func (interp *Interpreter) Execute(cmd *standalone.GCodeCommand) (string, error) {
	if cmd == nil || cmd.Type == 0 {
		return "", nil
	}

	switch cmd.Type {
	case 'G':
		return "", interp.executeG(cmd)
	case 'M':
		return interp.executeM(cmd)
	}
	return "", fmt.Errorf("unsupported command %s", cmd)
}

// executeG handles G-codes
func (interp *Interpreter) executeG(cmd *standalone.GCodeCommand) error {
	switch cmd.Number {
	case 0, 1: // G0/G1 - Linear move
		return interp.doMove(cmd)
	case 28: // G28 - Return to origin
		return interp.moveTo(standalone.Origin)
	case 90: // G90 - Absolute positioning
		interp.absolute = true
	case 91: // G91 - Relative positioning
		interp.absolute = false
	case 92: // G92 - Set logical position
		logical := interp.target.Sub(interp.offset)
		logical.X = cmd.GetParameter('X', logical.X)
		logical.Y = cmd.GetParameter('Y', logical.Y)
		logical.Z = cmd.GetParameter('Z', logical.Z)
		interp.offset = interp.target.Sub(logical)
	default:
		return fmt.Errorf("unsupported command %s", cmd)
	}
	return nil
}

// executeM handles M-codes
func (interp *Interpreter) executeM(cmd *standalone.GCodeCommand) (string, error) {
	switch cmd.Number {
	case 17: // M17 S<amount> [A] [B] [C] - Tension cables
		var motors []int
		for i, letter := range []byte{'A', 'B', 'C'} {
			if cmd.HasParameter(letter) {
				motors = append(motors, i)
			}
		}
		return "", interp.planner.Tension(cmd.GetParameter('S', 0), motors...)
	case 18: // M18 - Motors off, drivers stay powered
		return "", nil
	case 114: // M114 - Report the planned position
		p := interp.target.Sub(interp.offset)
		return fmt.Sprintf("X:%.3f Y:%.3f Z:%.3f", p.X, p.Y, p.Z), nil
	case 400: // M400 - Wait for moves to finish
		err := interp.planner.WaitUntilDrained()
		interp.target = interp.planner.Position()
		return "", err
	}
	return "", fmt.Errorf("unsupported command %s", cmd)
}

// doMove executes a linear move (G0/G1). Feed rates are accepted and
// ignored: motion is paced by the step period alone.
func (interp *Interpreter) doMove(cmd *standalone.GCodeCommand) error {
	target := interp.target
	if interp.absolute {
		logical := target.Sub(interp.offset)
		logical.X = cmd.GetParameter('X', logical.X)
		logical.Y = cmd.GetParameter('Y', logical.Y)
		logical.Z = cmd.GetParameter('Z', logical.Z)
		target = logical.Add(interp.offset)
	} else {
		target.X += cmd.GetParameter('X', 0)
		target.Y += cmd.GetParameter('Y', 0)
		target.Z += cmd.GetParameter('Z', 0)
	}
	return interp.moveTo(target)
}

func (interp *Interpreter) moveTo(target standalone.Position) error {
	delta := target.Sub(interp.target)
	if delta == (standalone.Position{}) {
		return nil
	}
	if err := interp.planner.Enqueue(delta); err != nil {
		return err
	}
	interp.target = target
	return nil
}

// Target returns the machine position after all queued moves.
func (interp *Interpreter) Target() standalone.Position { return interp.target }
