package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"spider/standalone"
	"spider/standalone/kinematics"
	"spider/standalone/machine"
	"spider/standalone/path"
)

type DrawCommand struct {
	Scale  float64 `long:"scale" default:"1" description:"Scale of the largest coordinate after normalizing"`
	Center bool    `long:"center" description:"Center the route's x/y range on the origin"`
	Depth  float64 `long:"depth" description:"z of every point that does not set one"`
	DryRun bool    `long:"dry-run" description:"Print range and estimated time without moving"`
	Args   struct {
		File string `positional-arg-name:"file" required:"yes"`
	} `positional-args:"yes"`
}

func (c *DrawCommand) Execute(args []string) error {
	f, err := os.Open(c.Args.File)
	if err != nil {
		return err
	}
	raw, err := path.Read(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("%s: %w", c.Args.File, err)
	}
	route, err := path.Normalize(raw, c.Scale, c.Center)
	if err != nil {
		return err
	}
	for i := 1; i < len(route); i++ {
		if route[i].Z == 0 {
			route[i].Z = c.Depth
		}
	}

	return session(func(ctx context.Context, m *machine.Manager, logger *slog.Logger) error {
		lo, hi := path.Bounds(route)
		eta, err := m.EstimateDrawTime(route)
		if err != nil {
			return err
		}
		fmt.Printf("x range = [%g, %g]\ny range = [%g, %g]\nlength = %g\neta = %s\n",
			lo.X, hi.X, lo.Y, hi.Y, path.Length(route), eta)
		if c.DryRun {
			return nil
		}
		return m.RunPath(ctx, route)
	})
}

type GCodeCommand struct {
	Args struct {
		File string `positional-arg-name:"file" description:"Program file, - or empty for stdin"`
	} `positional-args:"yes"`
}

func (c *GCodeCommand) Execute(args []string) error {
	in := os.Stdin
	if c.Args.File != "" && c.Args.File != "-" {
		f, err := os.Open(c.Args.File)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	return session(func(ctx context.Context, m *machine.Manager, logger *slog.Logger) error {
		return m.RunGCode(ctx, in, os.Stdout)
	})
}

type TensionCommand struct {
	Amount float64  `short:"a" long:"amount" required:"yes" description:"Cable to reel in (positive) or pay out (negative), in length units"`
	Motors []string `short:"m" long:"motor" description:"Motor name or index; repeat for several, default all"`
}

func (c *TensionCommand) Execute(args []string) error {
	return session(func(ctx context.Context, m *machine.Manager, logger *slog.Logger) error {
		motors, err := motorIndexes(m.Planner().MotorNames(), c.Motors)
		if err != nil {
			return err
		}
		return m.Tension(c.Amount, motors...)
	})
}

// motorIndexes resolves motor names or indexes against names.
func motorIndexes(names, sel []string) ([]int, error) {
	var out []int
	for _, s := range sel {
		if i, err := strconv.Atoi(s); err == nil && i >= 0 && i < len(names) {
			out = append(out, i)
			continue
		}
		found := false
		for i, n := range names {
			if strings.EqualFold(n, s) {
				out = append(out, i)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown motor %q (have %s)", s, strings.Join(names, ", "))
		}
	}
	return out, nil
}

type GotoCommand struct {
	Args struct {
		X float64 `positional-arg-name:"x" required:"yes"`
		Y float64 `positional-arg-name:"y" required:"yes"`
		Z float64 `positional-arg-name:"z" required:"yes"`
	} `positional-args:"yes"`
}

func (c *GotoCommand) Execute(args []string) error {
	target := standalone.Position{X: c.Args.X, Y: c.Args.Y, Z: c.Args.Z}
	return session(func(ctx context.Context, m *machine.Manager, logger *slog.Logger) error {
		if err := m.Goto(target); err != nil {
			return err
		}
		fmt.Println(m.Position())
		return nil
	})
}

type PositionCommand struct{}

func (c *PositionCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	g, err := kinematics.NewGeometry(cfg.Geometry)
	if err != nil {
		return err
	}
	lengths, err := g.Inverse(cfg.Motion.InitialPosition)
	if err != nil {
		return err
	}
	fmt.Printf("position %v\n", cfg.Motion.InitialPosition)
	for i, a := range g.Anchors() {
		fmt.Printf("%-8s anchor %v link %v cable %.4f\n", cfg.Motors[i].Name, a, g.Links()[i], lengths[i])
	}
	return nil
}
