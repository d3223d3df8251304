package main

import (
	"os"

	"github.com/jessevdk/go-flags"
)

// GlobalOptions apply to every subcommand.
type GlobalOptions struct {
	Config   string `short:"c" long:"config" env:"SPIDER_CONFIG" description:"Machine configuration file (json, yaml or toml)"`
	LogLevel string `long:"log-level" description:"Override log.level (debug, info, warn, error)"`
	LogFile  string `long:"log-file" description:"Also append logs to this file"`
	Backend  string `short:"b" long:"backend" choice:"fake" choice:"rpio" choice:"mcu" description:"Override hardware.backend"`
	NoReset  bool   `long:"no-reset" description:"Do not return to the origin on exit"`
}

type Options struct {
	GlobalOptions

	Draw     DrawCommand     `command:"draw" description:"Draw a CSV route of x,y[,z] points"`
	GCode    GCodeCommand    `command:"gcode" description:"Run a G-code program"`
	Tension  TensionCommand  `command:"tension" description:"Reel cable in or out without moving the platform model"`
	Goto     GotoCommand     `command:"goto" description:"Move to an absolute position"`
	Position PositionCommand `command:"position" description:"Print the configured geometry and start position"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "spider - three-cable parallel robot controller"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}
