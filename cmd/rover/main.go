package main

import (
	"os"

	"github.com/jessevdk/go-flags"
)

type Options struct {
	Config   string `short:"c" long:"config" default:"rover.json" description:"Configuration file"`
	LogLevel string `long:"log-level" description:"Override the configured log level (debug, info, warn, error)"`

	Setup  SetupCommand  `command:"setup" description:"Find the wheel bus and sensor board and write the configuration"`
	Drive  DriveCommand  `command:"drive" description:"Drive the rover from the terminal"`
	Serve  ServeCommand  `command:"serve" description:"Run headless with the remote control server"`
	Export ExportCommand `command:"export" description:"Write the captured dataset as CSV"`
	Clear  ClearCommand  `command:"clear" description:"Delete the capture file"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "Rover - drive, record and run a ranging-sensor rover"

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
