package main

import (
	"fmt"
	"io"
	"os"

	"github.com/gwillem/rover/pkg/capture"
)

type ExportCommand struct {
	Output string `short:"o" long:"output" description:"Write to this file instead of stdout"`
}

func (c *ExportCommand) Execute(args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(os.Stderr, cfg)

	store := openCapture(cfg, logger)
	exp := capture.NewExporter(store)
	if err := exp.BeginRead(); err != nil {
		return fmt.Errorf("open capture %s: %w", store.Path(), err)
	}
	defer exp.EndRead()

	var out io.Writer = os.Stdout
	if c.Output != "" {
		f, err := os.Create(c.Output)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}

	n, err := io.Copy(out, exp)
	if err != nil {
		return fmt.Errorf("export capture: %w", err)
	}
	logger.Info().Int64("bytes", n).Str("capture", store.Path()).Msg("dataset exported")
	return nil
}
