package main

import (
	"fmt"
	"os"
)

type ClearCommand struct{}

func (c *ClearCommand) Execute(args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(os.Stderr, cfg)

	store := openCapture(cfg, logger)
	if !store.Exists() {
		fmt.Println(dimStyle.Render("Nothing to clear."))
		return nil
	}
	size := store.Size()
	if err := store.Clear(); err != nil {
		return fmt.Errorf("clear capture: %w", err)
	}
	fmt.Println(successStyle.Render(fmt.Sprintf("Removed %s (%d bytes).", store.Path(), size)))
	return nil
}
