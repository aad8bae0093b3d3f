// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/benbjohnson/clock"

	"github.com/relabs-tech/loka_sensors/internal/config"
	"github.com/relabs-tech/loka_sensors/internal/mcu"
)

// RunConsole runs the robot loop on simulated sensors and prints the debug
// output to stdout. Nothing is published.
func RunConsole(cfg *config.Config) error {
	c := *cfg
	c.Simulate = true
	c.PrintDebug = true
	c.Features |= mcu.Headlight
	if c.HeadlightThreshold == 0 {
		c.HeadlightThreshold = 100
	}

	clk := clock.New()
	robot := NewRobot(&c, simDrivers(clk), clk, nil, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("console: simulated robot at %d Hz, Ctrl+C to stop", robot.Controller().Rate())
	return robot.Run(ctx)
}
