// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/loka_sensors/internal/app"
	"github.com/relabs-tech/loka_sensors/internal/config"
)

func main() {
	path := flag.String("config", "loka_config.txt", "configuration file")
	flag.Parse()

	log.Println("starting loka OLED display (MQTT subscriber)")

	if err := config.InitGlobal(*path); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunDisplay(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
