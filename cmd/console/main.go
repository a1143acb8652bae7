// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"log"

	"github.com/relabs-tech/flight_command/internal/app"
	"github.com/relabs-tech/flight_command/internal/config"
)

func main() {
	log.Println("starting flight-command console monitor")

	if err := config.InitGlobal("flight_config.txt"); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunConsole(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
