// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/flight_command/internal/app"
	"github.com/relabs-tech/flight_command/internal/config"
)

func main() {
	configPath := flag.String("config", "flight_config.txt", "path to the KEY=VALUE config file")
	missionPath := flag.String("mission", "mission.yaml", "path to the YAML mission")
	flag.Parse()

	log.Println("starting flight-command mission runner")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunMission(*missionPath); err != nil {
		log.Fatalf("mission failed: %v", err)
	}
}
