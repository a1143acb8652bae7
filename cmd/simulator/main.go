package main

import (
	"log"

	"github.com/relabs-tech/flight_command/internal/app"
	"github.com/relabs-tech/flight_command/internal/config"
)

func main() {
	log.Println("starting flight-command simulated flight controller")

	if err := config.InitGlobal("flight_config.txt"); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunSimulator(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
