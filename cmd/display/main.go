package main

import (
	"log"

	"github.com/relabs-tech/flight_command/internal/app"
	"github.com/relabs-tech/flight_command/internal/config"
)

func main() {
	log.Println("starting flight-command OLED status display")

	if err := config.InitGlobal("flight_config.txt"); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunDisplay(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
