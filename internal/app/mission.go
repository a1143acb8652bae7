package app

import (
	"context"
	"fmt"
	"time"

	"github.com/relabs-tech/flight_command/internal/flight"
)

// connectWait bounds how long a mission waits for the first connected state.
const connectWait = 30 * time.Second

// RunMission loads the YAML mission at path, waits for the flight controller
// link and flies it. Ctrl+C aborts between setpoints; the vehicle is left in
// whatever mode it was in.
func RunMission(path string) error {
	m, err := flight.LoadMission(path)
	if err != nil {
		return err
	}

	rt, err := setup("mission")
	if err != nil {
		return err
	}
	defer rt.close()
	log := rt.log.With("component", "mission")

	v, err := rt.vehicle()
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	waitCtx, cancel := context.WithTimeout(ctx, connectWait)
	err = v.WaitConnected(waitCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("flight controller not connected: %w", err)
	}

	log.Info("mission loaded", "path", path, "waypoints", len(m.Waypoints), "takeoff_alt", m.TakeoffAltitude)
	start := time.Now()
	if err := v.Fly(ctx, m); err != nil {
		log.Error("mission aborted", "error", err, "elapsed", time.Since(start).Round(time.Second))
		return err
	}
	log.Info("mission complete", "elapsed", time.Since(start).Round(time.Second))
	return nil
}
