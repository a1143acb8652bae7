package app

import (
	"errors"
	"fmt"
	"log/slog"

	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/flight_command/internal/gps"
	"github.com/relabs-tech/flight_command/internal/mavros"
)

// retainedPublisher is the slice of the bus the GPS bridge writes to.
type retainedPublisher interface {
	PublishRetained(name string, v any) error
}

// RunGPSBridge reads NMEA from GPS_SERIAL_PORT and republishes fixes,
// headings and UTC time on the feed topics the flight controller bridge
// would use. Messages are retained so a late monitor sees the last fix.
func RunGPSBridge() error {
	rt, err := setup("gps_bridge")
	if err != nil {
		return err
	}
	defer rt.close()
	log := rt.log.With("component", "gps_bridge")

	if rt.cfg.GPSSerialPort == "" {
		return errors.New("GPS_SERIAL_PORT is not set")
	}

	serialOpts := serial.OpenOptions{
		PortName:              rt.cfg.GPSSerialPort,
		BaudRate:              uint(rt.cfg.GPSBaudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	port, err := serial.Open(serialOpts)
	if err != nil {
		return fmt.Errorf("open %s: %w", serialOpts.PortName, err)
	}
	log.Info("serial port opened", "port", serialOpts.PortName, "baud", serialOpts.BaudRate)

	ctx, stop := signalContext()
	defer stop()

	// Closing the port is the only way to unblock the pending read.
	go func() {
		<-ctx.Done()
		port.Close()
	}()

	var dec gps.Decoder
	err = dec.Run(ctx, port,
		func(u gps.Update) { publishGPSUpdate(rt.bus, log, u) },
		func(err error) {
			if errors.Is(err, gps.ErrNoFix) {
				log.Debug("no fix yet")
				return
			}
			log.Debug("nmea error", "error", err)
		})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func publishGPSUpdate(pub retainedPublisher, log *slog.Logger, u gps.Update) {
	if u.Position != nil {
		if err := pub.PublishRetained(mavros.TopicGlobalPosition, u.Position); err != nil {
			log.Warn("publish position", "error", err)
		} else {
			log.Debug("published fix", "lat", u.Position.Latitude, "lon", u.Position.Longitude)
		}
	}
	if u.Heading != nil {
		if err := pub.PublishRetained(mavros.TopicCompassHeading, u.Heading); err != nil {
			log.Warn("publish heading", "error", err)
		}
	}
	if u.Time != nil {
		if err := pub.PublishRetained(mavros.TopicTimeReference, u.Time); err != nil {
			log.Warn("publish time", "error", err)
		}
	}
}
