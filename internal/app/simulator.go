package app

import (
	"log/slog"
	"time"

	"github.com/relabs-tech/flight_command/internal/bus"
	"github.com/relabs-tech/flight_command/internal/geo"
	"github.com/relabs-tech/flight_command/internal/mavros"
	"github.com/relabs-tech/flight_command/internal/sim"
	"github.com/relabs-tech/flight_command/internal/telemetry"
)

// RunSimulator stands in for the flight controller bridge: it answers every
// command service, follows setpoints and publishes all telemetry feeds every
// SIM_UPDATE_INTERVAL.
func RunSimulator() error {
	rt, err := setup("simulator")
	if err != nil {
		return err
	}
	defer rt.close()
	log := rt.log.With("component", "simulator")

	home := geo.Point{Lat: rt.cfg.SimHomeLat, Lon: rt.cfg.SimHomeLon}
	v := sim.New(home, 488)

	for service, h := range simServices(v, log) {
		if err := rt.bus.Serve(service, h); err != nil {
			return err
		}
	}
	if err := rt.bus.Subscribe(mavros.TopicSetpointGlobal, func(p []byte) {
		var sp mavros.GlobalPositionTarget
		if err := rt.bus.Decode(p, &sp); err != nil {
			log.Warn("bad global setpoint", "error", err)
			return
		}
		applyGlobalSetpoint(v, log, sp)
	}); err != nil {
		return err
	}
	if err := rt.bus.Subscribe(mavros.TopicSetpointLocal, func(p []byte) {
		var sp mavros.PositionTarget
		if err := rt.bus.Decode(p, &sp); err != nil {
			log.Warn("bad local setpoint", "error", err)
			return
		}
		applyLocalSetpoint(v, log, sp)
	}); err != nil {
		return err
	}
	log.Info("simulated vehicle ready", "lat", home.Lat, "lon", home.Lon)

	ctx, stop := signalContext()
	defer stop()

	interval := time.Duration(rt.cfg.SimUpdateInterval) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			v.Step(now.Sub(last).Seconds())
			last = now
			publishSimFeeds(rt.bus, log, v, now)
		}
	}
}

// simServices maps each command service to its handler on v.
func simServices(v *sim.Vehicle, log *slog.Logger) map[string]bus.Handler {
	return map[string]bus.Handler{
		mavros.ServiceArming: func(decode func(any) error) (any, error) {
			var req mavros.CommandBoolRequest
			if err := decode(&req); err != nil {
				return nil, err
			}
			ok := v.Arm(req.Value)
			log.Info("arming request", "value", req.Value, "accepted", ok)
			return mavros.CommandResponse{Success: ok}, nil
		},
		mavros.ServiceSetMode: func(decode func(any) error) (any, error) {
			var req mavros.SetModeRequest
			if err := decode(&req); err != nil {
				return nil, err
			}
			ok := v.SetMode(req.CustomMode)
			log.Info("set_mode request", "mode", req.CustomMode, "accepted", ok)
			return mavros.SetModeResponse{ModeSent: ok}, nil
		},
		mavros.ServiceTakeoff: func(decode func(any) error) (any, error) {
			var req mavros.CommandTOLRequest
			if err := decode(&req); err != nil {
				return nil, err
			}
			ok := v.TakeOff(float64(req.Altitude))
			log.Info("takeoff request", "altitude", req.Altitude, "accepted", ok)
			return mavros.CommandResponse{Success: ok}, nil
		},
		mavros.ServiceLand: func(decode func(any) error) (any, error) {
			var req mavros.CommandTOLRequest
			if err := decode(&req); err != nil {
				return nil, err
			}
			ok := v.Land()
			log.Info("land request", "accepted", ok)
			return mavros.CommandResponse{Success: ok}, nil
		},
		mavros.ServiceCommand: func(decode func(any) error) (any, error) {
			var req mavros.CommandLongRequest
			if err := decode(&req); err != nil {
				return nil, err
			}
			ok := req.Command == mavros.CmdDoSetServo && v.SetServo(int(req.Param1), float64(req.Param2))
			log.Info("command request", "command", req.Command, "accepted", ok)
			return mavros.CommandResponse{Success: ok}, nil
		},
	}
}

func applyGlobalSetpoint(v *sim.Vehicle, log *slog.Logger, sp mavros.GlobalPositionTarget) {
	if !v.GoTo(sp.Latitude, sp.Longitude, sp.Altitude) {
		log.Debug("global setpoint ignored", "lat", sp.Latitude, "lon", sp.Longitude)
	}
}

// applyLocalSetpoint undoes the body-frame mapping of the local setpoint:
// x is right, y is forward, yaw is offset by a quarter turn.
func applyLocalSetpoint(v *sim.Vehicle, log *slog.Logger, sp mavros.PositionTarget) {
	yaw := geo.ToDegrees(float64(sp.Yaw)) - 90
	if !v.Offset(sp.Position.Y, sp.Position.X, sp.Position.Z, yaw) {
		log.Debug("local setpoint ignored")
	}
}

type feedPublisher interface {
	Publish(name string, v any) error
	PublishRetained(name string, v any) error
}

// publishSimFeeds emits one message on every telemetry feed. The state feed
// is retained so a monitor started later sees the link immediately.
func publishSimFeeds(out feedPublisher, log *slog.Logger, v *sim.Vehicle, now time.Time) {
	st := v.State()
	tr := v.Traffic()

	if err := out.PublishRetained(mavros.TopicState, mavros.State{
		Connected: st.Connected,
		Armed:     st.Armed,
		Guided:    st.Guided,
		Mode:      st.Mode,
	}); err != nil {
		log.Warn("publish state", "error", err)
		return
	}

	channels := make([]uint16, 8)
	for i := range channels {
		channels[i] = 1500
	}
	channels[telemetry.RCChannelIndex] = st.RC5

	feeds := []struct {
		topic string
		msg   any
	}{
		{mavros.TopicGlobalPosition, mavros.NavSatFix{Latitude: st.Latitude, Longitude: st.Longitude, Altitude: st.AltMSL}},
		{mavros.TopicRelAltitude, mavros.Float64{Data: st.RelAlt}},
		{mavros.TopicCompassHeading, mavros.Float64{Data: st.Heading}},
		{mavros.TopicTimeReference, mavros.TimeReference{TimeRef: mavros.StampFromTime(now), Source: "sim"}},
		{mavros.TopicADSBVehicle, mavros.ADSBVehicle{
			ICAOAddress: tr.ICAO,
			Callsign:    tr.Callsign,
			Latitude:    tr.Latitude,
			Longitude:   tr.Longitude,
			Altitude:    tr.Altitude,
			Heading:     tr.Heading,
			HorVelocity: tr.Speed,
		}},
		{mavros.TopicRCIn, mavros.RCIn{Channels: channels}},
	}
	for _, f := range feeds {
		if err := out.Publish(f.topic, f.msg); err != nil {
			log.Warn("publish feed", "topic", f.topic, "error", err)
		}
	}
}
