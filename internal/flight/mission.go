package flight

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/relabs-tech/flight_command/internal/geo"
)

// Waypoint is one stop of a mission. Servo, when non-zero, is a pulse width
// sent to the servo output once the waypoint is reached.
type Waypoint struct {
	Name  string        `yaml:"name"`
	Lat   float64       `yaml:"lat"`
	Lon   float64       `yaml:"lon"`
	Alt   float64       `yaml:"alt"`
	Servo float64       `yaml:"servo,omitempty"`
	Hold  time.Duration `yaml:"hold,omitempty"`
}

// Mission is a plain list of waypoints flown in order after a takeoff.
type Mission struct {
	TakeoffAltitude float64       `yaml:"takeoff_altitude"`
	ToleranceDeg    float64       `yaml:"tolerance_deg,omitempty"`
	SetpointPeriod  time.Duration `yaml:"setpoint_period,omitempty"`
	WaypointTimeout time.Duration `yaml:"waypoint_timeout,omitempty"`
	Land            bool          `yaml:"land"`
	Waypoints       []Waypoint    `yaml:"waypoints"`
}

var (
	// ErrCommandRejected is returned by Fly when a command is not acknowledged.
	ErrCommandRejected = errors.New("flight: command rejected")
	// ErrWaypointTimeout is returned by Fly when a waypoint is not reached in time.
	ErrWaypointTimeout = errors.New("flight: waypoint not reached in time")
)

// LoadMission reads and validates a YAML mission file.
func LoadMission(path string) (*Mission, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mission: %w", err)
	}
	return ParseMission(data)
}

// ParseMission decodes a YAML mission and fills in defaults.
func ParseMission(data []byte) (*Mission, error) {
	var m Mission
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse mission: %w", err)
	}
	if m.SetpointPeriod <= 0 {
		m.SetpointPeriod = 500 * time.Millisecond
	}
	if m.WaypointTimeout <= 0 {
		m.WaypointTimeout = 5 * time.Minute
	}
	if m.TakeoffAltitude <= 0 {
		return nil, fmt.Errorf("mission: takeoff_altitude must be positive")
	}
	if m.ToleranceDeg < 0 {
		return nil, fmt.Errorf("mission: tolerance_deg must not be negative")
	}
	if len(m.Waypoints) == 0 {
		return nil, fmt.Errorf("mission: no waypoints")
	}
	for i, wp := range m.Waypoints {
		if err := geo.ValidateCoordinate(wp.Lat, wp.Lon); err != nil {
			return nil, fmt.Errorf("mission: waypoint %d (%s): %w", i, wp.Name, err)
		}
		if m.Waypoints[i].Name == "" {
			m.Waypoints[i].Name = fmt.Sprintf("WP%d", i+1)
		}
	}
	return &m, nil
}

// Fly runs m on v: guided mode, arm, take off, visit each waypoint and,
// if requested, land. It stops at the first rejected command or missed
// waypoint. Waiting is done in SetpointPeriod ticks, republishing the
// current setpoint on each tick.
func (v *Vehicle) Fly(ctx context.Context, m *Mission) error {
	if !v.SetGuidedMode(ctx) {
		return fmt.Errorf("guided mode: %w", ErrCommandRejected)
	}
	if !v.Arm(ctx) {
		return fmt.Errorf("arm: %w", ErrCommandRejected)
	}
	if !v.TakeOff(ctx, m.TakeoffAltitude) {
		return fmt.Errorf("take off: %w", ErrCommandRejected)
	}

	tol := m.ToleranceDeg
	if tol == 0 {
		tol = v.tolerance
	}

	for _, wp := range m.Waypoints {
		v.log.Info("heading to waypoint", "name", wp.Name, "lat", wp.Lat, "lon", wp.Lon, "alt", wp.Alt)
		if err := v.reach(ctx, wp, tol, m.SetpointPeriod, m.WaypointTimeout); err != nil {
			return fmt.Errorf("waypoint %s: %w", wp.Name, err)
		}
		if wp.Servo != 0 && !v.SetServoPWM(ctx, wp.Servo) {
			return fmt.Errorf("servo at %s: %w", wp.Name, ErrCommandRejected)
		}
		if wp.Hold > 0 {
			if err := v.hold(ctx, wp, m.SetpointPeriod, wp.Hold); err != nil {
				return err
			}
		}
	}

	if m.Land && !v.Land(ctx) {
		return fmt.Errorf("land: %w", ErrCommandRejected)
	}
	return nil
}

func (v *Vehicle) reach(ctx context.Context, wp Waypoint, tol float64, period, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(period)
	defer tick.Stop()

	dest := geo.Point{Lat: wp.Lat, Lon: wp.Lon}
	for {
		if err := v.FlyTo(wp.Lat, wp.Lon, wp.Alt); err != nil {
			v.log.Warn("setpoint not sent", "waypoint", wp.Name, "error", err)
		}
		if v.IsInPositionWithin(dest, tol) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return ErrWaypointTimeout
		case <-tick.C:
		}
	}
}

func (v *Vehicle) hold(ctx context.Context, wp Waypoint, period, d time.Duration) error {
	done := time.NewTimer(d)
	defer done.Stop()
	tick := time.NewTicker(period)
	defer tick.Stop()
	for {
		if err := v.FlyTo(wp.Lat, wp.Lon, wp.Alt); err != nil {
			v.log.Warn("setpoint not sent", "waypoint", wp.Name, "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done.C:
			return nil
		case <-tick.C:
		}
	}
}
