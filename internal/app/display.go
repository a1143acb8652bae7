package app

import (
	"fmt"
	"image"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/flight_command/internal/telemetry"
)

const (
	panelWidth  = 128
	panelHeight = 64
	lineHeight  = 13
)

// RunDisplay drives a 128x64 SSD1306 on DISPLAY_I2C_BUS with the vehicle
// state, position and heading, refreshed every DISPLAY_UPDATE_INTERVAL.
func RunDisplay() error {
	rt, err := setup("display")
	if err != nil {
		return err
	}
	defer rt.close()
	log := rt.log.With("component", "display")

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	i2cBus, err := i2creg.Open(rt.cfg.DisplayI2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus %q: %w", rt.cfg.DisplayI2CBus, err)
	}
	defer i2cBus.Close()

	dev, err := ssd1306.NewI2C(i2cBus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	defer dev.Halt()
	log.Info("display initialized", "bus", rt.cfg.DisplayI2CBus)

	if err := dev.Draw(dev.Bounds(), renderLines("Flight Command", "Waiting for", "vehicle..."), image.Point{}); err != nil {
		log.Warn("splash error", "error", err)
	}

	v, err := rt.vehicle()
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	ticker := time.NewTicker(time.Duration(rt.cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			img := renderStatus(v.Telemetry().Snapshot())
			if err := dev.Draw(dev.Bounds(), img, image.Point{}); err != nil {
				log.Warn("update error", "error", err)
			}
		}
	}
}

// statusLines is what the panel shows: four lines of at most 18 characters.
func statusLines(sn telemetry.Snapshot) []string {
	var lines []string

	if s := sn.State; s.Set {
		armed := "SAFE"
		if s.Value.Armed {
			armed = "ARMED"
		}
		mode := s.Value.Mode
		if !s.Value.Connected {
			mode = "NO LINK"
		}
		lines = append(lines, fmt.Sprintf("%-8.8s %s", mode, armed))
	} else {
		lines = append(lines, "State Waiting...")
	}

	if p := sn.Position; p.Set {
		lines = append(lines, hemisphere(p.Value.Latitude, "N", "S"), hemisphere(p.Value.Longitude, "E", "W"))
	} else {
		lines = append(lines, "GPS Waiting...")
	}

	var alt, hdg string
	if a := sn.RelativeAltitude; a.Set {
		alt = fmt.Sprintf("%.0fm", a.Value.Meters)
	}
	if h := sn.Heading; h.Set {
		hdg = fmt.Sprintf("%03.0f", h.Value.Degrees)
	}
	if alt != "" || hdg != "" {
		lines = append(lines, fmt.Sprintf("A:%-6s H:%s", alt, hdg))
	}
	return lines
}

func hemisphere(deg float64, pos, neg string) string {
	dir := pos
	if deg < 0 {
		dir = neg
		deg = -deg
	}
	return fmt.Sprintf("%.5f%s", deg, dir)
}

func renderStatus(sn telemetry.Snapshot) *image1bit.VerticalLSB {
	return renderLines(statusLines(sn)...)
}

// renderLines draws up to four lines of Face7x13 text, one per 13 px row.
func renderLines(lines ...string) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, panelWidth, panelHeight))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	for i, l := range lines {
		if (i+1)*lineHeight > panelHeight {
			break
		}
		drawer.Dot = fixed.P(0, (i+1)*lineHeight)
		drawer.DrawString(l)
	}
	return img
}
