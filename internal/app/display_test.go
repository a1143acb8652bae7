package app

import (
	"image"
	"testing"

	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/flight_command/internal/telemetry"
)

func TestStatusLines(t *testing.T) {
	store := telemetry.NewStore()
	if got := statusLines(store.Snapshot()); len(got) != 2 || got[0] != "State Waiting..." || got[1] != "GPS Waiting..." {
		t.Fatalf("empty store lines = %q", got)
	}

	store.ApplyVehicleState(telemetry.VehicleState{Connected: true, Armed: true, Mode: "GUIDED"})
	store.ApplyGlobalPosition(telemetry.GlobalPosition{Latitude: -33.8688, Longitude: -151.2093})
	store.ApplyCompassHeading(telemetry.CompassHeading{Degrees: 7})
	store.ApplyRelativeAltitude(telemetry.RelativeAltitude{Meters: 12.4})

	want := []string{"GUIDED   ARMED", "33.86880S", "151.20930W", "A:12m    H:007"}
	got := statusLines(store.Snapshot())
	if len(got) != len(want) {
		t.Fatalf("lines = %q", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, expected %q", i, got[i], want[i])
		}
	}
}

func TestStatusLinesNoLink(t *testing.T) {
	store := telemetry.NewStore()
	store.ApplyVehicleState(telemetry.VehicleState{Mode: "STABILIZE"})
	if got := statusLines(store.Snapshot())[0]; got != "NO LINK  SAFE" {
		t.Errorf("state line = %q", got)
	}
}

func TestRenderLines(t *testing.T) {
	img := renderLines("A", "B", "C", "D", "E")
	if img.Bounds() != image.Rect(0, 0, panelWidth, panelHeight) {
		t.Fatalf("bounds = %v", img.Bounds())
	}
	lit := 0
	for y := 0; y < panelHeight; y++ {
		for x := 0; x < panelWidth; x++ {
			if img.BitAt(x, y) == image1bit.On {
				lit++
			}
		}
	}
	if lit == 0 {
		t.Error("nothing drawn")
	}

	blank := renderLines()
	for _, b := range blank.Pix {
		if b != 0 {
			t.Fatal("blank image has lit pixels")
		}
	}
}
