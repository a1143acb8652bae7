package app

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/relabs-tech/flight_command/internal/telemetry"
)

func TestSnapshotLinesEmptyStore(t *testing.T) {
	now := time.Now()
	lines := snapshotLines(telemetry.NewStore().Snapshot(), now)
	if len(lines) != 2 {
		t.Fatalf("lines = %q", lines)
	}
	for _, l := range lines {
		if !strings.HasSuffix(l, "waiting...") {
			t.Errorf("line %q does not say waiting", l)
		}
	}
}

func TestSnapshotLines(t *testing.T) {
	base := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	store := telemetry.NewStore(telemetry.WithClock(func() time.Time { return clock }))
	store.ApplyVehicleState(telemetry.VehicleState{Connected: true, Armed: true, Mode: "GUIDED"})
	store.ApplyGlobalPosition(telemetry.GlobalPosition{Latitude: 50.0614300, Longitude: 19.9365800, AltitudeMSL: 219})
	store.ApplyTrafficContact(telemetry.TrafficContact{ICAOAddress: 0x48AE21, HeadingDeg: 270})
	store.ApplyRCChannel5(1500)

	var buf bytes.Buffer
	printSnapshot(&buf, store.Snapshot(), base.Add(3*time.Second))
	out := buf.String()

	for _, want := range []string{
		"connected=true armed=true guided=false mode=GUIDED",
		"lat=50.0614300 lon=19.9365800 alt=219.0m",
		"icao=48AE21",
		"[RC5  ] 1500us",
		"3 seconds ago",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "[HDG") {
		t.Errorf("unset heading printed:\n%s", out)
	}
}

type slowRecorder struct {
	runs    atomic.Int32
	stopped atomic.Bool
	err     error
}

func (r *slowRecorder) Run(ctx context.Context, _ *telemetry.Store, every time.Duration) error {
	r.runs.Add(1)
	if r.err != nil {
		return r.err
	}
	<-ctx.Done()
	time.Sleep(20 * time.Millisecond)
	r.stopped.Store(true)
	return nil
}

func TestRunConsoleJoinsRecorder(t *testing.T) {
	store := telemetry.NewStore()
	store.ApplyVehicleState(telemetry.VehicleState{Connected: true, Mode: "GUIDED"})
	rec := &slowRecorder{}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	var buf bytes.Buffer
	if err := runConsole(ctx, &buf, store, consoleTimings{print: 5 * time.Millisecond, record: time.Second}, rec); err != nil {
		t.Fatalf("runConsole: %v", err)
	}
	if rec.runs.Load() != 1 {
		t.Errorf("recorder started %d times", rec.runs.Load())
	}
	if !rec.stopped.Load() {
		t.Error("runConsole returned before the recorder stopped")
	}
	if !strings.Contains(buf.String(), "mode=GUIDED") {
		t.Errorf("nothing printed:\n%s", buf.String())
	}
}

func TestRunConsoleStopsOnRecorderError(t *testing.T) {
	rec := &slowRecorder{err: errors.New("disk full")}
	done := make(chan error, 1)
	go func() {
		var buf bytes.Buffer
		done <- runConsole(context.Background(), &buf, telemetry.NewStore(), consoleTimings{print: time.Millisecond, record: time.Second}, rec)
	}()
	select {
	case err := <-done:
		if err == nil || err.Error() != "disk full" {
			t.Errorf("runConsole = %v, expected recorder error", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("print loop kept running after the recorder failed")
	}
}

func TestRunConsoleWithoutJournal(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	var buf bytes.Buffer
	if err := runConsole(ctx, &buf, telemetry.NewStore(), consoleTimings{print: 5 * time.Millisecond}, nil); err != nil {
		t.Fatalf("runConsole: %v", err)
	}
}
