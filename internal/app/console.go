package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/flight_command/internal/telemetry"
)

// RunConsole subscribes to every telemetry feed and prints the aggregated
// state every CONSOLE_LOG_INTERVAL until Ctrl+C.
func RunConsole() error {
	rt, err := setup("console")
	if err != nil {
		return err
	}
	defer rt.close()

	v, err := rt.vehicle()
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	var rec snapshotRecorder
	if rt.jrn != nil && rt.cfg.JournalSnapshotInterval > 0 {
		rec = rt.jrn
	}
	err = runConsole(ctx, os.Stdout, v.Telemetry(), consoleTimings{
		print:  time.Duration(rt.cfg.ConsoleLogInterval) * time.Millisecond,
		record: time.Duration(rt.cfg.JournalSnapshotInterval) * time.Millisecond,
	}, rec)
	rt.log.Info("console: shutting down")
	return err
}

// snapshotRecorder persists store snapshots until ctx is done.
type snapshotRecorder interface {
	Run(ctx context.Context, store *telemetry.Store, every time.Duration) error
}

type consoleTimings struct {
	print  time.Duration
	record time.Duration
}

// runConsole prints store to w on every tick and, when rec is set, records
// snapshots alongside. It returns once both have stopped, so the journal is
// never closed under a running recorder.
func runConsole(ctx context.Context, w io.Writer, store *telemetry.Store, every consoleTimings, rec snapshotRecorder) error {
	eg, ctx := errgroup.WithContext(ctx)
	if rec != nil {
		eg.Go(func() error {
			return rec.Run(ctx, store, every.record)
		})
	}
	eg.Go(func() error {
		ticker := time.NewTicker(every.print)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case now := <-ticker.C:
				printSnapshot(w, store.Snapshot(), now)
			}
		}
	})
	return eg.Wait()
}

func printSnapshot(w io.Writer, sn telemetry.Snapshot, now time.Time) {
	fmt.Fprintln(w, strings.Repeat("-", 72))
	for _, line := range snapshotLines(sn, now) {
		fmt.Fprintln(w, line)
	}
}

// snapshotLines renders one line per entity. Entities that never arrived
// say so instead of printing zeros.
func snapshotLines(sn telemetry.Snapshot, now time.Time) []string {
	age := func(received time.Time) string {
		return humanize.RelTime(received, now, "ago", "from now")
	}
	var lines []string

	if s := sn.State; s.Set {
		lines = append(lines, fmt.Sprintf("[STATE] connected=%t armed=%t guided=%t mode=%s  (%s)",
			s.Value.Connected, s.Value.Armed, s.Value.Guided, s.Value.Mode, age(s.Received)))
	} else {
		lines = append(lines, "[STATE] waiting...")
	}

	if p := sn.Position; p.Set {
		lines = append(lines, fmt.Sprintf("[POS  ] lat=%.7f lon=%.7f alt=%.1fm  (%s)",
			p.Value.Latitude, p.Value.Longitude, p.Value.AltitudeMSL, age(p.Received)))
	} else {
		lines = append(lines, "[POS  ] waiting...")
	}

	if a := sn.RelativeAltitude; a.Set {
		lines = append(lines, fmt.Sprintf("[ALT  ] rel=%.1fm  (%s)", a.Value.Meters, age(a.Received)))
	}
	if h := sn.Heading; h.Set {
		lines = append(lines, fmt.Sprintf("[HDG  ] %.1f°  (%s)", h.Value.Degrees, age(h.Received)))
	}
	if t := sn.Traffic; t.Set {
		lines = append(lines, fmt.Sprintf("[ADSB ] icao=%06X hdg=%.0f° speed=%.1fm/s lat=%.5f lon=%.5f  (%s)",
			t.Value.ICAOAddress, t.Value.HeadingDeg, t.Value.GroundSpeed, t.Value.Latitude, t.Value.Longitude, age(t.Received)))
	}
	if t := sn.Time; t.Set {
		lines = append(lines, fmt.Sprintf("[TIME ] %s", time.Unix(t.Value.EpochSeconds, 0).UTC().Format(time.RFC3339)))
	}
	if rc := sn.RC; rc.Set {
		lines = append(lines, fmt.Sprintf("[RC5  ] %dus  (%s)", rc.Value.PWM, age(rc.Received)))
	}
	return lines
}
