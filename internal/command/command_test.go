package command

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/relabs-tech/flight_command/internal/mavros"
	"github.com/relabs-tech/flight_command/internal/retry"
)

type call struct {
	service string
	req     any
}

// fakeCaller answers each call with the next scripted success flag. A nil
// error in errs with a false success models a negative acknowledgement.
type fakeCaller struct {
	mu      sync.Mutex
	calls   []call
	success []bool
	errs    []error
}

func (f *fakeCaller) Call(_ context.Context, service string, req, resp any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := len(f.calls)
	f.calls = append(f.calls, call{service, req})

	if i < len(f.errs) && f.errs[i] != nil {
		return f.errs[i]
	}
	ok := i < len(f.success) && f.success[i]
	switch r := resp.(type) {
	case *mavros.CommandResponse:
		r.Success = ok
	case *mavros.SetModeResponse:
		r.ModeSent = ok
	}
	return nil
}

type recordingSink struct {
	outcomes []Outcome
}

func (r *recordingSink) RecordOutcome(o Outcome) { r.outcomes = append(r.outcomes, o) }

type fakeSleeper struct {
	slept []time.Duration
}

func (f *fakeSleeper) sleep(_ context.Context, d time.Duration) error {
	f.slept = append(f.slept, d)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestChannel(fc *fakeCaller, fs *fakeSleeper, sink *recordingSink) *Channel {
	return New(fc, WithLogger(quietLogger()), WithSleep(fs.sleep), WithSink(sink))
}

func TestArmSucceedsOnThirdAttempt(t *testing.T) {
	fc := &fakeCaller{success: []bool{false, false, true}}
	fs := &fakeSleeper{}
	sink := &recordingSink{}
	ch := newTestChannel(fc, fs, sink)

	if !ch.Arm(context.Background()) {
		t.Fatal("Arm returned false")
	}
	if len(fc.calls) != 3 {
		t.Errorf("arm attempted %d times, expected 3", len(fc.calls))
	}
	if len(fs.slept) != 2 {
		t.Fatalf("slept %d times, expected 2", len(fs.slept))
	}
	for _, d := range fs.slept {
		if d != 5*time.Second {
			t.Errorf("pause = %v, expected 5s", d)
		}
	}
	for _, c := range fc.calls {
		if c.service != mavros.ServiceArming {
			t.Errorf("service = %q", c.service)
		}
		if req, ok := c.req.(mavros.CommandBoolRequest); !ok || !req.Value {
			t.Errorf("arm request = %#v", c.req)
		}
	}
	if len(sink.outcomes) != 1 {
		t.Fatalf("got %d outcomes, expected 1", len(sink.outcomes))
	}
	o := sink.outcomes[0]
	if !o.Success || o.Attempts != 3 || o.Command != NameArm || o.Error != "" {
		t.Errorf("outcome = %+v", o)
	}
	if o.String() != "ARM SUCCESSFUL" {
		t.Errorf("outcome string = %q", o.String())
	}
}

func TestArmGivesUpAfterThreeAttempts(t *testing.T) {
	fc := &fakeCaller{errs: []error{errors.New("service unreachable"), nil, nil}}
	fs := &fakeSleeper{}
	sink := &recordingSink{}
	ch := newTestChannel(fc, fs, sink)

	if ch.Arm(context.Background()) {
		t.Fatal("Arm returned true")
	}
	if len(fc.calls) != 3 {
		t.Errorf("arm attempted %d times, expected 3", len(fc.calls))
	}
	if len(fs.slept) != 2 {
		t.Errorf("slept %d times, expected 2", len(fs.slept))
	}
	if o := sink.outcomes[0]; o.Success || o.Attempts != 3 || o.String() != "ARM FAIL" {
		t.Errorf("outcome = %+v", o)
	}
}

func TestArmPolicyOverride(t *testing.T) {
	fc := &fakeCaller{}
	fs := &fakeSleeper{}
	ch := New(fc, WithLogger(quietLogger()), WithSleep(fs.sleep),
		WithArmPolicy(retry.Policy{Attempts: 5, Delay: 10 * time.Millisecond}))

	if ch.Arm(context.Background()) {
		t.Fatal("Arm returned true")
	}
	if len(fc.calls) != 5 || len(fs.slept) != 4 {
		t.Errorf("calls=%d sleeps=%d, expected 5 and 4", len(fc.calls), len(fs.slept))
	}
}

func TestSingleShotCommands(t *testing.T) {
	tests := []struct {
		name    string
		run     func(*Channel) bool
		service string
		check   func(t *testing.T, req any)
	}{
		{
			name:    NameGuided,
			run:     func(c *Channel) bool { return c.SetGuidedMode(context.Background()) },
			service: mavros.ServiceSetMode,
			check: func(t *testing.T, req any) {
				if r := req.(mavros.SetModeRequest); r.CustomMode != "GUIDED" {
					t.Errorf("custom mode = %q", r.CustomMode)
				}
			},
		},
		{
			name:    NameTakeOff,
			run:     func(c *Channel) bool { return c.TakeOff(context.Background(), 12.5) },
			service: mavros.ServiceTakeoff,
			check: func(t *testing.T, req any) {
				r := req.(mavros.CommandTOLRequest)
				want := mavros.CommandTOLRequest{Altitude: 12.5}
				if r != want {
					t.Errorf("takeoff request = %+v, expected %+v", r, want)
				}
			},
		},
		{
			name:    NameLand,
			run:     func(c *Channel) bool { return c.Land(context.Background()) },
			service: mavros.ServiceLand,
			check: func(t *testing.T, req any) {
				if r := req.(mavros.CommandTOLRequest); r != (mavros.CommandTOLRequest{}) {
					t.Errorf("land request = %+v, expected all zero", r)
				}
			},
		},
		{
			name:    NameServo,
			run:     func(c *Channel) bool { return c.SetServoPWM(context.Background(), 1900) },
			service: mavros.ServiceCommand,
			check: func(t *testing.T, req any) {
				r := req.(mavros.CommandLongRequest)
				if r.Command != 183 || r.Param1 != 9 || r.Param2 != 1900 {
					t.Errorf("servo request = %+v", r)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, want := range []bool{true, false} {
				fc := &fakeCaller{success: []bool{want}}
				fs := &fakeSleeper{}
				sink := &recordingSink{}
				ch := newTestChannel(fc, fs, sink)

				if got := tt.run(ch); got != want {
					t.Errorf("returned %v, expected %v", got, want)
				}
				if len(fc.calls) != 1 {
					t.Fatalf("called %d times, expected exactly 1", len(fc.calls))
				}
				if len(fs.slept) != 0 {
					t.Errorf("single-shot command slept")
				}
				if fc.calls[0].service != tt.service {
					t.Errorf("service = %q, expected %q", fc.calls[0].service, tt.service)
				}
				tt.check(t, fc.calls[0].req)
				if len(sink.outcomes) != 1 || sink.outcomes[0].Success != want || sink.outcomes[0].Command != tt.name {
					t.Errorf("outcomes = %+v", sink.outcomes)
				}
			}
		})
	}
}

func TestTransportErrorIsFailure(t *testing.T) {
	fc := &fakeCaller{success: []bool{true}, errs: []error{errors.New("timeout")}}
	sink := &recordingSink{}
	ch := newTestChannel(fc, &fakeSleeper{}, sink)

	if ch.Land(context.Background()) {
		t.Fatal("Land returned true on transport error")
	}
	if sink.outcomes[0].Error != "timeout" {
		t.Errorf("outcome error = %q", sink.outcomes[0].Error)
	}
}
