// Package retry runs an operation a bounded number of times with a fixed
// pause between attempts, on top of cenkalti/backoff.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// SleepFunc pauses for d or until ctx is done, whichever comes first.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the real-time SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Policy is the attempt budget and the pause between failed attempts.
type Policy struct {
	Attempts int
	Delay    time.Duration
}

// RetryFunc is told about every failed attempt that will be retried, with
// the pause before the next one.
type RetryFunc func(attempt int, next time.Duration)

var errAttemptFailed = errors.New("retry: attempt failed")

// BackOff is the policy as a backoff.BackOff: a constant Delay, stopped
// after Attempts-1 retries or when ctx is done.
func (p Policy) BackOff(ctx context.Context) backoff.BackOff {
	n := p.Attempts
	if n < 1 {
		n = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Delay), uint64(n-1)), ctx)
}

// Do calls op until it reports success or the attempts run out. There is no
// pause after the last attempt. Attempts below 1 are treated as 1. A nil
// sleep waits in real time. Cancelling ctx stops the loop at the next pause.
//
// Do returns the number of attempts made and whether one succeeded.
func (p Policy) Do(ctx context.Context, sleep SleepFunc, op func(attempt int) bool) (int, bool) {
	return p.DoNotify(ctx, sleep, op, nil)
}

// DoNotify is Do with a hook called before each pause.
func (p Policy) DoNotify(ctx context.Context, sleep SleepFunc, op func(attempt int) bool, onRetry RetryFunc) (int, bool) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var timer backoff.Timer
	if sleep != nil {
		timer = &sleepTimer{ctx: ctx, sleep: sleep, cancel: cancel, c: make(chan time.Time, 1)}
	}

	attempts := 0
	err := backoff.RetryNotifyWithTimer(func() error {
		attempts++
		if op(attempts) {
			return nil
		}
		return errAttemptFailed
	}, p.BackOff(ctx), func(_ error, next time.Duration) {
		if onRetry != nil {
			onRetry(attempts, next)
		}
	}, timer)
	return attempts, err == nil
}

// sleepTimer drives backoff's timer from a SleepFunc. Start blocks for the
// pause; a failed sleep cancels the retry context so the loop ends.
type sleepTimer struct {
	ctx    context.Context
	sleep  SleepFunc
	cancel context.CancelFunc
	c      chan time.Time
}

func (t *sleepTimer) Start(d time.Duration) {
	if err := t.sleep(t.ctx, d); err != nil {
		t.cancel()
		return
	}
	t.c <- time.Now()
}

func (t *sleepTimer) Stop() {}

func (t *sleepTimer) C() <-chan time.Time { return t.c }
