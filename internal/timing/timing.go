// Package timing provides a scope timer for instrumentation.
//
//	t := timing.Start(logger, "sieve")
//	defer t.Stop()
package timing

import (
	"log/slog"
	"time"
)

// Timer measures the time between Start and Stop.
type Timer struct {
	logger *slog.Logger
	label  string
	start  time.Time
	now    func() time.Time
}

// Start begins timing. A nil logger disables logging; Stop still returns the
// elapsed duration.
func Start(logger *slog.Logger, label string) *Timer {
	return startWithClock(logger, label, time.Now)
}

func startWithClock(logger *slog.Logger, label string, now func() time.Time) *Timer {
	return &Timer{logger: logger, label: label, start: now(), now: now}
}

// Stop logs and returns the elapsed time. Safe to call more than once; each
// call reports the time since Start.
func (t *Timer) Stop() time.Duration {
	elapsed := t.now().Sub(t.start)
	if t.logger != nil {
		label := t.label
		if label == "" {
			label = "elapsed"
		}
		t.logger.Info(label+" took", slog.Duration("elapsed", elapsed))
	}
	return elapsed
}
