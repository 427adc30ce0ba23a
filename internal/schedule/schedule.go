package schedule

import (
	"context"
	"time"

	cron "github.com/robfig/cron/v3"

	"jokebot/pkg/logx"
)

// topOfHour fires at minute zero of every hour.
const topOfHour = "0 * * * *"

// Hourly drives one callback per top-of-hour (UTC). The very first fire is
// aligned on the next hour boundary, never at startup, and each iteration
// recomputes the boundary so pass duration can't accumulate drift.
type Hourly struct {
	sched cron.Schedule
	now   func() time.Time
	log   logx.Logger
	run   func(ctx context.Context)
}

func NewHourly(run func(ctx context.Context), log logx.Logger) *Hourly {
	sched, err := cron.ParseStandard(topOfHour)
	if err != nil {
		// Constant spec; cannot happen.
		panic(err)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Hourly{sched: sched, now: time.Now, run: run, log: log}
}

// NextFire returns the first top-of-hour strictly after now, in UTC.
func (h *Hourly) NextFire(now time.Time) time.Time {
	return h.sched.Next(now.UTC())
}

// Run loops until ctx is cancelled. A pass runs to completion once started;
// cancellation is only observed between fires.
func (h *Hourly) Run(ctx context.Context) {
	for {
		now := h.now()
		next := h.NextFire(now)
		delay := next.Sub(now)
		h.log.Debug("next broadcast scheduled", logx.Time("at", next), logx.Duration("in", delay))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			h.run(ctx)
		}
	}
}
