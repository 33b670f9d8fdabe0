package sim

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeknom/udp-game-example/server/logging/simulation"
)

const (
	fastTicksMetricKey       = "sim_fast_ticks_total"
	slowTicksMetricKey       = "sim_slow_ticks_total"
	catchupDeferredMetricKey = "sim_catchup_deferred_total"
	budgetOverrunMetricKey   = "sim_tick_budget_overrun_total"
)

// LoopConfig tunes the fixed-timestep scheduler.
type LoopConfig struct {
	// TickRate is the number of fast ticks per second.
	TickRate int
	// CatchupMaxTicks caps how many fast ticks one outer iteration may run.
	CatchupMaxTicks int
	// SlowTickEvery runs a slow tick after every N-th fast tick.
	SlowTickEvery int
}

// DefaultLoopConfig is 60 Hz with a 5 tick catch-up cap and a 1 Hz slow tick.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{TickRate: 60, CatchupMaxTicks: 5, SlowTickEvery: 60}
}

func (c LoopConfig) normalized() LoopConfig {
	def := DefaultLoopConfig()
	if c.TickRate <= 0 {
		c.TickRate = def.TickRate
	}
	if c.CatchupMaxTicks <= 0 {
		c.CatchupMaxTicks = def.CatchupMaxTicks
	}
	if c.SlowTickEvery <= 0 {
		c.SlowTickEvery = def.SlowTickEvery
	}
	return c
}

// Interval is the duration of one fast tick.
func (c LoopConfig) Interval() time.Duration {
	return time.Second / time.Duration(c.normalized().TickRate)
}

// LoopHooks are invoked synchronously on the scheduler's goroutine.
type LoopHooks struct {
	FastTick func(tick uint64)
	SlowTick func(tick uint64)
}

// Loop is an accumulator style fixed-timestep scheduler. It owns the tick
// counter; all hook calls happen on the goroutine running Run.
type Loop struct {
	config   LoopConfig
	hooks    LoopHooks
	deps     Deps
	interval time.Duration

	started  bool
	deadline time.Time
	frame    uint64

	deferLog   rate.Sometimes
	overrunLog rate.Sometimes
}

// NewLoop constructs a scheduler. Zero config fields take their defaults.
func NewLoop(cfg LoopConfig, hooks LoopHooks, deps Deps) *Loop {
	cfg = cfg.normalized()
	return &Loop{
		config:     cfg,
		hooks:      hooks,
		deps:       deps.withDefaults(),
		interval:   cfg.Interval(),
		deferLog:   rate.Sometimes{Interval: time.Second},
		overrunLog: rate.Sometimes{Interval: time.Second},
	}
}

// Frame reports the number of fast ticks executed so far.
func (l *Loop) Frame() uint64 {
	return l.frame
}

// NextDeadline reports when the next fast tick is due.
func (l *Loop) NextDeadline() time.Time {
	return l.deadline
}

// Config returns the effective configuration.
func (l *Loop) Config() LoopConfig {
	return l.config
}

// Iterate performs one outer iteration at time now: it runs fast ticks while
// now has reached the deadline, at most CatchupMaxTicks of them, and returns
// how many ran. Owed ticks beyond the cap stay owed for the next call.
func (l *Loop) Iterate(ctx context.Context, now time.Time) int {
	if !l.started {
		l.started = true
		l.deadline = now
	}

	ran := 0
	for ran < l.config.CatchupMaxTicks && !now.Before(l.deadline) {
		l.fastTick(ctx)
		l.deadline = l.deadline.Add(l.interval)
		ran++
	}

	if ran == l.config.CatchupMaxTicks && !now.Before(l.deadline) {
		l.reportDeferred(ctx, ran, now)
	}
	return ran
}

// Run drives the scheduler until ctx is cancelled. Cancellation is observed
// between outer iterations and interrupts the sleep immediately.
func (l *Loop) Run(ctx context.Context) {
	l.deps.Logger.Printf("tick loop running at %d Hz (catch-up cap %d, slow tick every %d)",
		l.config.TickRate, l.config.CatchupMaxTicks, l.config.SlowTickEvery)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if l.Iterate(ctx, l.deps.Clock.Now()) > 0 {
			continue
		}

		wait := l.deadline.Sub(l.deps.Clock.Now())
		if wait < 0 {
			wait = 0
		}
		if err := l.deps.Sleeper.Sleep(ctx, wait); err != nil {
			return
		}
	}
}

func (l *Loop) fastTick(ctx context.Context) {
	l.frame++
	tick := l.frame

	start := l.deps.Clock.Now()
	if l.hooks.FastTick != nil {
		l.hooks.FastTick(tick)
	}
	l.deps.Metrics.Add(fastTicksMetricKey, 1)

	if tick%uint64(l.config.SlowTickEvery) == 0 {
		if l.hooks.SlowTick != nil {
			l.hooks.SlowTick(tick)
		}
		l.deps.Metrics.Add(slowTicksMetricKey, 1)
	}

	if elapsed := l.deps.Clock.Now().Sub(start); elapsed > l.interval {
		l.deps.Metrics.Add(budgetOverrunMetricKey, 1)
		l.overrunLog.Do(func() {
			simulation.TickBudgetOverrun(ctx, l.deps.Publisher, tick, simulation.TickBudgetOverrunPayload{
				DurationMillis: elapsed.Milliseconds(),
				BudgetMillis:   l.interval.Milliseconds(),
				Ratio:          float64(elapsed) / float64(l.interval),
			}, nil)
		})
	}
}

func (l *Loop) reportDeferred(ctx context.Context, ran int, now time.Time) {
	lag := now.Sub(l.deadline)
	owed := uint64(lag/l.interval) + 1
	l.deps.Metrics.Add(catchupDeferredMetricKey, 1)
	l.deferLog.Do(func() {
		simulation.CatchupDeferred(ctx, l.deps.Publisher, l.frame, simulation.CatchupDeferredPayload{
			Executed:  ran,
			Owed:      owed,
			LagMillis: lag.Milliseconds(),
		}, nil)
	})
}

// Sleeper blocks for a duration or until ctx is done, whichever is first.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// TimerSleeper sleeps on a runtime timer.
type TimerSleeper struct{}

func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
