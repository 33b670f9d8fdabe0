package sim

import (
	"github.com/jeknom/udp-game-example/server/internal/telemetry"
	"github.com/jeknom/udp-game-example/server/logging"
)

// Deps carries shared infrastructure dependencies required by the scheduler.
type Deps struct {
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Clock     logging.Clock
	Publisher logging.Publisher
	Sleeper   Sleeper
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = telemetry.LoggerFunc(nil)
	}
	if d.Metrics == nil {
		d.Metrics = telemetry.NopMetrics()
	}
	if d.Clock == nil {
		d.Clock = logging.SystemClock{}
	}
	if d.Publisher == nil {
		d.Publisher = logging.NopPublisher()
	}
	if d.Sleeper == nil {
		d.Sleeper = TimerSleeper{}
	}
	return d
}
