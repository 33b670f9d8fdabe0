// Package telemetry holds the narrow logging and counter interfaces that the
// queue, the scheduler and the receive loop depend on, so none of them needs
// to import the event router.
package telemetry

import (
	"log"

	"github.com/jeknom/udp-game-example/server/logging"
)

// Logger receives operator-facing text lines, such as startup banners and
// backlog warnings, that sit outside the structured event stream.
type Logger interface {
	Printf(format string, args ...any)
}

// LoggerFunc is a Logger backed by a single function. The nil value drops
// every line, which makes LoggerFunc(nil) a convenient silent default.
type LoggerFunc func(format string, args ...any)

func (f LoggerFunc) Printf(format string, args ...any) {
	if f != nil {
		f(format, args...)
	}
}

// WrapLogger routes lines to a *log.Logger. The returned value also reports
// that logger through StandardLogger, which app.Run uses to hand the same
// destination to net/http and config loading.
func WrapLogger(logger *log.Logger) Logger {
	return stdLogger{out: logger}
}

type stdLogger struct {
	out *log.Logger
}

func (s stdLogger) Printf(format string, args ...any) {
	if s.out != nil {
		s.out.Printf(format, args...)
	}
}

func (s stdLogger) StandardLogger() *log.Logger {
	return s.out
}

// Metrics records named counters (Add) and gauges (Store).
type Metrics interface {
	Add(key string, delta uint64)
	Store(key string, value uint64)
}

// WrapMetrics points Metrics at the shared registry read by /diagnostics.
// A nil registry yields a Metrics that discards everything.
func WrapMetrics(registry *logging.Metrics) Metrics {
	if registry == nil {
		return NopMetrics()
	}
	return registryMetrics{registry: registry}
}

type registryMetrics struct {
	registry *logging.Metrics
}

func (r registryMetrics) Add(key string, delta uint64) {
	r.registry.TelemetryAdd(key, delta)
}

func (r registryMetrics) Store(key string, value uint64) {
	r.registry.TelemetryStore(key, value)
}

type discard struct{}

func (discard) Add(string, uint64)   {}
func (discard) Store(string, uint64) {}

// NopMetrics returns a Metrics for tests and for callers without a registry.
func NopMetrics() Metrics {
	return discard{}
}
