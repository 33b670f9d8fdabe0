// Package config loads server settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/jeknom/udp-game-example/server/logging"
)

// ErrInvalid reports a variable that is set but cannot be parsed.
var ErrInvalid = errors.New("invalid configuration")

const (
	DefaultUDPAddr          = "0.0.0.0:11000"
	DefaultTickRate         = 60
	DefaultCatchupMaxTicks  = 5
	DefaultSlowTickEvery    = 60
	DefaultQueueCapacity    = 64
	DefaultQueueWarningStep = 256
	DefaultDiagnosticsAddr  = ":8080"
)

type Config struct {
	UDPAddr          string
	TickRate         int
	CatchupMaxTicks  int
	SlowTickEvery    int
	QueueCapacity    int
	QueueWarningStep int
	DiagnosticsAddr  string
	EnablePprof      bool
	Logging          logging.Config
}

// Default returns the settings the server runs with when nothing is set.
func Default() Config {
	return Config{
		UDPAddr:          DefaultUDPAddr,
		TickRate:         DefaultTickRate,
		CatchupMaxTicks:  DefaultCatchupMaxTicks,
		SlowTickEvery:    DefaultSlowTickEvery,
		QueueCapacity:    DefaultQueueCapacity,
		QueueWarningStep: DefaultQueueWarningStep,
		DiagnosticsAddr:  DefaultDiagnosticsAddr,
		Logging:          logging.DefaultConfig(),
	}
}

// Load reads the given .env files (".env" when none are named) and then the
// process environment. Missing files are skipped.
func Load(logger *log.Logger, files ...string) (Config, error) {
	if logger == nil {
		logger = log.Default()
	}
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return Config{}, fmt.Errorf("load %s: %w", file, err)
		}
		logger.Printf("loaded environment from %s", file)
	}
	return FromLookup(os.LookupEnv, logger)
}

// FromLookup builds a Config from an arbitrary variable source.
func FromLookup(lookup func(string) (string, bool), logger *log.Logger) (Config, error) {
	if logger == nil {
		logger = log.Default()
	}
	env := reader{lookup: lookup, logger: logger}
	cfg := Default()

	cfg.UDPAddr = env.str("UDP_ADDR", DefaultUDPAddr)
	cfg.DiagnosticsAddr = env.str("DIAGNOSTICS_ADDR", DefaultDiagnosticsAddr)
	cfg.TickRate = env.positiveInt("TICK_RATE", DefaultTickRate)
	cfg.CatchupMaxTicks = env.positiveInt("CATCHUP_MAX_TICKS", DefaultCatchupMaxTicks)
	cfg.SlowTickEvery = env.positiveInt("SLOW_TICK_EVERY", DefaultSlowTickEvery)
	cfg.QueueCapacity = env.positiveInt("QUEUE_CAPACITY", DefaultQueueCapacity)
	cfg.QueueWarningStep = env.positiveInt("QUEUE_WARNING_STEP", DefaultQueueWarningStep)

	if raw := env.str("LOG_SINKS", logging.SinkConsole); raw != "" {
		cfg.Logging.EnabledSinks = splitList(raw)
	} else {
		cfg.Logging.EnabledSinks = nil
	}
	cfg.Logging.JSON.FilePath = env.str("LOG_JSON_PATH", "")
	if raw, ok := lookup("LOG_MIN_SEVERITY"); ok {
		severity, err := logging.ParseSeverity(raw)
		if err != nil {
			env.fail("LOG_MIN_SEVERITY", raw, err)
		}
		cfg.Logging.MinimumSeverity = severity
	}
	if raw, ok := lookup("LOG_COLOR"); ok {
		color, err := strconv.ParseBool(raw)
		if err != nil {
			env.fail("LOG_COLOR", raw, err)
		}
		cfg.Logging.Console.UseColor = color
	}

	if raw, ok := lookup("ENABLE_PPROF"); ok {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			env.fail("ENABLE_PPROF", raw, err)
		}
		cfg.EnablePprof = enabled
	}

	if err := cfg.Logging.Validate(); err != nil {
		env.errs = append(env.errs, fmt.Errorf("%w: LOG_SINKS: %v", ErrInvalid, err))
	}
	if len(env.errs) > 0 {
		return Config{}, errors.Join(env.errs...)
	}
	return cfg, nil
}

type reader struct {
	lookup func(string) (string, bool)
	logger *log.Logger
	errs   []error
}

// str returns the variable or the default, noting the fallback.
func (r *reader) str(key, defaultValue string) string {
	value, exists := r.lookup(key)
	if !exists {
		r.logger.Printf("Environment variable %s not set, using default value: %q", key, defaultValue)
		return defaultValue
	}
	return strings.TrimSpace(value)
}

func (r *reader) positiveInt(key string, defaultValue int) int {
	raw, exists := r.lookup(key)
	if !exists {
		r.logger.Printf("Environment variable %s not set, using default value: %d", key, defaultValue)
		return defaultValue
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		r.fail(key, raw, err)
		return defaultValue
	}
	if value <= 0 {
		r.fail(key, raw, errors.New("must be positive"))
		return defaultValue
	}
	return value
}

func (r *reader) fail(key, raw string, err error) {
	r.errs = append(r.errs, fmt.Errorf("%w: %s=%q: %v", ErrInvalid, key, raw, err))
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
