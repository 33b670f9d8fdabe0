package config

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeknom/udp-game-example/server/logging"
)

func lookupFrom(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func quietLogger() *log.Logger {
	return log.New(&bytes.Buffer{}, "", 0)
}

func TestFromLookupDefaults(t *testing.T) {
	var buf bytes.Buffer
	cfg, err := FromLookup(lookupFrom(nil), log.New(&buf, "", 0))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:11000", cfg.UDPAddr)
	assert.Equal(t, 60, cfg.TickRate)
	assert.Equal(t, 5, cfg.CatchupMaxTicks)
	assert.Equal(t, 60, cfg.SlowTickEvery)
	assert.Equal(t, ":8080", cfg.DiagnosticsAddr)
	assert.Equal(t, []string{"console"}, cfg.Logging.EnabledSinks)
	assert.Equal(t, logging.SeverityInfo, cfg.Logging.MinimumSeverity)
	assert.Contains(t, buf.String(), "UDP_ADDR not set")
}

func TestFromLookupOverrides(t *testing.T) {
	cfg, err := FromLookup(lookupFrom(map[string]string{
		"UDP_ADDR":          "127.0.0.1:0",
		"TICK_RATE":         "30",
		"CATCHUP_MAX_TICKS": "3",
		"SLOW_TICK_EVERY":   "15",
		"QUEUE_CAPACITY":    "8",
		"DIAGNOSTICS_ADDR":  "",
		"LOG_SINKS":         "console, json",
		"LOG_JSON_PATH":     "/tmp/events.ndjson",
		"LOG_MIN_SEVERITY":  "warn",
		"LOG_COLOR":         "true",
		"ENABLE_PPROF":      "1",
	}), quietLogger())
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:0", cfg.UDPAddr)
	assert.Equal(t, 30, cfg.TickRate)
	assert.Equal(t, 3, cfg.CatchupMaxTicks)
	assert.Equal(t, 15, cfg.SlowTickEvery)
	assert.Equal(t, 8, cfg.QueueCapacity)
	assert.Empty(t, cfg.DiagnosticsAddr)
	assert.Equal(t, []string{"console", "json"}, cfg.Logging.EnabledSinks)
	assert.Equal(t, "/tmp/events.ndjson", cfg.Logging.JSON.FilePath)
	assert.Equal(t, logging.SeverityWarn, cfg.Logging.MinimumSeverity)
	assert.True(t, cfg.Logging.Console.UseColor)
	assert.True(t, cfg.EnablePprof)
}

func TestFromLookupRejectsInvalidValues(t *testing.T) {
	_, err := FromLookup(lookupFrom(map[string]string{
		"TICK_RATE":         "fast",
		"CATCHUP_MAX_TICKS": "0",
		"LOG_MIN_SEVERITY":  "loud",
	}), quietLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "TICK_RATE")
	assert.Contains(t, err.Error(), "CATCHUP_MAX_TICKS")
	assert.Contains(t, err.Error(), "LOG_MIN_SEVERITY")
}

func TestFromLookupJSONSinkNeedsPath(t *testing.T) {
	_, err := FromLookup(lookupFrom(map[string]string{"LOG_SINKS": "json"}), quietLogger())
	require.ErrorIs(t, err, ErrInvalid)
}

func TestLoadReadsDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.env")
	require.NoError(t, os.WriteFile(path, []byte("SLOW_TICK_EVERY=12\n"), 0o600))
	t.Setenv("SLOW_TICK_EVERY", "")
	os.Unsetenv("SLOW_TICK_EVERY")

	cfg, err := Load(quietLogger(), path)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.SlowTickEvery)
}

func TestLoadSkipsMissingFile(t *testing.T) {
	_, err := Load(quietLogger(), filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
}
