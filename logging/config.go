package logging

import (
	"errors"
	"fmt"
	"time"
)

// Sink names accepted in Config.EnabledSinks.
const (
	SinkConsole = "console"
	SinkJSON    = "json"
)

var errUnknownSink = errors.New("unknown log sink")

type Config struct {
	EnabledSinks     []string
	BufferSize       int
	MinimumSeverity  Severity
	Fields           map[string]any
	JSON             JSONConfig
	Console          ConsoleConfig
	DropWarnInterval time.Duration
}

// JSONConfig points the NDJSON sink at a file. FlushInterval <= 0 flushes
// after every event.
type JSONConfig struct {
	FilePath      string
	FlushInterval time.Duration
}

type ConsoleConfig struct {
	UseColor bool
}

func DefaultConfig() Config {
	return Config{
		EnabledSinks:     []string{SinkConsole},
		BufferSize:       512,
		MinimumSeverity:  SeverityInfo,
		DropWarnInterval: 5 * time.Second,
		JSON: JSONConfig{
			FlushInterval: 2 * time.Second,
		},
	}
}

// Validate rejects sink names the server cannot build and a json sink
// without a destination.
func (c Config) Validate() error {
	var errs []error
	for _, name := range c.EnabledSinks {
		switch name {
		case SinkConsole, SinkJSON:
		default:
			errs = append(errs, fmt.Errorf("%w %q", errUnknownSink, name))
		}
	}
	if c.HasSink(SinkJSON) && c.JSON.FilePath == "" {
		errs = append(errs, errors.New("json sink requires a file path"))
	}
	return errors.Join(errs...)
}

func (c Config) HasSink(name string) bool {
	for _, s := range c.EnabledSinks {
		if s == name {
			return true
		}
	}
	return false
}

func (c Config) CloneFields() map[string]any {
	if len(c.Fields) == 0 {
		return nil
	}
	cloned := make(map[string]any, len(c.Fields))
	for k, v := range c.Fields {
		cloned[k] = v
	}
	return cloned
}
