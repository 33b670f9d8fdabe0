package sinks

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeknom/udp-game-example/server/logging"
)

// ConsoleSink renders events as human readable lines.
type ConsoleSink struct {
	logger zerolog.Logger
}

func NewConsoleSink(w io.Writer, cfg logging.ConsoleConfig) *ConsoleSink {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
		NoColor:    !cfg.UseColor,
	}
	return &ConsoleSink{logger: zerolog.New(output)}
}

func (s *ConsoleSink) Write(event logging.Event) error {
	entry := s.logger.WithLevel(zerologLevel(event.Severity)).
		Time(zerolog.TimestampFieldName, event.Time).
		Str("type", string(event.Type)).
		Uint64("tick", event.Tick)
	if actor := formatEntity(event.Actor); actor != "" {
		entry = entry.Str("actor", actor)
	}
	if event.Payload != nil {
		entry = entry.Interface("payload", event.Payload)
	}
	if len(event.Extra) > 0 {
		entry = entry.Fields(event.Extra)
	}
	entry.Msg(event.Category)
	return nil
}

func (s *ConsoleSink) Close(context.Context) error {
	return nil
}

func zerologLevel(sev logging.Severity) zerolog.Level {
	switch sev {
	case logging.SeverityDebug:
		return zerolog.DebugLevel
	case logging.SeverityInfo:
		return zerolog.InfoLevel
	case logging.SeverityWarn:
		return zerolog.WarnLevel
	case logging.SeverityError:
		return zerolog.ErrorLevel
	default:
		return zerolog.NoLevel
	}
}

func formatEntity(ref logging.EntityRef) string {
	if ref.ID == "" {
		return string(ref.Kind)
	}
	if ref.Kind == "" {
		return ref.ID
	}
	return fmt.Sprintf("%s:%s", ref.Kind, ref.ID)
}
