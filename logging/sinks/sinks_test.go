package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/jeknom/udp-game-example/server/logging"
)

func sampleEvent() logging.Event {
	return logging.Event{
		Type:     "lifecycle.player_joined",
		Tick:     12,
		Time:     time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Actor:    logging.PlayerRef("127.0.0.1:5000"),
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  map[string]int{"slot": 1},
		Extra:    map[string]any{"session": "abc"},
	}
}

func TestJSONSinkWritesOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSON(&buf, 0)
	if err := sink.Write(sampleEvent()); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := sink.Write(sampleEvent()); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &decoded); err != nil {
		t.Fatalf("line is not json: %v", err)
	}
	if decoded["type"] != "lifecycle.player_joined" || decoded["severity"] != "info" {
		t.Fatalf("unexpected record %v", decoded)
	}
	if decoded["time"] != "2024-01-02T03:04:05Z" {
		t.Fatalf("unexpected time %v", decoded["time"])
	}
}

func TestJSONSinkBuffersUntilClose(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSON(&buf, time.Hour)
	sink.Write(sampleEvent())
	if buf.Len() != 0 {
		t.Fatalf("expected output to stay buffered")
	}
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatalf("expected close to flush")
	}
}

func TestConsoleSinkRendersEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf, logging.ConsoleConfig{})
	if err := sink.Write(sampleEvent()); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"lifecycle.player_joined", "127.0.0.1:5000", "session=abc", "lifecycle"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in console output %q", want, out)
		}
	}
}

func TestMemorySinkFiltersByType(t *testing.T) {
	sink := NewMemorySink()
	sink.Publish(context.Background(), sampleEvent())
	sink.Write(logging.Event{Type: "other"})

	if len(sink.Events()) != 2 || len(sink.OfType("other")) != 1 {
		t.Fatalf("unexpected contents %+v", sink.Events())
	}
	sink.Reset()
	if len(sink.Events()) != 0 {
		t.Fatalf("expected reset to clear events")
	}
}
