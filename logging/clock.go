package logging

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

// SystemClock reads the wall clock. time.Now carries a monotonic reading, so
// differences between two values are safe to use for scheduling.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// Metrics is a set of named uint64 counters and gauges shared between the
// tick loop, the receive loop and the diagnostics endpoint.
type Metrics struct {
	values sync.Map // string -> *atomic.Uint64
}

func (m *Metrics) counter(key string) *atomic.Uint64 {
	if existing, ok := m.values.Load(key); ok {
		return existing.(*atomic.Uint64)
	}
	actual, _ := m.values.LoadOrStore(key, new(atomic.Uint64))
	return actual.(*atomic.Uint64)
}

func (m *Metrics) TelemetryAdd(key string, delta uint64) {
	if m == nil || key == "" {
		return
	}
	m.counter(key).Add(delta)
}

func (m *Metrics) TelemetryStore(key string, value uint64) {
	if m == nil || key == "" {
		return
	}
	m.counter(key).Store(value)
}

func (m *Metrics) Load(key string) uint64 {
	if m == nil {
		return 0
	}
	if existing, ok := m.values.Load(key); ok {
		return existing.(*atomic.Uint64).Load()
	}
	return 0
}

func (m *Metrics) Snapshot() map[string]uint64 {
	out := make(map[string]uint64)
	if m == nil {
		return out
	}
	m.values.Range(func(key, value any) bool {
		out[key.(string)] = value.(*atomic.Uint64).Load()
		return true
	})
	return out
}

// Keys lists the recorded metric names in sorted order.
func (m *Metrics) Keys() []string {
	snapshot := m.Snapshot()
	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
