package logging

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

type Sink interface {
	Write(Event) error
	Close(context.Context) error
}

type NamedSink struct {
	Name string
	Sink Sink
}

type RouterStats struct {
	EventsTotal  uint64
	DroppedTotal uint64
	Sinks        map[string]SinkStats
}

// SinkStats counts what happened to events offered to one sink. Skipped
// events arrived while the sink was backing off after a failure; backlogged
// ones found its buffer full.
type SinkStats struct {
	Written    uint64
	Failed     uint64
	Skipped    uint64
	Backlogged uint64
}

// Router fans events out to sinks off the caller's goroutine. Publish never
// blocks, so the tick loop can log freely; when the router falls behind the
// event is dropped and counted.
type Router struct {
	clock       Clock
	minSeverity Severity
	fields      map[string]any
	fallback    *log.Logger
	dropLog     rate.Sometimes

	mu     sync.RWMutex
	closed bool
	queue  chan Event

	outputs   []*output
	done      chan struct{}
	closeOnce sync.Once

	routed  atomic.Uint64
	dropped atomic.Uint64
}

func NewRouter(clock Clock, cfg Config, namedSinks []NamedSink) (*Router, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = SystemClock{}
	}
	queueSize := cfg.BufferSize
	if queueSize <= 0 {
		queueSize = DefaultConfig().BufferSize
	}
	dropWarn := cfg.DropWarnInterval
	if dropWarn <= 0 {
		dropWarn = DefaultConfig().DropWarnInterval
	}

	r := &Router{
		clock:       clock,
		minSeverity: cfg.MinimumSeverity,
		fields:      cfg.CloneFields(),
		fallback:    log.New(os.Stderr, "[logging] ", log.LstdFlags),
		dropLog:     rate.Sometimes{Interval: dropWarn},
		queue:       make(chan Event, queueSize),
		done:        make(chan struct{}),
	}
	backlog := min(max(queueSize, 32), 1024)
	for _, named := range namedSinks {
		if named.Sink == nil {
			continue
		}
		r.outputs = append(r.outputs, &output{
			name:     named.Name,
			sink:     named.Sink,
			events:   make(chan Event, backlog),
			fallback: r.fallback,
		})
	}

	var wg sync.WaitGroup
	for _, out := range r.outputs {
		wg.Add(1)
		go func(out *output) {
			defer wg.Done()
			out.run()
		}(out)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.dispatch()
	}()
	go func() {
		wg.Wait()
		close(r.done)
	}()
	return r, nil
}

// Publish queues event for delivery. Events without a type or below the
// minimum severity are discarded here, before they cost a queue slot.
func (r *Router) Publish(_ context.Context, event Event) {
	if event.Type == "" || event.Severity < r.minSeverity {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- event:
	default:
		r.dropped.Add(1)
		r.dropLog.Do(func() {
			r.fallback.Printf("router backlog full, dropping event type=%s tick=%d (dropped so far: %d)",
				event.Type, event.Tick, r.dropped.Load())
		})
	}
}

func (r *Router) dispatch() {
	for event := range r.queue {
		if event.Time.IsZero() {
			event.Time = r.clock.Now()
		}
		event = mergeFields(event, r.fields)
		r.routed.Add(1)
		for _, out := range r.outputs {
			out.offer(event)
		}
	}
	for _, out := range r.outputs {
		close(out.events)
	}
}

// Close stops accepting events, delivers what is already queued and then
// closes every sink. Only the first call does any work.
func (r *Router) Close(ctx context.Context) error {
	first := false
	r.closeOnce.Do(func() {
		first = true
		r.mu.Lock()
		r.closed = true
		close(r.queue)
		r.mu.Unlock()
	})
	if !first {
		return nil
	}

	select {
	case <-r.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	var errs []error
	for _, out := range r.outputs {
		if err := out.sink.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close sink %s: %w", out.name, err))
		}
	}
	return errors.Join(errs...)
}

func (r *Router) Stats() RouterStats {
	stats := RouterStats{
		EventsTotal:  r.routed.Load(),
		DroppedTotal: r.dropped.Load(),
		Sinks:        make(map[string]SinkStats, len(r.outputs)),
	}
	for _, out := range r.outputs {
		stats.Sinks[out.name] = out.stats()
	}
	return stats
}

func (r *Router) Sink(name string) Sink {
	for _, out := range r.outputs {
		if out.name == name {
			return out.sink
		}
	}
	return nil
}

// output owns one sink. A failing sink is skipped for an exponentially
// growing window instead of being retried in a loop.
type output struct {
	name     string
	sink     Sink
	events   chan Event
	fallback *log.Logger

	failures int
	retryAt  time.Time

	written    atomic.Uint64
	failed     atomic.Uint64
	skipped    atomic.Uint64
	backlogged atomic.Uint64
}

func (o *output) offer(event Event) {
	select {
	case o.events <- cloneEvent(event):
	default:
		o.backlogged.Add(1)
	}
}

func (o *output) run() {
	for event := range o.events {
		if o.failures > 0 && time.Now().Before(o.retryAt) {
			o.skipped.Add(1)
			continue
		}
		if err := o.sink.Write(event); err != nil {
			o.failed.Add(1)
			o.backoff(err)
			continue
		}
		o.written.Add(1)
		o.failures = 0
	}
}

func (o *output) backoff(err error) {
	o.failures++
	delay := time.Second << min(o.failures-1, 5)
	o.retryAt = time.Now().Add(delay)
	o.fallback.Printf("sink %s failed: %v (skipping events for %s)", o.name, err, delay)
}

func (o *output) stats() SinkStats {
	return SinkStats{
		Written:    o.written.Load(),
		Failed:     o.failed.Load(),
		Skipped:    o.skipped.Load(),
		Backlogged: o.backlogged.Load(),
	}
}
