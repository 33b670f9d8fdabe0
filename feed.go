package server

import (
	"sync"
	"time"

	"github.com/jeknom/udp-game-example/server/internal/state"
)

// Status is the read-only view of the server that leaves the tick goroutine.
type Status struct {
	Session     state.Snapshot `json:"session"`
	Tick        uint64         `json:"tick"`
	QueueLength int            `json:"queueLength"`
	ListenAddr  string         `json:"listenAddr"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// Feed holds the latest Status and fans new ones out to subscribers. A slow
// subscriber only ever misses intermediate values; it always ends up with
// the most recent one.
type Feed struct {
	mu     sync.Mutex
	latest Status
	subs   map[chan Status]struct{}
}

func NewFeed() *Feed {
	return &Feed{subs: make(map[chan Status]struct{})}
}

func (f *Feed) Publish(status Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latest = status
	for ch := range f.subs {
		select {
		case ch <- status:
			continue
		default:
		}
		// Replace the stale value nobody has read yet.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- status:
		default:
		}
	}
}

func (f *Feed) Latest() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest
}

// Subscribe returns a channel primed with the latest status and a function
// that unsubscribes and closes it.
func (f *Feed) Subscribe() (<-chan Status, func()) {
	ch := make(chan Status, 1)
	f.mu.Lock()
	ch <- f.latest
	f.subs[ch] = struct{}{}
	f.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, ch)
			close(ch)
			f.mu.Unlock()
		})
	}
}

// Subscribers reports how many subscriptions are open.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
