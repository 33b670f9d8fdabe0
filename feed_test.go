package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedSubscribeIsPrimedWithLatest(t *testing.T) {
	feed := NewFeed()
	feed.Publish(Status{Tick: 7})

	ch, cancel := feed.Subscribe()
	defer cancel()
	assert.Equal(t, uint64(7), (<-ch).Tick)
}

func TestFeedSlowSubscriberKeepsNewestValue(t *testing.T) {
	feed := NewFeed()
	ch, cancel := feed.Subscribe()
	defer cancel()

	for tick := uint64(1); tick <= 10; tick++ {
		feed.Publish(Status{Tick: tick})
	}
	got := <-ch
	assert.Equal(t, uint64(10), got.Tick)
	select {
	case extra := <-ch:
		t.Fatalf("expected a single buffered value, got another: %+v", extra)
	default:
	}
}

func TestFeedCancelClosesAndUnsubscribes(t *testing.T) {
	feed := NewFeed()
	ch, cancel := feed.Subscribe()
	require.Equal(t, 1, feed.Subscribers())

	cancel()
	cancel()
	assert.Equal(t, 0, feed.Subscribers())

	<-ch // primed value
	_, open := <-ch
	assert.False(t, open)

	feed.Publish(Status{Tick: 1})
	assert.Equal(t, uint64(1), feed.Latest().Tick)
}
