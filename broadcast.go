package server

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/jeknom/udp-game-example/server/internal/net/proto"
	"github.com/jeknom/udp-game-example/server/internal/telemetry"
	"github.com/jeknom/udp-game-example/server/logging"
	"github.com/jeknom/udp-game-example/server/logging/network"
)

const (
	sentMetricKey       = "broadcast_datagrams_sent_total"
	sendFailedMetricKey = "broadcast_send_failed_total"
)

// Sender writes one datagram to one address.
type Sender interface {
	Send(payload []byte, addr net.Addr) error
}

// Broadcaster issues fire-and-forget sends. Each datagram goes out on its
// own goroutine so a slow or failing peer never holds up the tick or the
// other peer. Failures are reported and not retried.
type Broadcaster struct {
	sender    Sender
	publisher logging.Publisher
	metrics   telemetry.Metrics
	inflight  sync.WaitGroup
}

func NewBroadcaster(sender Sender, publisher logging.Publisher, metrics telemetry.Metrics) *Broadcaster {
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	if metrics == nil {
		metrics = telemetry.NopMetrics()
	}
	return &Broadcaster{sender: sender, publisher: publisher, metrics: metrics}
}

// Broadcast submits one datagram of type kind to every address and returns
// as soon as all sends have been started.
func (b *Broadcaster) Broadcast(ctx context.Context, tick uint64, kind proto.Type, addrs []net.Addr) {
	for _, addr := range addrs {
		payload := proto.Encode(kind)
		b.inflight.Add(1)
		go func(addr net.Addr) {
			defer b.inflight.Done()
			b.send(ctx, tick, kind, payload, addr)
		}(addr)
	}
}

func (b *Broadcaster) send(ctx context.Context, tick uint64, kind proto.Type, payload []byte, addr net.Addr) {
	err := b.sender.Send(payload, addr)
	if err == nil {
		b.metrics.Add(sentMetricKey, 1)
		return
	}
	b.metrics.Add(sendFailedMetricKey, 1)
	if errors.Is(err, net.ErrClosed) {
		return
	}
	network.SendFailed(ctx, b.publisher, tick, logging.PlayerRef(addr.String()), network.SendFailurePayload{
		Error:  err.Error(),
		Packet: kind.String(),
	}, nil)
}

// Wait blocks until every submitted send has returned.
func (b *Broadcaster) Wait() {
	b.inflight.Wait()
}
