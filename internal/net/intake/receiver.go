// Package intake moves datagrams from the socket into the tick loop's queue.
package intake

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeknom/udp-game-example/server/internal/sim"
	"github.com/jeknom/udp-game-example/server/internal/telemetry"
	"github.com/jeknom/udp-game-example/server/logging"
	"github.com/jeknom/udp-game-example/server/logging/network"
)

const (
	receivedMetricKey      = "intake_datagrams_received_total"
	receiveFailedMetricKey = "intake_receive_failed_total"
)

// Source yields datagrams. Implementations must return promptly once ctx is
// done.
type Source interface {
	Receive(ctx context.Context) (sim.Packet, error)
}

// Queue accepts received datagrams; *sim.PacketQueue satisfies it.
type Queue interface {
	Push(sim.Packet) int
}

type Config struct {
	Publisher logging.Publisher
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	// WarningStep logs a backlog message every time the queue length
	// reaches a multiple of it. Zero disables the message.
	WarningStep int
	// FailureLogInterval throttles receive failure events.
	FailureLogInterval time.Duration
}

// Receiver is the receive loop. It never touches session state.
type Receiver struct {
	source Source
	queue  Queue
	cfg    Config

	failLog    rate.Sometimes
	suppressed atomic.Uint64
}

func NewReceiver(source Source, queue Queue, cfg Config) *Receiver {
	if cfg.Publisher == nil {
		cfg.Publisher = logging.NopPublisher()
	}
	if cfg.Logger == nil {
		cfg.Logger = telemetry.LoggerFunc(nil)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = telemetry.NopMetrics()
	}
	if cfg.FailureLogInterval <= 0 {
		cfg.FailureLogInterval = time.Second
	}
	return &Receiver{
		source:  source,
		queue:   queue,
		cfg:     cfg,
		failLog: rate.Sometimes{First: 1, Interval: cfg.FailureLogInterval},
	}
}

// Run receives until ctx is cancelled or the source is closed, both of which
// return nil. Any other receive error is reported and the loop carries on.
// Every datagram is queued, empty ones included.
func (r *Receiver) Run(ctx context.Context) error {
	for {
		packet, err := r.source.Receive(ctx)
		if err != nil {
			if stopped(ctx, err) {
				return nil
			}
			r.reportFailure(ctx, err)
			continue
		}

		n := r.queue.Push(packet)
		r.cfg.Metrics.Add(receivedMetricKey, 1)
		if step := r.cfg.WarningStep; step > 0 && n%step == 0 {
			r.cfg.Logger.Printf("packet queue backlog reached %d datagrams", n)
		}
	}
}

func stopped(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, net.ErrClosed)
}

func (r *Receiver) reportFailure(ctx context.Context, err error) {
	r.cfg.Metrics.Add(receiveFailedMetricKey, 1)
	logged := false
	r.failLog.Do(func() {
		logged = true
		network.ReceiveFailed(ctx, r.cfg.Publisher, logging.EntityRef{Kind: logging.EntityKindSocket}, network.FailurePayload{
			Error:      err.Error(),
			Suppressed: r.suppressed.Swap(0),
		}, nil)
	})
	if !logged {
		r.suppressed.Add(1)
	}
}
