package server

import (
	"context"
	"net"

	"golang.org/x/sync/errgroup"

	"github.com/jeknom/udp-game-example/server/internal/net/intake"
	"github.com/jeknom/udp-game-example/server/internal/net/proto"
	"github.com/jeknom/udp-game-example/server/internal/sim"
	"github.com/jeknom/udp-game-example/server/internal/state"
	"github.com/jeknom/udp-game-example/server/internal/telemetry"
	"github.com/jeknom/udp-game-example/server/logging"
	"github.com/jeknom/udp-game-example/server/logging/lifecycle"
	"github.com/jeknom/udp-game-example/server/logging/network"
)

// Transport is the datagram socket the hub is bound to.
type Transport interface {
	intake.Source
	Sender
	LocalAddr() net.Addr
}

type HubConfig struct {
	Loop             sim.LoopConfig
	QueueCapacity    int
	QueueWarningStep int

	Logger  telemetry.Logger
	Metrics *logging.Metrics
	Clock   logging.Clock
	Sleeper sim.Sleeper
}

func DefaultHubConfig() HubConfig {
	return HubConfig{
		Loop:             sim.DefaultLoopConfig(),
		QueueCapacity:    64,
		QueueWarningStep: 256,
	}
}

// Hub runs one two-player session: a receive loop feeding the packet queue
// and the tick loop that owns the session. Session state is touched only
// from the tick loop's goroutine.
type Hub struct {
	cfg       HubConfig
	transport Transport
	publisher logging.Publisher
	metrics   *logging.Metrics

	queue       *sim.PacketQueue
	loop        *sim.Loop
	receiver    *intake.Receiver
	broadcaster *Broadcaster
	feed        *Feed

	// Owned by the tick goroutine.
	session *state.Session
	drained []sim.Packet
	ctx     context.Context
}

// NewHub wires a hub around transport. Events go to publisher, stamped with
// the session id.
func NewHub(cfg HubConfig, transport Transport, publisher logging.Publisher) *Hub {
	if cfg.Logger == nil {
		cfg.Logger = telemetry.LoggerFunc(nil)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = &logging.Metrics{}
	}
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	metrics := telemetry.WrapMetrics(cfg.Metrics)
	session := state.NewSession()
	publisher = logging.WithFields(publisher, map[string]any{"session": session.ID().String()})

	h := &Hub{
		cfg:       cfg,
		transport: transport,
		publisher: publisher,
		metrics:   cfg.Metrics,
		queue:     sim.NewPacketQueue(cfg.QueueCapacity, metrics),
		feed:      NewFeed(),
		session:   session,
		ctx:       context.Background(),
	}
	h.broadcaster = NewBroadcaster(transport, publisher, metrics)
	h.receiver = intake.NewReceiver(transport, h.queue, intake.Config{
		Publisher:   publisher,
		Logger:      cfg.Logger,
		Metrics:     metrics,
		WarningStep: cfg.QueueWarningStep,
	})
	h.loop = sim.NewLoop(cfg.Loop, sim.LoopHooks{
		FastTick: h.fastTick,
		SlowTick: h.slowTick,
	}, sim.Deps{
		Logger:    cfg.Logger,
		Metrics:   metrics,
		Clock:     cfg.Clock,
		Publisher: publisher,
		Sleeper:   cfg.Sleeper,
	})
	h.publishStatus(0)
	return h
}

// Feed exposes the status feed for diagnostics.
func (h *Hub) Feed() *Feed {
	return h.feed
}

// Metrics exposes the shared counters.
func (h *Hub) Metrics() *logging.Metrics {
	return h.metrics
}

// SessionID identifies the session this hub runs.
func (h *Hub) SessionID() string {
	return h.session.ID().String()
}

// Run serves the session until ctx is cancelled. It then waits for the
// receive loop and in-flight sends; the receive loop's error is ignored.
func (h *Hub) Run(ctx context.Context) error {
	h.ctx = ctx
	addr := h.transport.LocalAddr().String()
	h.cfg.Logger.Printf("UDP session server listening on %s", addr)
	network.ListenerStarted(ctx, h.publisher, network.ListenerPayload{Addr: addr}, nil)
	h.publishStatus(h.loop.Frame())

	var receivers errgroup.Group
	receivers.Go(func() error {
		return h.receiver.Run(ctx)
	})

	h.loop.Run(ctx)

	h.cfg.Logger.Printf("UDP session server is stopping")
	_ = receivers.Wait()
	h.broadcaster.Wait()
	network.ListenerStopped(ctx, h.publisher, h.loop.Frame(), network.ListenerPayload{Addr: addr}, nil)
	return nil
}

func (h *Hub) fastTick(tick uint64) {
	h.drained = h.queue.DrainInto(h.drained)
	changed := false
	for _, packet := range h.drained {
		if h.apply(tick, packet) {
			changed = true
		}
	}
	clear(h.drained)
	if changed {
		h.publishStatus(tick)
	}

	if h.session.State() != state.InProgress {
		return
	}
	h.broadcaster.Broadcast(h.ctx, tick, proto.TypeGameUpdate, h.session.Recipients())
}

func (h *Hub) apply(tick uint64, packet sim.Packet) bool {
	outcome := h.session.Apply(packet.Payload, packet.From)
	switch outcome.Change {
	case state.ChangeJoined:
		lifecycle.PlayerJoined(h.ctx, h.publisher, tick, logging.PlayerRef(packet.From.String()),
			lifecycle.PlayerJoinedPayload{Slot: outcome.Slot}, nil)
	case state.ChangeReady:
		lifecycle.PlayerReady(h.ctx, h.publisher, tick, logging.PlayerRef(packet.From.String()),
			lifecycle.PlayerReadyPayload{Slot: outcome.Slot}, nil)
	default:
		return false
	}
	h.reportTransition(tick, outcome.Transition)
	return true
}

func (h *Hub) slowTick(tick uint64) {
	result := h.session.SlowTick()
	if len(result.Reminders) > 0 {
		h.broadcaster.Broadcast(h.ctx, tick, proto.TypePlayerReady, result.Reminders)
	}
	h.reportTransition(tick, result.Transition)
	h.publishStatus(tick)
}

func (h *Hub) reportTransition(tick uint64, transition *state.Transition) {
	if transition == nil {
		return
	}
	h.cfg.Logger.Printf("session %s: %s -> %s", h.session.ID(), transition.From, transition.To)
	lifecycle.SessionStateChanged(h.ctx, h.publisher, tick,
		logging.EntityRef{ID: h.session.ID().String(), Kind: logging.EntityKindSession},
		lifecycle.SessionStateChangedPayload{From: transition.From.String(), To: transition.To.String()}, nil)
}

func (h *Hub) publishStatus(tick uint64) {
	listen := ""
	if addr := h.transport.LocalAddr(); addr != nil {
		listen = addr.String()
	}
	h.feed.Publish(Status{
		Session:     h.session.Snapshot(),
		Tick:        tick,
		QueueLength: h.queue.Len(),
		ListenAddr:  listen,
		UpdatedAt:   h.loopClock().Now(),
	})
}

func (h *Hub) loopClock() logging.Clock {
	if h.cfg.Clock != nil {
		return h.cfg.Clock
	}
	return logging.SystemClock{}
}
