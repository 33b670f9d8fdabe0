package network

import (
	"context"

	"github.com/jeknom/udp-game-example/server/logging"
)

const (
	EventListenerStarted logging.EventType = "network.listener_started"
	EventListenerStopped logging.EventType = "network.listener_stopped"
	// EventReceiveFailed is emitted for receive errors that do not stop the loop.
	EventReceiveFailed logging.EventType = "network.receive_failed"
	// EventSendFailed is emitted when an outbound datagram could not be written.
	EventSendFailed logging.EventType = "network.send_failed"
)

type ListenerPayload struct {
	Addr string `json:"addr"`
}

type FailurePayload struct {
	Error string `json:"error"`
	// Suppressed counts failures that were not logged since the previous event.
	Suppressed uint64 `json:"suppressed,omitempty"`
}

type SendFailurePayload struct {
	Error  string `json:"error"`
	Packet string `json:"packet"`
}

func ListenerStarted(ctx context.Context, pub logging.Publisher, payload ListenerPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventListenerStarted,
		Actor:    logging.EntityRef{ID: payload.Addr, Kind: logging.EntityKindSocket},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	})
}

func ListenerStopped(ctx context.Context, pub logging.Publisher, tick uint64, payload ListenerPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventListenerStopped,
		Tick:     tick,
		Actor:    logging.EntityRef{ID: payload.Addr, Kind: logging.EntityKindSocket},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	})
}

// ReceiveFailed publishes a warning for a transient receive error.
func ReceiveFailed(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload FailurePayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventReceiveFailed,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	})
}

// SendFailed publishes a warning for a datagram that could not be sent.
func SendFailed(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload SendFailurePayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSendFailed,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	})
}
