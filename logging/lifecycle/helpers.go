package lifecycle

import (
	"context"

	"github.com/jeknom/udp-game-example/server/logging"
)

const (
	// EventPlayerJoined is emitted when a remote address claims a slot.
	EventPlayerJoined logging.EventType = "lifecycle.player_joined"
	// EventPlayerReady is emitted the first time a slot holder reports ready.
	EventPlayerReady logging.EventType = "lifecycle.player_ready"
	// EventSessionStateChanged is emitted on every forward state transition.
	EventSessionStateChanged logging.EventType = "lifecycle.session_state_changed"
)

// PlayerJoinedPayload records which slot the player claimed.
type PlayerJoinedPayload struct {
	Slot int `json:"slot"`
}

// PlayerReadyPayload records which slot became ready.
type PlayerReadyPayload struct {
	Slot int `json:"slot"`
}

// SessionStateChangedPayload captures both ends of a transition.
type SessionStateChangedPayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// PlayerJoined publishes a slot assignment.
func PlayerJoined(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload PlayerJoinedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventPlayerJoined,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	})
}

// PlayerReady publishes a readiness change.
func PlayerReady(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload PlayerReadyPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventPlayerReady,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	})
}

// SessionStateChanged publishes a session transition.
func SessionStateChanged(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload SessionStateChangedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSessionStateChanged,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	})
}
