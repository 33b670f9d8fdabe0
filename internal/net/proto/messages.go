// Package proto defines the single-byte datagram protocol spoken between the
// server and its two clients.
package proto

// Type is the leading byte of every datagram.
type Type byte

const (
	// TypeJoinGame asks the server for a slot. Client to server.
	TypeJoinGame Type = 0x01
	// TypePlayerReady marks the sender ready. The server sends the same byte
	// back as a reminder to slots that are not ready yet.
	TypePlayerReady Type = 0x02
	// TypeGameUpdate is the per-tick heartbeat sent once a session is running.
	TypeGameUpdate Type = 0x03
)

func (t Type) String() string {
	switch t {
	case TypeJoinGame:
		return "JOIN_GAME"
	case TypePlayerReady:
		return "PLAYER_READY"
	case TypeGameUpdate:
		return "GAME_UPDATE"
	default:
		return "UNKNOWN"
	}
}

// Known reports whether t is one of the defined packet types.
func (t Type) Known() bool {
	switch t {
	case TypeJoinGame, TypePlayerReady, TypeGameUpdate:
		return true
	default:
		return false
	}
}

// Classify returns the type byte of payload. ok is false for an empty
// payload. Bytes after the first are ignored.
func Classify(payload []byte) (Type, bool) {
	if len(payload) == 0 {
		return 0, false
	}
	return Type(payload[0]), true
}

// Encode renders an outbound datagram for t. Every message is the bare type
// byte; a fresh slice is returned so callers may hand it to concurrent sends.
func Encode(t Type) []byte {
	return []byte{byte(t)}
}

// Ready reminder and heartbeat datagrams.
func ReadyReminder() []byte { return Encode(TypePlayerReady) }
func GameUpdate() []byte    { return Encode(TypeGameUpdate) }
