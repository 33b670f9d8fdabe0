package state

import (
	"net"

	"github.com/google/uuid"

	"github.com/jeknom/udp-game-example/server/internal/net/proto"
)

// SlotCount is the fixed number of players in a session.
const SlotCount = 2

// SessionState is the single, forward-only phase of a session.
type SessionState int

const (
	WaitingForPlayersToConnect SessionState = iota
	WaitingForPlayersToBeReady
	InProgress
)

func (s SessionState) String() string {
	switch s {
	case WaitingForPlayersToConnect:
		return "WaitingForPlayersToConnect"
	case WaitingForPlayersToBeReady:
		return "WaitingForPlayersToBeReady"
	case InProgress:
		return "InProgress"
	default:
		return "Unknown"
	}
}

// Slot is one claimed player seat. Addr never changes once assigned.
type Slot struct {
	Addr  net.Addr
	X     float32
	Y     float32
	Ready bool
	Score int
}

func (s *Slot) matches(addr net.Addr) bool {
	return s != nil && sameAddr(s.Addr, addr)
}

// Addresses from separate reads are distinct values, so identity is the
// ip:port string.
func sameAddr(a, b net.Addr) bool {
	if a == nil || b == nil {
		return false
	}
	return a.String() == b.String()
}

// Transition records a single forward state change.
type Transition struct {
	From SessionState
	To   SessionState
}

// Change classifies what a packet did to the session.
type Change int

const (
	ChangeNone Change = iota
	ChangeJoined
	ChangeReady
)

// Outcome describes the effect of one applied packet. Slot is the zero-based
// slot index and is only meaningful when Change is not ChangeNone.
type Outcome struct {
	Change     Change
	Slot       int
	Transition *Transition
}

// SlowTickResult lists who should be reminded to ready up, and the
// transition the slow tick made, if any.
type SlowTickResult struct {
	Reminders  []net.Addr
	Transition *Transition
}

// Session owns both slots and the session state. It is not safe for
// concurrent use; the tick loop is its only caller.
type Session struct {
	id    uuid.UUID
	state SessionState
	slots [SlotCount]*Slot
}

func NewSession() *Session {
	return &Session{id: uuid.New(), state: WaitingForPlayersToConnect}
}

func (s *Session) ID() uuid.UUID {
	return s.id
}

func (s *Session) State() SessionState {
	return s.state
}

// Slot returns a copy of slot i and whether it is assigned.
func (s *Session) Slot(i int) (Slot, bool) {
	if i < 0 || i >= SlotCount || s.slots[i] == nil {
		return Slot{}, false
	}
	return *s.slots[i], true
}

// Assigned counts claimed slots.
func (s *Session) Assigned() int {
	n := 0
	for _, slot := range s.slots {
		if slot != nil {
			n++
		}
	}
	return n
}

// Apply dispatches one datagram from addr. Bad input is a no-op and never
// an error: empty payloads, unknown types, joins into a full session or from
// an address already seated, readies from strangers.
func (s *Session) Apply(payload []byte, from net.Addr) Outcome {
	kind, ok := proto.Classify(payload)
	if !ok || from == nil {
		return Outcome{}
	}
	switch kind {
	case proto.TypeJoinGame:
		return s.join(from)
	case proto.TypePlayerReady:
		return s.ready(from)
	default:
		return Outcome{}
	}
}

func (s *Session) join(from net.Addr) Outcome {
	if s.slots[0] == nil {
		s.slots[0] = &Slot{Addr: from}
		return Outcome{Change: ChangeJoined, Slot: 0}
	}
	if s.slots[1] == nil && !s.slots[0].matches(from) {
		s.slots[1] = &Slot{Addr: from}
		return Outcome{
			Change:     ChangeJoined,
			Slot:       1,
			Transition: s.advance(WaitingForPlayersToBeReady),
		}
	}
	return Outcome{}
}

func (s *Session) ready(from net.Addr) Outcome {
	for i, slot := range s.slots {
		if !slot.matches(from) {
			continue
		}
		if slot.Ready {
			return Outcome{}
		}
		slot.Ready = true
		return Outcome{Change: ChangeReady, Slot: i}
	}
	return Outcome{}
}

// SlowTick runs the once-a-second readiness check. Outside the
// WaitingForPlayersToBeReady phase it does nothing.
func (s *Session) SlowTick() SlowTickResult {
	if s.state != WaitingForPlayersToBeReady {
		return SlowTickResult{}
	}
	var result SlowTickResult
	allReady := true
	for _, slot := range s.slots {
		if slot == nil {
			allReady = false
			continue
		}
		if !slot.Ready {
			allReady = false
			result.Reminders = append(result.Reminders, slot.Addr)
		}
	}
	if allReady {
		result.Transition = s.advance(InProgress)
	}
	return result
}

// Recipients returns the addresses that receive the per-tick game update.
// It is empty unless the session is in progress.
func (s *Session) Recipients() []net.Addr {
	if s.state != InProgress {
		return nil
	}
	out := make([]net.Addr, 0, SlotCount)
	for _, slot := range s.slots {
		if slot != nil {
			out = append(out, slot.Addr)
		}
	}
	return out
}

func (s *Session) advance(to SessionState) *Transition {
	if to <= s.state {
		return nil
	}
	t := &Transition{From: s.state, To: to}
	s.state = to
	return t
}
