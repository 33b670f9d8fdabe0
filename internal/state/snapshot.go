package state

// SlotSnapshot is the read-only view of one slot.
type SlotSnapshot struct {
	Index int     `json:"index"`
	Addr  string  `json:"addr"`
	Ready bool    `json:"ready"`
	X     float32 `json:"x"`
	Y     float32 `json:"y"`
	Score int     `json:"score"`
}

// Snapshot is an immutable copy of the session, safe to hand to other
// goroutines.
type Snapshot struct {
	ID    string         `json:"id"`
	State string         `json:"state"`
	Slots []SlotSnapshot `json:"slots"`
}

func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		ID:    s.id.String(),
		State: s.state.String(),
		Slots: make([]SlotSnapshot, 0, SlotCount),
	}
	for i, slot := range s.slots {
		if slot == nil {
			continue
		}
		snap.Slots = append(snap.Slots, SlotSnapshot{
			Index: i,
			Addr:  slot.Addr.String(),
			Ready: slot.Ready,
			X:     slot.X,
			Y:     slot.Y,
			Score: slot.Score,
		})
	}
	return snap
}
