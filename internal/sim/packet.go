package sim

import (
	"net"
	"time"
)

// Packet is one received datagram waiting for the next fast tick.
type Packet struct {
	Payload    []byte
	From       net.Addr
	ReceivedAt time.Time
}
